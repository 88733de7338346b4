package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ErrMissingState is matched by every MissingStateError.
var ErrMissingState = errors.New("missing production state")

// MissingStateError reports a production artifact that must exist before a run
// can decide anything, such as the ingestion manifest or the deployed score.
type MissingStateError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *MissingStateError) Error() string {
	return fmt.Sprintf("missing %s at %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *MissingStateError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMissingState) match regardless of the cause.
func (e *MissingStateError) Is(target error) bool {
	return target == ErrMissingState
}
