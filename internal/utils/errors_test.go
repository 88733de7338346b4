package utils

import (
	"errors"
	"io/fs"
	"testing"
)

func TestMissingStateErrorMatching(t *testing.T) {
	err := error(&MissingStateError{Artifact: "manifest", Path: "/prod/ingestedfiles.txt", Err: fs.ErrNotExist})
	wrapped := NewAppError("run", "read manifest", err)

	if !errors.Is(wrapped, ErrMissingState) {
		t.Fatalf("expected wrapped error to match ErrMissingState")
	}
	if !errors.Is(wrapped, fs.ErrNotExist) {
		t.Fatalf("expected cause to stay reachable")
	}
	var mse *MissingStateError
	if !errors.As(wrapped, &mse) || mse.Artifact != "manifest" {
		t.Fatalf("expected MissingStateError, got %v", wrapped)
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError("deploy", "copy model", errors.New("disk full"))
	if err.Error() != "deploy: copy model: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if NewAppError("deploy", "nothing to do", nil).Error() != "deploy: nothing to do" {
		t.Fatalf("unexpected message without cause")
	}
}
