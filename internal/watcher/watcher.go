// Package watcher triggers monitor runs when the input folder changes and
// keeps the deployment health current when the production folder changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/engine"
	"github.com/miradorstack/mirador-drift/internal/models"
)

// Runner performs one monitor pass.
type Runner interface {
	Run(ctx context.Context, testingMode bool) (engine.RunResult, error)
}

// StateFunc receives the production state after every change. It gets nil
// when the state cannot be read.
type StateFunc func(models.ProductionState)

// Options tunes the watcher.
type Options struct {
	// Debounce is how long the input folder must stay quiet before a run.
	Debounce time.Duration
	// RunOnStart triggers one run as soon as watching begins.
	RunOnStart bool
}

// Watcher serialises monitor runs triggered by filesystem events.
type Watcher struct {
	logger   *slog.Logger
	inputDir string
	prodDir  string
	runner   Runner
	onState  StateFunc
	opts     Options
}

// New constructs a Watcher. onState may be nil.
func New(logger *slog.Logger, inputDir, prodDir string, runner Runner, onState StateFunc, opts Options) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &Watcher{
		logger:   logger,
		inputDir: filepath.Clean(inputDir),
		prodDir:  filepath.Clean(prodDir),
		runner:   runner,
		onState:  onState,
		opts:     opts,
	}
}

// Watch blocks until ctx is cancelled. Runs happen on the watching goroutine,
// so at most one is in flight.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.inputDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.inputDir, err)
	}
	// Deployment swaps the production folder by rename, so its parent is
	// watched too and the folder itself is re-added after every swap.
	if err := fw.Add(filepath.Dir(w.prodDir)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.prodDir), err)
	}
	if err := fw.Add(w.prodDir); err != nil {
		w.logger.Warn("production folder not watched yet", slog.String("path", w.prodDir), slog.Any("error", err))
	}

	w.logger.Info("watching for new data", slog.String("input", w.inputDir), slog.String("production", w.prodDir))
	w.refresh()

	timer := time.NewTimer(w.opts.Debounce)
	if !w.opts.RunOnStart {
		timer.Stop()
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case w.inInput(event.Name):
				w.logger.Debug("input folder changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
				timer.Reset(w.opts.Debounce)
			case w.inProd(event.Name):
				if event.Name == w.prodDir && event.Has(fsnotify.Create) {
					if err := fw.Add(w.prodDir); err != nil {
						w.logger.Warn("failed to re-watch production folder", slog.Any("error", err))
					}
				}
				w.refresh()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		case <-timer.C:
			w.run(ctx)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	res, err := w.runner.Run(ctx, false)
	switch {
	case errors.Is(err, engine.ErrRunInProgress):
		w.logger.Info("run skipped, another run holds the lock")
	case err != nil:
		w.logger.Error("triggered run failed", slog.Any("error", err))
	default:
		w.logger.Info("triggered run finished",
			slog.String("run_id", res.RunID),
			slog.String("stopped", res.Stopped),
			slog.Bool("deployed", res.Deployed))
	}
	w.refresh()
}

func (w *Watcher) refresh() {
	if w.onState == nil {
		return
	}
	state, err := deployment.LoadState(w.prodDir)
	if err != nil {
		w.logger.Debug("production state unavailable", slog.Any("error", err))
		w.onState(nil)
		return
	}
	w.onState(state)
}

func (w *Watcher) inInput(name string) bool {
	return filepath.Dir(filepath.Clean(name)) == w.inputDir
}

func (w *Watcher) inProd(name string) bool {
	name = filepath.Clean(name)
	return name == w.prodDir || strings.HasPrefix(name, w.prodDir+string(filepath.Separator))
}
