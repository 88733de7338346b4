package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-drift/internal/api"
	"github.com/miradorstack/mirador-drift/internal/deployment"
	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/watcher"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API and the gRPC health service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e := api.NewHTTPServer(a.logger, a.reportService(), nil, a.cfg.Logging.Level)
		go func() {
			a.logger.Info("reporting API listening", slog.String("address", a.cfg.Server.Address))
			if err := e.Start(a.cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("reporting API exited", slog.Any("error", err))
				stop()
			}
		}()

		var health *api.HealthServer
		if a.cfg.Server.GRPCAddress != "" {
			health, err = api.NewHealthServer(a.cfg.Server)
			if err != nil {
				return err
			}
			if state, err := deployment.LoadState(a.cfg.Paths.ProdDeployment); err == nil {
				health.SetState(state)
			}
			go func() {
				a.logger.Info("gRPC health listening", slog.String("address", health.Address()))
				if err := health.Start(); err != nil {
					a.logger.Error("gRPC server exited", slog.Any("error", err))
					stop()
				}
			}()
		}

		watchDone := make(chan struct{})
		if serveWatch {
			var onState watcher.StateFunc
			if health != nil {
				onState = func(s models.ProductionState) { health.SetState(s) }
			}
			w := watcher.New(a.logger, a.cfg.Paths.InputFolder, a.cfg.Paths.ProdDeployment, a.monitor(), onState, watcher.Options{})
			go func() {
				defer close(watchDone)
				if err := w.Watch(ctx); err != nil {
					a.logger.Error("watcher exited", slog.Any("error", err))
					stop()
				}
			}()
		} else {
			close(watchDone)
		}

		<-ctx.Done()
		a.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GracefulTimeout)
		defer cancel()
		shutdownHTTP(shutdownCtx, e, a.logger)
		if health != nil {
			health.Shutdown(shutdownCtx)
		}
		select {
		case <-watchDone:
		case <-shutdownCtx.Done():
			a.logger.Warn("watcher did not stop before the graceful timeout")
		}

		// Give remaining goroutines time to finish logging
		time.Sleep(100 * time.Millisecond)
		a.logger.Info("mirador-drift stopped")
		return nil
	},
}

func shutdownHTTP(ctx context.Context, e *echo.Echo, logger *slog.Logger) {
	if err := e.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("reporting API shutdown", slog.Any("error", err))
	}
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "also run the monitor whenever the input folder changes")
}
