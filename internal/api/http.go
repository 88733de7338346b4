// Package api serves the reporting endpoints over HTTP and the deployment
// health over gRPC.
package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-drift/internal/models"
	"github.com/miradorstack/mirador-drift/internal/services"
	"github.com/miradorstack/mirador-drift/internal/utils"
)

// ReportAPI is the service behind the HTTP endpoints.
type ReportAPI interface {
	Predict(ctx context.Context, dataPath string) ([]int, error)
	Score(ctx context.Context) (float64, error)
	SummaryStats(ctx context.Context) (map[string]models.ColumnSummary, error)
	Diagnostics(ctx context.Context) (models.DiagnosticsReport, error)
	Health() (models.HealthResponse, error)
}

// NewHTTPServer builds the echo server with every reporting route. gatherer
// backs /metrics; nil means the default registry.
func NewHTTPServer(logger *slog.Logger, service ReportAPI, gatherer prometheus.Gatherer, loglevel string) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	setLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(toHTTPError(err), c)
	}

	e.Use(middleware.Recover())
	e.Use(logRequests(logger))

	h := &handlers{service: service}
	e.POST("/prediction", h.prediction)
	e.GET("/scoring", h.scoring)
	e.GET("/summarystats", h.summaryStats)
	e.GET("/diagnostics", h.diagnostics)
	e.GET("/healthz", h.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return e
}

type handlers struct {
	service ReportAPI
}

func (h *handlers) prediction(c echo.Context) error {
	var req models.PredictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object with datapath")
	}
	preds, err := h.service.Predict(c.Request().Context(), req.DataPath)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.PredictionResponse{Predictions: preds})
}

func (h *handlers) scoring(c echo.Context) error {
	f1, err := h.service.Score(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ScoreResponse{F1: f1})
}

func (h *handlers) summaryStats(c echo.Context) error {
	stats, err := h.service.SummaryStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) diagnostics(c echo.Context) error {
	report, err := h.service.Diagnostics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handlers) healthz(c echo.Context) error {
	resp, err := h.service.Health()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// toHTTPError maps service errors onto status codes.
func toHTTPError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbiddenPath):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, utils.ErrMissingState):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}

// logRequests logs one line per request with its latency and outcome.
func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			begin := time.Now()
			logger.Debug("request received", slog.String("method", req.Method), slog.String("path", req.URL.Path))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", c.Response().Status),
				slog.Duration("latency", time.Since(begin)),
			}
			if err != nil {
				logger.Warn("request failed", append(attrs, slog.Any("error", err))...)
			} else {
				logger.Info("request served", attrs...)
			}
			return nil
		}
	}
}

func setLevel(e *echo.Echo, loglevel string) {
	switch strings.ToLower(loglevel) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "info":
		e.Logger.SetLevel(log.INFO)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	case "off":
		e.Logger.SetLevel(log.OFF)
	default:
		e.Logger.SetLevel(log.WARN)
	}
}
