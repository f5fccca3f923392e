// Package server exposes the freshness classifier and the catalog summary
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Server defaults.
const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultBodyLimit = "20M"
	shutdownTimeout  = 10 * time.Second
)

// Classifier scores an encoded image. *train.Model satisfies it.
type Classifier interface {
	PredictBytes(data []byte) (train.Prediction, error)
}

// Summarizer reports indexed sample counts. *sqlite.Backend satisfies it.
type Summarizer interface {
	Summary() (types.Summary, error)
}

// Dependencies holds what the handlers need. Nil fields disable the
// routes that use them with a 503.
type Dependencies struct {
	Classifier Classifier
	Catalog    Summarizer
	Version    string
	Logger     *slog.Logger
	Now        func() time.Time
}

// New builds the echo instance with middleware and routes registered.
func New(deps Dependencies) *echo.Echo {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/api/health"
		},
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			deps.Logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(DefaultBodyLimit))

	h := &handler{deps: deps}
	api := e.Group("/api")
	api.GET("/health", h.handleHealth)
	api.POST("/analyze", h.handleAnalyze)
	api.POST("/analyze-batch", h.handleAnalyzeBatch)
	api.GET("/dataset/summary", h.handleSummary)
	return e
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, e *echo.Echo, logger *slog.Logger) error {
	if addr == "" {
		addr = DefaultAddr
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("server shutting down")
	return e.Shutdown(shutdownCtx)
}
