// Package api exposes the engine's single call shape over HTTP.
//
// Routes:
//
//	POST /api/v1/universal              engine.Request -> engine.Result
//	POST /api/v1/smart-codes/validate   governor report for one code
//	GET  /health                        liveness
//	GET  /metrics                       prometheus exposition (when enabled)
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/engine"
	"github.com/hera-erp/hera/internal/metrics"
)

// Server wires the engine into an echo instance.
type Server struct {
	engine  *engine.Engine
	echo    *echo.Echo
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables request metrics and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds a Server around eng.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: eng, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(requestID(s.logger))
	if s.metrics != nil {
		e.Use(s.metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	e.Use(accessLog())

	e.GET("/health", s.health)
	v1 := e.Group("/api/v1")
	v1.POST("/universal", s.universal)
	v1.POST("/smart-codes/validate", s.validateSmartCode)

	s.echo = e
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

// handleError renders errors raised outside the engine envelope (bad
// routes, malformed bodies, panics) in the envelope shape.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		loggerFrom(c).Error("request failed", zap.Error(err))
	}
	kind := "internal"
	if code < http.StatusInternalServerError {
		kind = "validation"
	}
	_ = c.JSON(code, map[string]any{
		"status": engine.StatusError,
		"error":  map[string]any{"kind": kind, "message": msg},
	})
}
