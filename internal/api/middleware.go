package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hera-erp/hera/internal/logging"
)

const headerRequestID = "X-Request-ID"

// requestID assigns a request id, echoes it back and attaches a logger
// carrying it to both the echo and the request context.
func requestID(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(headerRequestID)
			if id == "" {
				id = uuid.New().String()
				c.Request().Header.Set(headerRequestID, id)
			}
			c.Response().Header().Set(headerRequestID, id)

			l := base.With(zap.String("request_id", id))
			c.Set("logger", l)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithContext(req.Context(), l)))
			return next(c)
		}
	}
}

// accessLog writes one line per request.
func accessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			loggerFrom(c).Info("HTTP Request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return nil
		}
	}
}

func loggerFrom(c echo.Context) *zap.Logger {
	if l, ok := c.Get("logger").(*zap.Logger); ok {
		return l
	}
	return logging.FromContext(c.Request().Context())
}
