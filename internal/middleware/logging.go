// Package middleware provides HTTP middleware for the Librarium Echo server.
// Middleware is applied globally (all routes) or per-route group depending
// on the middleware type. See internal/app for registration.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger returns middleware that logs every request with structured
// fields after it completes. Health checks are skipped; an orchestrator
// polling /api/health would otherwise dominate the log stream.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			if req.URL.Path == "/api/health" {
				return err
			}
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.Int64("bytes_out", res.Size),
				slog.String("remote_ip", c.RealIP()),
			}
			if req.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", req.URL.RawQuery))
			}

			// 4xx is routine here (wrong passwords, expired sessions) but
			// still worth a warn; 5xx means something actually broke.
			level := slog.LevelInfo
			if res.Status >= 500 {
				level = slog.LevelError
			} else if res.Status >= 400 {
				level = slog.LevelWarn
			}

			slog.LogAttrs(req.Context(), level, "request", attrs...)

			return err
		}
	}
}
