// Package app is the application bootstrap and dependency injection root.
// It creates and holds the shared infrastructure (DB pool, Redis client,
// Echo instance) and wires together the auth, site config, and content
// components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/librarium/internal/apperror"
	"github.com/keyxmakerx/librarium/internal/auth"
	"github.com/keyxmakerx/librarium/internal/config"
	"github.com/keyxmakerx/librarium/internal/content"
	"github.com/keyxmakerx/librarium/internal/middleware"
	"github.com/keyxmakerx/librarium/internal/siteconfig"
)

// How often the login rate limiter drops expired attempt windows.
const limiterSweepInterval = 5 * time.Minute

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool.
	DB *sql.DB

	// Redis is the Redis client used for content caching.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Limiter is the in-memory login rate limiter, held here so its
	// sweep goroutine can be stopped on shutdown.
	Limiter *auth.Limiter

	site    *siteconfig.Service
	content *content.Service

	stopLoops chan struct{}
}

// New creates a new App with the given dependencies, configures the Echo
// server with global middleware and error handling, and registers all routes.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// We log our own startup line.
	e.HideBanner = true
	e.HidePort = true

	// Trusted reverse proxy ranges so c.RealIP() returns the actual client
	// IP. The login rate limiter keys on it, so this matters for security.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Echo:      e,
		Limiter:   auth.NewLimiter(),
		stopLoops: make(chan struct{}),
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler
	app.registerRoutes()

	go app.sweepLoop()
	go app.refreshLoop()

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{a.Config.BaseURL},
		AllowCredentials: true,
	}))
}

// registerRoutes wires every component and mounts its routes.
func (a *App) registerRoutes() {
	configRepo := siteconfig.NewRepository(a.DB)
	configService := siteconfig.NewService(configRepo)
	configHandler := siteconfig.NewHandler(configService)

	authHandler := auth.NewHandler(configService, a.Limiter, a.Config.IsProduction())

	contentService := content.NewService(a.Config.GitHub, configService, a.Redis)
	contentHandler := content.NewHandler(contentService)

	a.site = configService
	a.content = contentService

	requireSession := auth.RequireSession()
	requireAdmin := auth.RequireAdminSession()

	auth.RegisterRoutes(a.Echo, authHandler)
	siteconfig.RegisterRoutes(a.Echo, configHandler, requireAdmin)
	content.RegisterRoutes(a.Echo, contentHandler, requireSession, requireAdmin)

	a.Echo.GET("/api/health", a.healthCheck)
}

// sweepLoop periodically evicts expired rate limit windows so IPs that
// tried once and left do not accumulate forever.
func (a *App) sweepLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Limiter.Sweep()
		case <-a.stopLoops:
			return
		}
	}
}

// refreshLoop polls the repository for content changes when auto refresh
// is enabled, at the interval the admin configured. The tick is fixed at
// one minute; each tick decides whether enough time has passed.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			cfg, err := a.site.Get(ctx)
			if err != nil || !cfg.AutoRefreshEnabled || cfg.GitHubRepo == "" {
				cancel()
				continue
			}
			interval := time.Duration(cfg.RefreshIntervalMinutes) * time.Minute
			if time.Since(lastRun) < interval {
				cancel()
				continue
			}
			lastRun = time.Now()

			changes, err := a.content.RefreshIfChanged(ctx)
			cancel()
			if err != nil {
				slog.Warn("content refresh failed", slog.Any("error", err))
				continue
			}
			if changes.HasChanges {
				slog.Info("content changed upstream",
					slog.Int("new", len(changes.NewFiles)),
					slog.Int("changed", len(changes.ChangedFiles)),
					slog.Int("deleted", len(changes.DeletedFiles)),
				)
			}
		case <-a.stopLoops:
			return
		}
	}
}

// errorHandler maps domain errors to JSON responses. This is an API-only
// server, so every error body is JSON with a machine-readable code.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	code := apperror.CodeInternal
	message := "An unexpected error occurred"

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Status
		code = appErr.Code
		message = appErr.Message

		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("code", appErr.Code),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		status = echoErr.Code
		code = http.StatusText(status)
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if err := c.JSON(status, map[string]string{
		"error":   code,
		"message": message,
	}); err != nil {
		slog.Error("writing error response failed", slog.Any("error", err))
	}
}

// healthCheck handles GET /api/health. Reports 503 when either backing
// store is unreachable so the orchestrator can restart or reroute.
func (a *App) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := a.DB.PingContext(ctx); err != nil {
		checks["database"] = "unreachable"
		healthy = false
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	return c.JSON(status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Librarium server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown stops the background loops and gracefully drains the server.
func (a *App) Shutdown(ctx context.Context) error {
	close(a.stopLoops)
	return a.Echo.Shutdown(ctx)
}
