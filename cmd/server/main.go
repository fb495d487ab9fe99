// Package main is the entry point for the Librarium server. It loads
// configuration, connects to MariaDB and Redis, runs migrations, wires the
// application together, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keyxmakerx/librarium/internal/app"
	"github.com/keyxmakerx/librarium/internal/config"
	"github.com/keyxmakerx/librarium/internal/database"
	"github.com/keyxmakerx/librarium/internal/siteconfig"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting Librarium",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, "migrations"); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	seed := siteconfig.NewService(siteconfig.NewRepository(db))
	if err := seed.EnsureDefault(context.Background()); err != nil {
		slog.Error("failed to seed site config", slog.Any("error", err))
		os.Exit(1)
	}

	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	application := app.New(cfg, db, rdb)

	// Graceful shutdown on interrupt/term so Docker restarts drain cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger. Development uses text
// format for readability; production uses JSON for log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
