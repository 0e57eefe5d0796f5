//go:build linux

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lcalzada-xor/linkd/internal/app"
	"github.com/lcalzada-xor/linkd/internal/config"
	"github.com/lcalzada-xor/linkd/internal/telemetry"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("linkd starting")

	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		log.Printf("Warning: tracer initialization failed: %v", err)
	} else {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			shutdownTracer(shutdownCtx)
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("runtime failure: %v", err)
	}

	slog.Info("linkd shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	application.Shutdown(shutdownCtx)
}
