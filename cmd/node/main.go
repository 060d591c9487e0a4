// Package main implements the node process that keeps a DTM0 log and serves
// the admin gRPC API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	apppkg "github.com/i-melnichenko/dtm0-lab/internal/app"
	"github.com/i-melnichenko/dtm0-lab/internal/observability/metrics"
	"github.com/i-melnichenko/dtm0-lab/internal/service"
	admingrpc "github.com/i-melnichenko/dtm0-lab/internal/transport/grpc/admin"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := apppkg.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	logger := slog.Default()

	prom, err := metrics.NewPrometheus(nil)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storage, err := apppkg.OpenStorage(ctx, cfg, logger, prom)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}()

	journal, err := service.NewJournal(
		storage.Log,
		storage.Segment,
		logger,
		otel.Tracer("github.com/i-melnichenko/dtm0-lab/internal/service"),
		prom,
		cfg.NodeID,
	)
	if err != nil {
		return err
	}

	app, err := apppkg.New(cfg, logger, journal, admingrpc.NewServer(journal))
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
