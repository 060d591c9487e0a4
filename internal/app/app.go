// Package app wires the DTM0 log, the journal service and its transports together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/i-melnichenko/dtm0-lab/internal/service"
	admingrpc "github.com/i-melnichenko/dtm0-lab/internal/transport/grpc/admin"
)

// Logger is the logging interface required by App.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// App runs the journal behind the admin gRPC service.
// All dependencies are injected; App does not open storage itself.
type App struct {
	config   Config
	logger   Logger
	journal  *service.Journal
	adminSrv admingrpc.AdminServiceServer
}

// New validates dependencies and constructs a runnable application.
func New(
	cfg Config,
	logger Logger,
	journal *service.Journal,
	adminSrv admingrpc.AdminServiceServer,
) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("app: nil logger")
	}
	if journal == nil {
		return nil, fmt.Errorf("app: nil journal")
	}
	if adminSrv == nil {
		return nil, fmt.Errorf("app: nil admin server")
	}
	return &App{
		config:   cfg,
		logger:   logger,
		journal:  journal,
		adminSrv: adminSrv,
	}, nil
}

// Run starts the gRPC, metrics and pprof servers plus the background
// pruner, and blocks until shutdown or fatal error.
func (a *App) Run(ctx context.Context) error {
	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	fid, err := a.config.FID()
	if err != nil {
		return fmt.Errorf("app: process fid: %w", err)
	}

	lis, err := net.Listen("tcp", a.config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.config.GRPCAddr, err)
	}
	defer func() { _ = lis.Close() }()

	a.logger.Info(
		"node started",
		"node_id", a.config.NodeID,
		"process_fid", fid.String(),
		"log_backend", string(a.config.LogBackend),
		"grpc_addr", a.config.GRPCAddr,
		"prune_interval", a.config.PruneInterval,
	)

	return a.serve(ctx, lis)
}

// serve registers gRPC services, starts goroutines, and blocks until ctx is
// canceled or a fatal error occurs.
func (a *App) serve(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer()
	admingrpc.RegisterAdminServiceServer(server, a.adminSrv)
	reflection.Register(server)

	metricsSrv, metricsLis, err := a.metricsServer()
	if err != nil {
		return err
	}
	defer shutdownHTTPServer(metricsSrv, a.logger, "metrics server")

	pprofSrv, pprofLis, err := a.pprofServer()
	if err != nil {
		if metricsLis != nil {
			_ = metricsLis.Close()
		}
		return err
	}
	defer shutdownHTTPServer(pprofSrv, a.logger, "pprof server")

	errCh := make(chan error, 4)

	go func() {
		if err := a.journal.RunPruner(ctx, a.config.PruneInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("journal pruner: %w", err)
		}
	}()
	go func() {
		if err := server.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	if metricsSrv != nil {
		a.logger.Info("metrics server started", "addr", a.config.MetricsAddr)
		go func() {
			if err := metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics serve: %w", err)
			}
		}()
	}
	if pprofSrv != nil {
		a.logger.Info("pprof server started", "addr", a.config.PprofAddr)
		go func() {
			if err := pprofSrv.Serve(pprofLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("pprof serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	case err := <-errCh:
		server.Stop()
		return err
	}
}
