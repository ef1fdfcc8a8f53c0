package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"

	grpcadapter "github.com/simaogato/redpacket-backend/internal/adapter/grpc"
	httpapi "github.com/simaogato/redpacket-backend/internal/adapter/http"
	"github.com/simaogato/redpacket-backend/internal/adapter/metrics"
	"github.com/simaogato/redpacket-backend/internal/adapter/repository/memory"
	wsadapter "github.com/simaogato/redpacket-backend/internal/adapter/websocket"
	"github.com/simaogato/redpacket-backend/internal/config"
	"github.com/simaogato/redpacket-backend/internal/logging"
	"github.com/simaogato/redpacket-backend/internal/usecase/claim"
	"github.com/simaogato/redpacket-backend/internal/usecase/distribution"
	"github.com/simaogato/redpacket-backend/internal/usecase/notify"
	"github.com/simaogato/redpacket-backend/internal/usecase/split"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "redpacket: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration and logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting red packet server", cfg.LogFields()...)

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 3. Initialize Repositories (in-memory)
	packetStore := memory.NewPacketStore(split.NewSplitter(nil).Split)
	connections := memory.NewConnectionRegistry(logger, m)

	// 4. Initialize Services (Use Cases)
	bus := notify.NewBus(connections, cfg.NotifyWriteTimeout, logger, m)
	claimService := claim.NewService(packetStore, bus, cfg.ClaimDelay, logger, m)
	distributionService := distribution.NewService(packetStore, bus, logger, m)

	// 5. Transports
	eventBus := wsadapter.NewHandler(connections, claimService, logger)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewServer(httpapi.Options{
			Creator:        distributionService,
			Reader:         packetStore,
			EventBus:       eventBus,
			MetricsHandler: metrics.Handler(registry),
			Metrics:        m,
			Logger:         logger,
			DefaultAmount:  cfg.DefaultAmount,
			DefaultShares:  cfg.DefaultShares,
			StaticDir:      cfg.StaticDir,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	grpcAdapter := grpcadapter.NewServer(distributionService, claimService, packetStore, connections, logger)
	grpcServer := grpcadapter.NewGRPCServer(grpcAdapter, cfg.APIToken, m)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	// 6. Serve until a signal arrives or a server fails
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil {
			return fmt.Errorf("failed to serve gRPC: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return shutdown(shutdownCtx, logger, httpServer, grpcServer, claimService, eventBus)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// shutdown stops intake first, drains in-flight claims while clients can still receive results,
// then closes the remaining WebSockets.
func shutdown(
	ctx context.Context,
	logger *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpclib.Server,
	claims *claim.Service,
	eventBus *wsadapter.Handler,
) error {
	var errs []error

	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	logger.Info("HTTP server stopped")

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
		<-stopped
	}
	logger.Info("gRPC server stopped")

	if err := claims.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining claims: %w", err))
	}
	logger.Info("in-flight claims drained")

	eventBus.Shutdown()

	return errors.Join(errs...)
}
