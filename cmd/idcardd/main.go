package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/idcard-reader/internal/common"
	"github.com/joseph-ayodele/idcard-reader/internal/metrics"
	"github.com/joseph-ayodele/idcard-reader/internal/scan"
	"github.com/joseph-ayodele/idcard-reader/internal/server"
)

func main() {
	configPath := flag.String("config", "", "config file path (YAML)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	// Logger before config so config errors are structured too.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := common.LoadDotEnv(*envFile); err != nil {
		logger.Error("load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger = cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc := scan.NewFromConfig(cfg, m, logger)

	if err := run(ctx, cfg, svc, m, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg *common.Config, svc *scan.Service, m *metrics.Metrics, logger *slog.Logger) error {
	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		grpcLis = lis
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           server.NewHTTPServer(svc, m, cfg.Server, logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http.serving", "addr", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("http.shutting_down")
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	if grpcLis != nil {
		grpcSrv := server.NewGRPCServer(server.NewIDCardService(svc, m, logger), logger)
		g.Go(func() error {
			logger.Info("grpc.serving", "addr", cfg.Server.GRPCAddr)
			return grpcSrv.Serve(grpcLis)
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("grpc.shutting_down")
			grpcSrv.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}
