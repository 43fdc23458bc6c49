package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/keyvo/internal/api"
	"github.com/FranksOps/keyvo/internal/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the Keyvo HTTP API. GET /api/keywords?q=...&gl=...&platform=google|youtube
returns a JSON array of suggestions. When metrics.port is set, Prometheus
metrics are served on a separate listener.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime(os.Stderr)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Addr:              cfg.Server.Addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, svc, logger)

	startup := []any{"version", version, "addr", server.Addr()}
	var metricsServer *metrics.Server
	if cfg.Metrics.Port > 0 {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		startup = append(startup, "metrics_addr", metricsServer.Addr())
	}
	logger.Info("starting keyvo", startup...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	if metricsServer != nil {
		g.Go(metricsServer.ListenAndServe)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
