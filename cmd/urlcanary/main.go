package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazz-dev/urlcanary/internal/canary"
	"github.com/hazz-dev/urlcanary/internal/config"
	"github.com/hazz-dev/urlcanary/internal/logging"
	"github.com/hazz-dev/urlcanary/internal/metrics"
	"github.com/hazz-dev/urlcanary/internal/probe"
	"github.com/hazz-dev/urlcanary/internal/server"
	"github.com/hazz-dev/urlcanary/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "urlcanary",
		Short:        "Synthetic HTTPS POST canary",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: environment only)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(runCmd())
	root.AddCommand(serveCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "urlcanary %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// setup loads the configuration and builds everything a command needs.
func setup() (*config.Config, *zap.Logger, probe.Request, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, probe.Request{}, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Dir)
	if err != nil {
		return nil, nil, probe.Request{}, fmt.Errorf("creating logger: %w", err)
	}

	req, err := probe.NewRequest(cfg.Canary.URL, cfg.Canary.Body)
	if err != nil {
		return nil, nil, probe.Request{}, fmt.Errorf("building request: %w", err)
	}
	return cfg, logger, req, nil
}

func newRunner(cfg *config.Config, logger *zap.Logger, opts ...canary.Option) *canary.Runner {
	exec := probe.NewExecutor(
		probe.WithTimeout(cfg.Canary.Timeout.Duration),
		probe.WithUserAgent(cfg.Canary.UserAgent),
	)
	opts = append([]canary.Option{
		canary.WithStep(cfg.Canary.StepName),
		canary.WithLogger(logger),
	}, opts...)
	return canary.New(exec, opts...)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Probe the configured target once",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, logger, req, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	return executeRun(cmd, newRunner(cfg, logger), req)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API that probes the target on each trigger",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, req, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	bundle := metrics.NewBundle()
	runner := newRunner(cfg, logger, canary.WithObserver(bundle.Collector))
	api := server.New(runner, req,
		server.WithMetrics(bundle.Handler()),
		server.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("address", cfg.Server.Address),
			zap.String("target", req.URL),
			zap.String("step", runner.Step()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// Allow an in-flight probe to settle on its own timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Canary.Timeout.Duration+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
