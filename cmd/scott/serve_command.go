package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"scott/internal/config"
	"scott/internal/daemon"
	"scott/internal/logging"
	"scott/internal/logtail"
	"scott/internal/preflight"
	"scott/internal/records"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, skipPreflight)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking directories and the listen address")
	return cmd
}

func runServe(cmdCtx context.Context, ctx *commandContext, skipPreflight bool) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind := strings.TrimSpace(*ctx.bindFlag); bind != "" {
		cfg.Server.Bind = bind
	}

	logPath := cfg.ServerLogPath()
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, time.Now(), cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Logging.Dir, Pattern: "*.log", Exclude: []string{logPath, cfg.LogMonitorFile()}},
	)

	if !skipPreflight {
		if err := checkReadiness(signalCtx, cfg, logger); err != nil {
			return err
		}
	}

	store, err := records.Open(signalCtx, cfg.Database.Path)
	if err != nil {
		logger.Error("open records store", logging.Error(err))
		return err
	}
	if cfg.Database.Seed {
		seeded, err := store.Seed(signalCtx)
		if err != nil {
			store.Close()
			return fmt.Errorf("seed records: %w", err)
		}
		if seeded {
			logger.Info("demo records loaded", logging.String("database", cfg.Database.Path))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logs := logtail.NewService(cfg,
		logtail.WithLogger(logging.NewComponentLogger(logger, "log-monitor")),
		logtail.WithMetrics(logtail.NewMetrics(registry)),
	)

	d, err := daemon.New(cfg, store, logs, logger, registry)
	if err != nil {
		logs.Close()
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("scott server shutting down")
	return nil
}

func checkReadiness(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("required", r.Required),
			logging.String(logging.FieldEventType, "preflight_failed"),
		)
	}
	failed := preflight.Failures(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
}
