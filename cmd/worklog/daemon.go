package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/worklog/internal/api"
	"github.com/fentz26/worklog/internal/audit"
	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/config"
	"github.com/fentz26/worklog/internal/events"
	"github.com/fentz26/worklog/internal/ledger"
	"github.com/fentz26/worklog/internal/metrics"
	"github.com/fentz26/worklog/internal/productivity"
	"github.com/fentz26/worklog/internal/store"
	"github.com/fentz26/worklog/internal/tasks"
	"github.com/spf13/cobra"
)

var (
	configPath string
	listenAddr string
	dbPath     string
	logLevel   string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Worklog daemon",
	Long:  `Starts the Worklog daemon which serves the HTTP API for tasks, dependencies and time tracking.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default ~/.worklog/config.yaml)")
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func loadDaemonConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromHome()
	}
	if err != nil {
		return nil, err
	}

	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadDaemonConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("starting worklog daemon")

	path, err := cfg.ResolvedDBPath()
	if err != nil {
		return err
	}

	// Initialize store
	s, err := store.New(path)
	if err != nil {
		return err
	}
	logger.Info("database opened", "path", path)

	// Initialize components
	clk := clock.System{}
	bus := events.NewBus()
	m := metrics.New()
	bus.Subscribe(m.Observe)
	bus.Subscribe(logEvent(logger))

	pdr := audit.NewPDRWriter(s, clk, logger)
	taskSvc := tasks.NewService(s, tasks.Options{Clock: clk, Events: bus, PDR: pdr, Logger: logger})
	led := ledger.New(s, ledger.Options{Clock: clk, Events: bus, PDR: pdr, Logger: logger})
	stats := productivity.NewAggregator(s, clk, cfg.Location(), cfg.Stats.WindowDays)

	server := api.NewServer(api.Deps{
		Store:   s,
		Tasks:   taskSvc,
		Ledger:  led,
		Stats:   stats,
		Metrics: m,
		Clock:   clk,
		Logger:  logger,
	}, cfg.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("closing database connection")
	if err := s.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// logEvent writes every domain event to the log.
func logEvent(logger *slog.Logger) events.Handler {
	return func(e events.Event) {
		attrs := []any{"kind", string(e.Kind), "subject", e.SubjectID, "user", e.UserID}
		for k, v := range e.Attrs {
			attrs = append(attrs, k, v)
		}
		level := slog.LevelInfo
		if e.Kind == events.DependencyDenied {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "event", attrs...)
	}
}
