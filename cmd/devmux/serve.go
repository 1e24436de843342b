package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ternlight/devmux/internal/config"
	"github.com/ternlight/devmux/internal/history"
	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/logger"
	"github.com/ternlight/devmux/internal/metrics"
	"github.com/ternlight/devmux/internal/proc"
	"github.com/ternlight/devmux/internal/server"
	"github.com/ternlight/devmux/internal/store"
	"github.com/ternlight/devmux/internal/supervisor"
)

func createServeCommand() *cobra.Command {
	flags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the devmux daemon",
		Long: `Run the supervisor daemon in the foreground. Registered projects are
restored from the registry and their autostart processes launched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "/api", "API base path")
	cmd.Flags().StringVar(&flags.StorePath, "store", defaultStorePath(), "project registry database path")
	cmd.Flags().StringVar(&flags.LogDir, "log-dir", "", "mirror process output to rotated files in this directory")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "daemon log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&flags.HistoryDSN, "history-dsn", "", "lifecycle history database DSN (sqlite path or postgres:// URL)")
	cmd.Flags().StringVar(&flags.ClickHouseAddr, "clickhouse-addr", "", "ClickHouse address for lifecycle history (host:9000)")
	cmd.Flags().StringVar(&flags.ClickHouseDB, "clickhouse-database", "default", "ClickHouse database")
	cmd.Flags().StringVar(&flags.ClickHouseUser, "clickhouse-username", "default", "ClickHouse username")
	cmd.Flags().StringVar(&flags.ClickHousePass, "clickhouse-password", "", "ClickHouse password")
	return cmd
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "devmux.db"
	}
	return filepath.Join(home, ".devmux", "registry.db")
}

func runServe(flags *ServeFlags) error {
	log := logger.Setup(flags.LogLevel)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if dir := filepath.Dir(flags.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	registry, err := store.NewSQLiteStore(flags.StorePath)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()
	if err := registry.EnsureSchema(context.Background()); err != nil {
		return err
	}

	sup := supervisor.New()

	sinks, err := buildHistorySinks(flags)
	if err != nil {
		return err
	}
	sup.SetHistorySinks(sinks...)
	defer closeSinks(sinks)

	tail := logbus.NewTail(sup.Logs(), logbus.DefaultTailLines)
	defer tail.Close()

	mirror := logbus.NewFileMirror(sup.Logs(), logger.Config{Dir: flags.LogDir}, log)
	if mirror != nil {
		defer mirror.Close()
	}

	restoreProjects(sup, registry, log)

	router := server.NewRouter(sup, registry, tail, flags.BasePath)
	srv := server.NewServer(flags.Listen, router)
	log.Info("daemon listening", "addr", flags.Listen, "base_path", flags.BasePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	// Stop accepting requests first, then tear down the process tree. The
	// daemon must not exit until every child group has been terminated.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sup.Shutdown()
	log.Info("shutdown complete")
	return nil
}

func buildHistorySinks(flags *ServeFlags) ([]history.Sink, error) {
	var sinks []history.Sink
	if flags.HistoryDSN != "" {
		s, err := history.NewSQLSinkFromDSN(flags.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if flags.ClickHouseAddr != "" {
		s, err := history.NewClickHouseSink(flags.ClickHouseAddr, flags.ClickHouseDB,
			flags.ClickHouseUser, flags.ClickHousePass, "process_history")
		if err != nil {
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}
		if err := s.EnsureSchema(context.Background()); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []history.Sink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}

// restoreProjects re-registers everything from the registry. A project whose
// directory or config went away keeps its registry entry but is skipped;
// removal stays an explicit user action.
func restoreProjects(sup *supervisor.Supervisor, registry store.Store, log *slog.Logger) {
	projects, err := registry.ListProjects(context.Background())
	if err != nil {
		log.Warn("list projects from registry", "error", err)
		return
	}
	for _, p := range projects {
		pc, err := config.Load(p.Path)
		if err != nil {
			pc = proc.ProjectConfig{Name: p.Name, Processes: config.Detect(p.Path)}
		}
		if err := sup.Apply(p.Path, pc); err != nil {
			log.Warn("restore project", "path", p.Path, "error", err)
			continue
		}
		log.Info("restored project", "path", p.Path, "processes", len(pc.Processes))
	}
}
