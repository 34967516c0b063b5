// Package daemonrun wires configuration, stores, workflow, and the API
// server into a running recast daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"recast/internal/api"
	"recast/internal/config"
	"recast/internal/daemon"
	"recast/internal/deps"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/notifications"
	"recast/internal/preflight"
	"recast/internal/queue"
	"recast/internal/workflow"
	"recast/internal/workflow/convertstage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the recast daemon and blocks until the process receives SIGINT
// or SIGTERM. The queue store, history store, API server, and media watcher
// are shut down in order before Run returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "recastd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	historyStore, err := history.NewStore(cfg.Paths.HistoryDir, cfg.History.MaxEntries)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		_ = store.Close()
		return err
	}
	defer historyStore.Close()

	notifier := notifications.NewService(cfg)
	hub := api.NewHub(logger)

	converter := convertstage.New(cfg, store, logger)
	converter.SetHistory(historyStore)
	converter.SetBroadcaster(hub)

	manager := workflow.NewManagerWithNotifier(cfg, store, logger, converter, notifier)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	d.SetHistory(historyStore)
	d.SetHub(hub)
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("recast daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		overridden := *cfg
		overridden.Logging.Level = level
		return logging.NewFromConfig(&overridden)
	}
	return logging.NewFromConfig(cfg)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, check := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, check.Remedy),
		)
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
