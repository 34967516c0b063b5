package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"recast/internal/api"
	"recast/internal/config"
	"recast/internal/daemonctl"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/queueaccess"
)

// commandContext carries lazily initialized state shared across the command
// tree: the resolved configuration and a stderr logger built from it.
type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configValue returns the loaded configuration. PersistentPreRunE has already
// resolved it for every command that does not skip config loading.
func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureLogger builds a console logger on stderr so command output on stdout
// stays clean. The level follows --log-level, then the configured level.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := c.logLevel()
		if level == "" {
			level = cfg.Logging.Level
		}
		logger, err := logging.New(logging.Options{
			Level:       level,
			Format:      "console",
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: c.configPath(),
		LogLevel:   c.logLevel(),
	}
}

// apiClient returns a client for the configured daemon bind address. It does
// not probe the daemon; callers see an error on first use when it is down.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("daemon API is not configured; set paths.api_bind")
	}
	return api.NewClient(bind), nil
}

// withQueueAccess opens the queue backend, preferring the daemon API when one
// answers, and closes the fallback store afterwards.
func (c *commandContext) withQueueAccess(cmd *cobra.Command, fn func(session queueaccess.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := queueaccess.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

// withQueueStore opens the queue database directly for maintenance verbs
// that have no API route.
func (c *commandContext) withQueueStore(fn func(store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// withHistoryStore opens the history store for a single command invocation.
// The daemon holds the store open while running, so mutations require it to
// be stopped first.
func (c *commandContext) withHistoryStore(fn func(store *history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.NewStore(cfg.Paths.HistoryDir, cfg.History.MaxEntries)
	if err != nil {
		return fmt.Errorf("open history store (stop the daemon if it is running): %w", err)
	}
	defer store.Close()
	return fn(store)
}

// shouldSkipConfig reports whether the command or any of its parents opts out
// of configuration loading.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// wrapDaemonError adds a start hint to transport failures while passing API
// status errors through untouched.
func wrapDaemonError(err error) error {
	if err == nil || api.ErrorStatus(err) != 0 {
		return err
	}
	return fmt.Errorf("%w; is the daemon running? start it with `recast start`", err)
}
