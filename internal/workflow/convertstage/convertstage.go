package convertstage

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"recast/internal/config"
	"recast/internal/convert"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/media/ffprobe"
	"recast/internal/notifications"
	"recast/internal/queue"
	"recast/internal/services/ffmpeg"
	"recast/internal/stage"
)

// inspectSource is the ffprobe function used by the package. It is a
// package-level variable so tests can override it.
var inspectSource = ffprobe.Inspect

// SetProbeForTests overrides the ffprobe runner during tests.
func SetProbeForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := inspectSource
	inspectSource = fn
	return func() {
		inspectSource = previous
	}
}

// Broadcaster pushes live job updates to connected clients. The API hub
// satisfies this; a nil broadcaster disables pushes.
type Broadcaster interface {
	BroadcastProgress(job *queue.Job, event convert.Progress)
	BroadcastJob(job *queue.Job)
}

// Converter is the conversion stage handler.
type Converter struct {
	store       *queue.Store
	cfg         *config.Config
	logger      *slog.Logger
	base        *slog.Logger
	engine      ffmpeg.Client
	notifier    notifications.Service
	history     *history.Store
	broadcaster Broadcaster
}

// New constructs the conversion handler with the engine and notifier derived
// from configuration.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Converter {
	engine := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return NewWithDependencies(cfg, store, logger, engine, notifications.NewService(cfg))
}

// NewWithDependencies allows injecting custom dependencies (used for tests).
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, engine ffmpeg.Client, notifier notifications.Service) *Converter {
	c := &Converter{
		store:    store,
		cfg:      cfg,
		engine:   engine,
		notifier: notifier,
	}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the handler's logging destination while preserving
// component labeling. The unlabeled logger is kept for the orchestrator,
// which applies its own component.
func (c *Converter) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	c.base = logger
	c.logger = logging.NewComponentLogger(logger, "convert-stage")
}

// SetHistory attaches the history store recording finished conversions.
func (c *Converter) SetHistory(store *history.Store) {
	c.history = store
}

// SetBroadcaster attaches the live update sink.
func (c *Converter) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// HealthCheck verifies the conversion dependencies.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	const name = "convert"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if c.engine == nil {
		return stage.Unhealthy(name, "engine client unavailable")
	}
	if _, err := exec.LookPath(c.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthyf(name, "ffmpeg binary %q not found", c.cfg.FFmpegBinary())
	}
	if _, err := exec.LookPath(c.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthyf(name, "ffprobe binary %q not found", c.cfg.FFprobeBinary())
	}
	return stage.Healthy(name)
}

func (c *Converter) broadcastProgress(job *queue.Job, event convert.Progress) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.BroadcastProgress(job, event)
}

func (c *Converter) broadcastJob(ctx context.Context, id int64) {
	if c.broadcaster == nil {
		return
	}
	job, err := c.store.Get(ctx, id)
	if err != nil || job == nil {
		return
	}
	c.broadcaster.BroadcastJob(job)
}
