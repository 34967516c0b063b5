package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"recast/internal/api"
	"recast/internal/catalog"
	"recast/internal/config"
	"recast/internal/convert"
	"recast/internal/deps"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/staging"
	"recast/internal/workflow"
)

// ErrJobRunning is returned when a delete targets a job that is still being
// converted. The caller must cancel the job first.
var ErrJobRunning = errors.New("job is running; cancel it before removing")

// Daemon coordinates background conversion processing and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	history  *history.Store
	hub      *api.Hub

	lockPath string
	lock     *flock.Flock

	server  *apiServer
	watcher *watchMonitor

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. SetHistory and
// SetHub attach the optional stores and must be called before Start.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "recastd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	d.watcher = newWatchMonitor(cfg, logger, d.enqueueWatched, wf.Paused)
	return d, nil
}

// SetHistory attaches the conversion history store served by the API.
func (d *Daemon) SetHistory(store *history.Store) {
	d.history = store
}

// SetHub attaches the WebSocket hub served at /api/events.
func (d *Daemon) SetHub(hub *api.Hub) {
	d.hub = hub
}

// Start acquires the daemon lock, requeues jobs stranded by a previous
// shutdown, and launches the workflow manager, API server, and media watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another recast daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if requeued, err := d.store.ResetStuckRunning(d.ctx); err != nil {
		d.logger.Warn("failed to requeue interrupted jobs", logging.Error(err))
	} else if requeued > 0 {
		d.logger.Info("requeued jobs interrupted by previous shutdown",
			logging.Int64("count", requeued))
	}
	d.sweepStaging()

	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start workflow: %w", err)
	}

	if err := d.server.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.releaseStart()
		return fmt.Errorf("start api server: %w", err)
	}

	if err := d.watcher.Start(d.ctx); err != nil {
		d.logger.Warn("failed to start media watcher", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("recast daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// sweepStaging removes scratch files left behind by jobs that are no longer
// pending or running, typically after an unclean shutdown mid-conversion.
func (d *Daemon) sweepStaging() {
	jobs, err := d.store.List(d.ctx, queue.StatusPending, queue.StatusRunning)
	if err != nil {
		d.logger.Warn("staging sweep skipped", logging.Error(err))
		return
	}
	active := make(map[int64]struct{}, len(jobs))
	for _, job := range jobs {
		active[job.ID] = struct{}{}
	}
	staging.Sweep(d.cfg.Paths.StagingDir, func(id int64) bool {
		_, ok := active[id]
		return ok
	}, d.logger)
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.server.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("recast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.hub != nil {
		d.hub.Close()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status including dependency availability.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// Pause suspends queue claiming. Reports whether the call changed the state.
func (d *Daemon) Pause(ctx context.Context) bool {
	return d.workflow.Pause(ctx)
}

// Resume restarts queue claiming. Reports whether the call changed the state.
func (d *Daemon) Resume(ctx context.Context) bool {
	return d.workflow.Resume(ctx)
}

// ListQueue returns queue jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// EnqueueFile validates a source file and inserts a pending conversion job.
func (d *Daemon) EnqueueFile(ctx context.Context, sourcePath, outputPath string, settings convert.Settings) (*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	job, err := d.store.Enqueue(ctx, absPath, strings.TrimSpace(outputPath), settings)
	if err != nil {
		return nil, fmt.Errorf("enqueue file: %w", err)
	}
	d.logger.Info("file queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("source", absPath),
	)
	return job, nil
}

// CancelJob requests cancellation of a queue job. Pending jobs are cancelled
// outright; running jobs are flagged for the workflow's cancellation poller.
func (d *Daemon) CancelJob(ctx context.Context, id int64) (bool, error) {
	if d.store == nil {
		return false, errors.New("queue store unavailable")
	}
	return d.store.RequestCancel(ctx, id)
}

// RemoveJob deletes a job that is not currently converting. It reports
// whether a job was removed and returns ErrJobRunning for in-flight jobs.
func (d *Daemon) RemoveJob(ctx context.Context, id int64) (bool, error) {
	if d.store == nil {
		return false, errors.New("queue store unavailable")
	}
	job, err := d.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if job.Status == queue.StatusRunning {
		return false, ErrJobRunning
	}
	return d.store.Remove(ctx, id)
}

// enqueueWatched inserts a file discovered by the media watcher using the
// configured default settings.
func (d *Daemon) enqueueWatched(ctx context.Context, sourcePath string) (*queue.Job, error) {
	settings := convert.SettingsFromConfig(d.cfg, catalog.KindVideo)
	return d.EnqueueFile(ctx, sourcePath, "", settings)
}
