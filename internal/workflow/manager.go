package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/notifications"
	"recast/internal/queue"
	"recast/internal/stage"
)

// stageName labels the conversion stage in logs, health maps, and
// stage-scoped contexts.
const stageName = "convert"

// stopGracePeriod is how long Stop waits for the in-flight job before
// cancelling it.
const stopGracePeriod = 10 * time.Second

// Manager coordinates queue processing with the configured stage handler.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	logger        *slog.Logger
	notifier      notifications.Service
	handler       stage.Handler
	pollInterval  time.Duration
	retryInterval time.Duration
	stopGrace     time.Duration

	mu      sync.RWMutex
	running bool
	paused  bool
	quit    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job

	queueActive bool
	queueStart  time.Time
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, handler stage.Handler) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, handler, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, handler stage.Handler, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		notifier:      notifier,
		handler:       handler,
		pollInterval:  time.Duration(cfg.Queue.PollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Queue.ErrorRetryInterval) * time.Second,
		stopGrace:     stopGracePeriod,
	}
}

// Pause stops the manager from claiming new jobs. The in-flight job keeps
// running. Reports whether the call changed the state.
func (m *Manager) Pause(ctx context.Context) bool {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return false
	}
	m.paused = true
	m.mu.Unlock()

	m.log().Info("queue processing paused")
	m.publish(ctx, notifications.EventQueuePaused, nil)
	return true
}

// Resume lets the manager claim jobs again. Reports whether the call
// changed the state.
func (m *Manager) Resume(ctx context.Context) bool {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return false
	}
	m.paused = false
	m.mu.Unlock()

	m.log().Info("queue processing resumed")
	m.publish(ctx, notifications.EventQueueResumed, nil)
	return true
}

// Paused reports whether job claiming is suspended.
func (m *Manager) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Running reports whether the processing loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) log() *slog.Logger {
	return logging.NewComponentLogger(m.logger, "workflow-manager")
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copied := *job
		m.lastJob = &copied
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
