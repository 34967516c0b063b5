package workflow

import (
	"context"

	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Paused      bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	paused := m.paused
	lastErr := m.lastErr
	lastJob := m.lastJob
	handler := m.handler
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.log().Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, 1)
	if handler != nil {
		health[stageName] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Paused:      paused,
		QueueStats:  stats,
		StageHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copied := *lastJob
		summary.LastJob = &copied
	}
	return summary
}
