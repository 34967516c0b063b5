package workflow

import (
	"context"
	"errors"
	"time"

	"recast/internal/logging"
	"recast/internal/notifications"
	"recast/internal/queue"
)

// publish sends a notification and logs delivery problems at debug level.
// Notification failures never affect queue processing.
func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.log().Debug("daemon shutting down, could not send notification",
				logging.String("event", string(event)))
			return
		}
		m.log().Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}

// onJobStarted flips the queue-active flag and announces the queue run the
// first time a job is claimed after an idle period.
func (m *Manager) onJobStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.log().Debug("daemon shutting down, could not get queue stats for start notification")
		} else {
			m.log().Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "start notification will not be sent"),
			)
		}
		return
	}

	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := stats[queue.StatusPending] + stats[queue.StatusRunning]
	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": count})
}

// checkQueueCompletion announces the end of a queue run once no pending or
// running jobs remain.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.log().Debug("daemon shutting down, could not check queue completion")
		} else {
			m.log().Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "completion notification will not be sent"),
			)
		}
		return
	}
	if stats[queue.StatusPending]+stats[queue.StatusRunning] > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": stats[queue.StatusCompleted],
		"failed":    stats[queue.StatusFailed],
		"duration":  duration,
	})
}
