package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"recast/internal/logging"
	"recast/internal/notifications"
	"recast/internal/queue"
	"recast/internal/services"
)

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	jobCtx := services.WithRequestID(services.WithStage(services.WithJobID(ctx, job.ID), stageName), uuid.NewString())
	jobLogger := logging.WithContext(jobCtx, logger)

	start := time.Now()
	jobLogger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source_file", strings.TrimSpace(job.SourcePath)),
	)

	err := m.runHandler(jobCtx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			jobLogger.Debug("job interrupted by shutdown")
			return err
		}
		m.setLastError(err)
		m.recordFailure(jobCtx, jobLogger, job, err)
	}

	final := job
	if latest, getErr := m.store.Get(jobCtx, job.ID); getErr == nil && latest != nil {
		final = latest
	}
	m.setLastJob(final)

	jobLogger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finish"),
		logging.String("status", string(final.Status)),
		logging.Duration("job_duration", time.Since(start)),
	)
	m.checkQueueCompletion(ctx)
	return nil
}

// runHandler drives Prepare and Execute, converting panics into job errors
// so one bad conversion cannot take the daemon down.
func (m *Manager) runHandler(ctx context.Context, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversion panic: %v", r)
		}
	}()

	if err := m.handler.Prepare(ctx, job); err != nil {
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job preparation: %w", err)
	}
	return m.handler.Execute(ctx, job)
}

// recordFailure persists a terminal status for errors the handler did not
// persist itself: Prepare failures, panics, and storage errors. When the
// handler already marked the job, the fresh read keeps this a no-op.
func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	message := failureMessage(jobErr)
	logger.Error("job failed",
		logging.Error(jobErr),
		logging.String(logging.FieldEventType, "job_failure"),
		logging.Alert("job_failure"),
		logging.String("error_message", message),
	)

	latest, err := m.store.Get(ctx, job.ID)
	if err != nil || latest == nil {
		if err != nil {
			logger.Error("failed to re-read job after failure", logging.Error(err))
		}
		latest = job
	}
	if latest.Status != queue.StatusRunning {
		return
	}

	if err := m.store.MarkFailed(ctx, job.ID, message, latest.LogTail); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"source": job.SourceName(),
		"error":  jobErr,
	})
}

func failureMessage(err error) string {
	if err == nil {
		return "conversion failed without error detail"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "conversion failed"
	}
	return message
}
