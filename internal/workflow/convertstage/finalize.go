package convertstage

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"recast/internal/catalog"
	"recast/internal/convert"
	"recast/internal/fileutil"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/media/thumbnail"
	"recast/internal/notifications"
	"recast/internal/queue"
	"recast/internal/services"
)

func (c *Converter) finishCompleted(ctx context.Context, job *queue.Job, settings convert.Settings, stagingPath string, durationMs int64, start time.Time, logger *slog.Logger) error {
	if err := fileutil.MoveFile(stagingPath, job.OutputPath); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"finalize output",
			"Failed to move the converted file into the output directory",
			err,
		)
	}
	outputSize := fileutil.FileSize(job.OutputPath)

	if err := c.store.MarkCompleted(ctx, job.ID, job.OutputPath); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"persist completion",
			"Conversion finished but the queue update failed",
			err,
		)
	}

	entry := c.recordHistory(logger, history.Entry{
		SourcePath:       job.SourcePath,
		OutputPath:       job.OutputPath,
		OutputFormat:     settings.OutputFormat,
		Settings:         settings,
		Status:           convert.StatusCompleted,
		SourceDurationMs: durationMs,
		OutputSizeBytes:  outputSize,
		ElapsedMs:        time.Since(start).Milliseconds(),
	})
	c.generateThumbnail(ctx, entry, settings, durationMs, logger)

	c.publish(ctx, logger, notifications.EventJobCompleted, notifications.Payload{
		"source": job.SourceName(),
		"output": job.OutputPath,
	})
	c.broadcastJob(ctx, job.ID)

	logger.Info("conversion stage summary",
		logging.String("output", job.OutputPath),
		logging.Int64("output_bytes", outputSize),
		logging.Int64("source_duration_ms", durationMs),
		logging.Duration("stage_duration", time.Since(start)))
	return nil
}

func (c *Converter) finishCancelled(ctx context.Context, job *queue.Job, settings convert.Settings, durationMs int64, start time.Time, logger *slog.Logger) error {
	if err := c.store.MarkCancelled(ctx, job.ID); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"persist cancellation",
			"Conversion was cancelled but the queue update failed",
			err,
		)
	}
	if c.cfg.History.KeepFailures {
		c.recordHistory(logger, history.Entry{
			SourcePath:       job.SourcePath,
			OutputFormat:     settings.OutputFormat,
			Settings:         settings,
			Status:           convert.StatusCancelled,
			SourceDurationMs: durationMs,
			ElapsedMs:        time.Since(start).Milliseconds(),
		})
	}
	c.publish(ctx, logger, notifications.EventJobCancelled, notifications.Payload{
		"source": job.SourceName(),
	})
	c.broadcastJob(ctx, job.ID)

	logger.Info("conversion cancelled by request",
		logging.Duration("stage_duration", time.Since(start)))
	return nil
}

func (c *Converter) finishFailed(ctx context.Context, job *queue.Job, settings convert.Settings, terminal convert.Progress, durationMs int64, start time.Time, logger *slog.Logger) error {
	message := strings.TrimSpace(terminal.Message)
	if message == "" {
		message = "conversion failed"
	}
	detail := strings.TrimSpace(terminal.Error)

	if err := c.store.MarkFailed(ctx, job.ID, message, detail); err != nil {
		logger.Error("failed to persist conversion failure", logging.Error(err))
	}
	if c.cfg.History.KeepFailures {
		c.recordHistory(logger, history.Entry{
			SourcePath:       job.SourcePath,
			OutputFormat:     settings.OutputFormat,
			Settings:         settings,
			Status:           convert.StatusFailed,
			ErrorMessage:     firstNonEmpty(detail, message),
			SourceDurationMs: durationMs,
			ElapsedMs:        time.Since(start).Milliseconds(),
		})
	}
	c.publish(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"source": job.SourceName(),
		"error":  firstNonEmpty(detail, message),
	})
	c.broadcastJob(ctx, job.ID)

	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	return services.Wrap(services.ErrExternalTool, "convert", "engine run", message, cause)
}

func (c *Converter) recordHistory(logger *slog.Logger, entry history.Entry) history.Entry {
	if c.history == nil {
		return history.Entry{}
	}
	stored, err := c.history.Add(entry)
	if err != nil {
		logger.Warn("failed to record history entry", logging.Error(err))
		return history.Entry{}
	}
	return stored
}

// generateThumbnail extracts a preview frame for completed video
// conversions. Failures only cost the preview.
func (c *Converter) generateThumbnail(ctx context.Context, entry history.Entry, settings convert.Settings, durationMs int64, logger *slog.Logger) {
	if c.history == nil || entry.ID == "" {
		return
	}
	if !c.cfg.History.Thumbnails || settings.Kind != catalog.KindVideo {
		return
	}

	thumbPath := filepath.Join(c.cfg.ThumbnailDir(), entry.ID+".jpg")
	opts := thumbnail.Options{Binary: c.cfg.FFmpegBinary()}
	if durationMs > 0 {
		opts.Offset = time.Duration(durationMs/10) * time.Millisecond
	}
	if err := thumbnail.Generate(ctx, entry.OutputPath, thumbPath, opts); err != nil {
		logger.Debug("thumbnail generation failed", logging.Error(err))
		return
	}
	if err := c.history.SetThumbnail(entry.ID, thumbPath); err != nil {
		logger.Warn("failed to attach thumbnail", logging.Error(err))
	}
}

func (c *Converter) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
