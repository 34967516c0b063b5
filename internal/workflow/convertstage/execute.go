package convertstage

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"recast/internal/catalog"
	"recast/internal/convert"
	"recast/internal/fileutil"
	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/services"
	"recast/internal/stage"
)

const (
	// progressPersistInterval throttles queue writes during conversion;
	// broadcasts and logs are not throttled here.
	progressPersistInterval = 2 * time.Second
	cancelPollInterval      = time.Second
)

// Execute runs the conversion into the staging directory and persists the
// terminal outcome. A context cancelled by daemon shutdown aborts the engine
// and returns without persisting, leaving the job running so startup
// recovery can requeue it.
func (c *Converter) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	start := time.Now()

	settings, err := stage.JobSettings(job)
	if err != nil {
		return err
	}

	var durationMs int64
	probed, probeErr := inspectSource(ctx, c.cfg.FFprobeBinary(), job.SourcePath)
	if probeErr != nil {
		logger.Warn("source inspection failed; continuing without duration",
			logging.Error(probeErr),
			logging.String(logging.FieldImpact, "progress percentage unavailable for this conversion"))
	} else {
		durationMs = probed.DurationMs()
		if settings.Kind == catalog.KindVideo && !probed.HasVideo() {
			return services.Wrap(
				services.ErrValidation,
				"convert",
				"inspect source",
				"Source has no video stream; choose an audio output format",
				nil,
			)
		}
	}

	stagingPath := job.StagingPath(c.cfg.Paths.StagingDir)
	if stagingPath == "" {
		return services.Wrap(
			services.ErrConfiguration,
			"convert",
			"resolve staging path",
			"Staging directory not configured; set staging_dir",
			nil,
		)
	}
	if err := fileutil.EnsureDir(filepath.Dir(stagingPath)); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"convert",
			"ensure staging dir",
			"Failed to create the staging directory; set staging_dir to a writable path",
			err,
		)
	}
	if err := fileutil.RemoveIfExists(stagingPath); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"clean staging file",
			"Failed to remove a stale staging artifact",
			err,
		)
	}

	orchestrator := convert.NewOrchestrator(c.engine, nil, c.base)
	handle, err := orchestrator.Start(ctx, convert.Job{
		SourcePath:      job.SourcePath,
		OutputPath:      stagingPath,
		Settings:        settings,
		KnownDurationMs: durationMs,
		ExtraArgs:       c.cfg.Engine.ExtraArgs,
	})
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"convert",
			"launch conversion",
			"Conversion engine unavailable",
			err,
		)
	}

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go c.watchCancellation(pollCtx, job.ID, handle, logger)

	terminal := c.consumeEvents(ctx, job, handle, logger)
	stopPolling()

	if !terminal.Terminal() {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"read events",
			"Conversion ended without a terminal event",
			nil,
		)
	}

	switch terminal.Status {
	case convert.StatusCompleted:
		return c.finishCompleted(ctx, job, settings, stagingPath, durationMs, start, logger)
	case convert.StatusCancelled:
		if ctx.Err() != nil {
			logger.Debug("conversion interrupted by shutdown")
			return ctx.Err()
		}
		return c.finishCancelled(ctx, job, settings, durationMs, start, logger)
	default:
		return c.finishFailed(ctx, job, settings, terminal, durationMs, start, logger)
	}
}

// consumeEvents drains the handle's event stream, forwarding every event to
// the broadcaster, sampling log lines, and persisting progress at most once
// per persist interval. It returns the terminal event.
func (c *Converter) consumeEvents(ctx context.Context, job *queue.Job, handle *convert.Handle, logger *slog.Logger) convert.Progress {
	sampler := logging.NewProgressSampler(5)
	var terminal convert.Progress
	var lastPersisted time.Time

	for event := range handle.Events() {
		c.broadcastProgress(job, event)
		if event.Terminal() {
			terminal = event
			continue
		}

		if sampler.ShouldLog(event.Ratio*100, string(event.Status)) {
			logger.Info("conversion progress",
				logging.Float64("progress_percent", event.Ratio*100),
				logging.Float64("speed", event.Speed),
				logging.Int64("eta_ms", event.EtaMs))
		}

		if event.Status == convert.StatusConverting {
			now := time.Now()
			if !lastPersisted.IsZero() && now.Sub(lastPersisted) < progressPersistInterval {
				continue
			}
			lastPersisted = now
		}
		if err := c.store.SetProgress(ctx, job.ID, event.Ratio*100, event.Message); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("failed to persist conversion progress", logging.Error(err))
			}
		}
	}
	return terminal
}

// watchCancellation polls the queue for a cancel request and stops the
// running conversion when one arrives.
func (c *Converter) watchCancellation(ctx context.Context, id int64, handle *convert.Handle, logger *slog.Logger) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		requested, err := c.store.CancelRequested(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("cancel request poll failed", logging.Error(err))
			}
			continue
		}
		if requested {
			logger.Info("cancellation requested; stopping conversion")
			handle.Cancel()
			return
		}
	}
}
