package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recast/internal/fileutil"
	"recast/internal/logging"
	"recast/internal/services/ffmpeg"
)

// ProbeFunc resolves a source file's duration in milliseconds. Implementations
// return 0 when the duration cannot be determined; probing never fails a
// conversion on its own.
type ProbeFunc func(ctx context.Context, sourcePath string) int64

// Job describes one conversion request.
type Job struct {
	SourcePath string
	OutputPath string
	Settings   Settings

	// KnownDurationMs is a caller-supplied duration hint used when probing
	// the source fails.
	KnownDurationMs int64

	// ExtraArgs are appended verbatim before the output path, after the
	// generated arguments.
	ExtraArgs []string
}

// Orchestrator launches conversions and exposes each one as a cancellable
// event stream.
type Orchestrator struct {
	engine ffmpeg.Client
	probe  ProbeFunc
	logger *slog.Logger
}

// NewOrchestrator constructs an orchestrator around an engine client. probe
// may be nil when source durations are always supplied by the caller; logger
// may be nil to disable logging.
func NewOrchestrator(engine ffmpeg.Client, probe ProbeFunc, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		engine: engine,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "convert"),
	}
}

// Start validates the job and launches it, returning the job's handle. Job
// level failures, including invalid settings, are reported through the
// handle's event stream as a terminal failed event rather than an error
// return.
func (o *Orchestrator) Start(ctx context.Context, job Job) (*Handle, error) {
	if o.engine == nil {
		return nil, errors.New("engine client required")
	}
	runCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(cancel)
	go o.run(runCtx, job, handle)
	return handle, nil
}

func (o *Orchestrator) run(ctx context.Context, job Job, handle *Handle) {
	defer handle.cancel()

	logger := o.logger.With(logging.String("conversion_id", handle.id.String()))

	args, err := BuildArgs(job.SourcePath, job.OutputPath, job.Settings)
	if err != nil {
		logger.Error("conversion rejected", logging.Error(err), logging.String("source", job.SourcePath))
		handle.finish(Progress{
			Status:  StatusFailed,
			Message: "invalid conversion request",
			Error:   err.Error(),
		})
		return
	}
	if len(job.ExtraArgs) > 0 {
		args = insertBeforeOutput(args, job.ExtraArgs)
	}

	handle.push(Progress{Status: StatusStarting, Message: "starting conversion"})
	logger.Info("conversion started",
		logging.String("source", job.SourcePath),
		logging.String("output", job.OutputPath),
		logging.String("format", job.Settings.OutputFormat))

	tracker := &progressTracker{totalMs: o.resolveDuration(ctx, job, logger)}
	sampler := logging.NewProgressSampler(5)

	result, runErr := o.engine.Run(ctx, ffmpeg.RunSpec{
		Args: args,
		OnStats: func(s ffmpeg.Stats) {
			event, ok := tracker.sample(s)
			if !ok {
				return
			}
			if sampler.ShouldLog(event.Ratio*100, string(event.Status)) {
				logger.Debug("conversion progress",
					logging.Float64("ratio", event.Ratio),
					logging.Int64("processed_ms", event.TimeProcessedMs),
					logging.Float64("speed", event.Speed))
			}
			handle.push(event)
		},
		OnLog: func(line string) {
			logger.Debug("engine output", logging.String("line", line))
		},
	})

	switch {
	case result.Cancelled || ctx.Err() != nil:
		logger.Info("conversion cancelled", logging.String("source", job.SourcePath))
		handle.finish(Progress{
			Status:          StatusCancelled,
			Ratio:           tracker.high,
			Message:         "conversion cancelled",
			TimeProcessedMs: tracker.processedMs,
		})
		o.removePartialOutput(job.OutputPath, logger)
	case runErr != nil:
		logger.Error("conversion failed to run", logging.Error(runErr))
		handle.finish(Progress{
			Status:          StatusFailed,
			Ratio:           tracker.high,
			Message:         "conversion failed",
			TimeProcessedMs: tracker.processedMs,
			Error:           runErr.Error(),
		})
	case result.ExitCode == 0:
		size := fileutil.FileSize(job.OutputPath)
		logger.Info("conversion completed",
			logging.String("output", job.OutputPath),
			logging.Int64("output_bytes", size))
		handle.finish(Progress{
			Status:          StatusCompleted,
			Ratio:           1,
			Message:         "conversion completed",
			TimeProcessedMs: tracker.processedMs,
			OutputPath:      job.OutputPath,
			OutputSizeBytes: size,
		})
	default:
		detail := failureDetail(result)
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
			logging.Int("exit_code", result.ExitCode),
			logging.String(logging.FieldErrorHint, "run with debug logging to capture full engine output"))
		handle.finish(Progress{
			Status:          StatusFailed,
			Ratio:           tracker.high,
			Message:         "conversion failed",
			TimeProcessedMs: tracker.processedMs,
			Error:           detail,
		})
	}
}

// resolveDuration prefers a fresh probe over the caller's hint; either may
// be unavailable, in which case converting ticks are suppressed and only
// the starting and terminal events are delivered.
func (o *Orchestrator) resolveDuration(ctx context.Context, job Job, logger *slog.Logger) int64 {
	totalMs := job.KnownDurationMs
	if o.probe != nil {
		if probed := o.probe(ctx, job.SourcePath); probed > 0 {
			totalMs = probed
		}
	}
	if totalMs <= 0 {
		logger.Warn("source duration unknown",
			logging.String("source", job.SourcePath),
			logging.String(logging.FieldImpact, "progress percentage unavailable for this conversion"))
	}
	return totalMs
}

func (o *Orchestrator) removePartialOutput(path string, logger *slog.Logger) {
	if !fileutil.Exists(path) {
		return
	}
	if err := fileutil.RemoveIfExists(path); err != nil {
		logger.Warn("could not remove partial output", logging.String("path", path), logging.Error(err))
		return
	}
	logger.Info("partial output removed", logging.String("path", path))
}

func failureDetail(result ffmpeg.RunResult) string {
	detail := fmt.Sprintf("engine exited with code %d", result.ExitCode)
	if result.LogTail != "" {
		detail += ": " + result.LogTail
	}
	return detail
}

// insertBeforeOutput splices extra engine arguments in ahead of the output
// path, which must stay last.
func insertBeforeOutput(args, extra []string) []string {
	out := make([]string, 0, len(args)+len(extra))
	out = append(out, args[:len(args)-1]...)
	out = append(out, extra...)
	return append(out, args[len(args)-1])
}
