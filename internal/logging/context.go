package logging

import (
	"context"
	"log/slog"

	"recast/internal/services"
)

// Canonical structured field keys. Every component logs under these names so
// records from the daemon, the workflow, and the CLI can be filtered with the
// same queries.
const (
	FieldComponent = "component"
	// FieldJobID carries the queue job identifier.
	FieldJobID = "job_id"
	// FieldStage carries the workflow stage name.
	FieldStage = "stage"
	// FieldCorrelationID ties daemon API log lines to a single request.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags anomalies that should stand out in structured output.
	FieldAlert = "alert"
)

// ContextFields extracts the job, stage, and correlation attributes stored in
// ctx by the services package.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger preloaded with whatever ContextFields finds in
// ctx. A nil logger is replaced with a no-op one.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
