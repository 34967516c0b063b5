package services

import "context"

type ctxKey int

const (
	ctxJobID ctxKey = iota
	ctxStage
	ctxRequestID
)

// WithJobID stores the queue job identifier in ctx so log lines emitted
// anywhere below can be tied back to the job.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxJobID, id)
}

// JobIDFromContext reports the job identifier stored by WithJobID.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxJobID).(int64)
	return id, ok
}

// WithStage stores the workflow stage name in ctx. A blank stage leaves ctx
// unchanged.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxStage, stage)
}

// StageFromContext reports the stage name stored by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(ctxStage).(string)
	return stage, ok && stage != ""
}

// WithRequestID stores a correlation identifier in ctx. A blank id leaves ctx
// unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext reports the correlation identifier stored by
// WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxRequestID).(string)
	return id, ok && id != ""
}
