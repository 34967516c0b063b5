package convert

import (
	"context"
	"time"
)

// defaultJobDelay is the pause between one job's terminal event and the
// next job's launch, giving the filesystem and the engine a moment to
// settle between runs.
const defaultJobDelay = time.Second

// Result pairs a batch job with its terminal event.
type Result struct {
	Job      Job
	Terminal Progress
}

// Succeeded reports whether the job reached the completed state.
func (r Result) Succeeded() bool {
	return r.Terminal.Status == StatusCompleted
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithJobDelay overrides the pause between jobs.
func WithJobDelay(d time.Duration) BatchOption {
	return func(b *Batch) {
		if d >= 0 {
			b.delay = d
		}
	}
}

// Batch runs a list of jobs strictly one at a time. A failed job does not
// stop the batch; every job gets its turn unless the context is cancelled.
type Batch struct {
	orchestrator *Orchestrator
	delay        time.Duration
}

// NewBatch wraps an orchestrator in a sequential runner.
func NewBatch(orchestrator *Orchestrator, opts ...BatchOption) *Batch {
	b := &Batch{orchestrator: orchestrator, delay: defaultJobDelay}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run converts the jobs in order, forwarding every event to observe along
// with the job's index. It returns the collected terminal results; the error
// is non-nil only when the context ended the batch early or a job could not
// be started.
func (b *Batch) Run(ctx context.Context, jobs []Job, observe func(index int, p Progress)) ([]Result, error) {
	results := make([]Result, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		handle, err := b.orchestrator.Start(ctx, job)
		if err != nil {
			return results, err
		}

		var terminal Progress
		for event := range handle.Events() {
			if observe != nil {
				observe(i, event)
			}
			terminal = event
		}
		results = append(results, Result{Job: job, Terminal: terminal})

		if i == len(jobs)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(b.delay):
		}
	}
	return results, nil
}
