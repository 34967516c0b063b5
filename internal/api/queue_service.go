package api

import (
	"context"

	"recast/internal/queue"
)

// QueueReader is the slice of the queue store the read-only API needs.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Get(ctx context.Context, id int64) (*queue.Job, error)
}

// QueueService answers queue queries with wire DTOs. A nil service answers
// every query with empty results so handlers need no guards.
type QueueService struct {
	store QueueReader
}

// NewQueueService wraps store; a nil store yields a nil service.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

func (s *QueueService) ready() bool {
	return s != nil && s.store != nil
}

// List returns jobs in the given statuses, or every job with no filter.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueJob, error) {
	if !s.ready() {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if !s.ready() {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches one job; an unknown id yields (nil, nil).
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueJob, error) {
	if !s.ready() {
		return nil, nil
	}
	job, err := s.store.Get(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}
