// Package queueaccess gives CLI commands a queue backend that works with or
// without a running daemon. When the daemon API answers, operations go
// through it; otherwise the queue database is opened directly.
package queueaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"recast/internal/api"
	"recast/internal/convert"
	"recast/internal/queue"
)

// Access provides the queue operations shared by both backends.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueJob, error)
	Describe(ctx context.Context, id int64) (*api.QueueJob, error)
	Enqueue(ctx context.Context, sourcePath, outputPath string, settings convert.Settings) (*api.QueueJob, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

// NewAPIAccess returns an Access that talks to a running daemon.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by the queue database directly.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store, service: api.NewQueueService(store)}
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) Stats(ctx context.Context) (map[string]int, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Workflow.QueueStats, nil
}

func (a *apiAccess) List(ctx context.Context, statuses []string) ([]api.QueueJob, error) {
	resp, err := a.client.Queue(ctx, statuses)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *apiAccess) Describe(ctx context.Context, id int64) (*api.QueueJob, error) {
	return a.client.DescribeJob(ctx, id)
}

func (a *apiAccess) Enqueue(ctx context.Context, sourcePath, outputPath string, settings convert.Settings) (*api.QueueJob, error) {
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return a.client.Enqueue(ctx, api.EnqueueRequest{
		SourcePath: sourcePath,
		OutputPath: outputPath,
		Settings:   payload,
	})
}

// Cancel mirrors the store semantics: a job that is missing or already
// terminal reports false rather than an error.
func (a *apiAccess) Cancel(ctx context.Context, id int64) (bool, error) {
	err := a.client.CancelJob(ctx, id)
	switch api.ErrorStatus(err) {
	case http.StatusNotFound, http.StatusConflict:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *apiAccess) Remove(ctx context.Context, id int64) (bool, error) {
	err := a.client.RemoveJob(ctx, id)
	if api.ErrorStatus(err) == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type storeAccess struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueJob, error) {
	var filters []queue.Status
	for _, raw := range statuses {
		if parsed, ok := queue.ParseStatus(raw); ok {
			filters = append(filters, parsed)
		}
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.QueueJob, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Enqueue(ctx context.Context, sourcePath, outputPath string, settings convert.Settings) (*api.QueueJob, error) {
	job, err := a.store.Enqueue(ctx, sourcePath, outputPath, settings)
	if err != nil {
		return nil, err
	}
	dto := api.FromJob(job)
	return &dto, nil
}

func (a *storeAccess) Cancel(ctx context.Context, id int64) (bool, error) {
	return a.store.RequestCancel(ctx, id)
}

func (a *storeAccess) Remove(ctx context.Context, id int64) (bool, error) {
	return a.store.Remove(ctx, id)
}
