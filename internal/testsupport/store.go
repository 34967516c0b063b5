package testsupport

import (
	"context"
	"testing"

	"recast/internal/catalog"
	"recast/internal/config"
	"recast/internal/convert"
	"recast/internal/queue"
)

// MustOpenStore opens the queue store for cfg and closes it when the test
// ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewJob enqueues a video job with default settings for tests.
func NewJob(t testing.TB, store *queue.Store, sourcePath string) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), sourcePath, "", convert.DefaultSettings(catalog.KindVideo))
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
