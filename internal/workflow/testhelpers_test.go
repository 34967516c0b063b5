package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"recast/internal/config"
	"recast/internal/notifications"
	"recast/internal/queue"
	"recast/internal/stage"
	"recast/internal/testsupport"
)

type stubHandler struct {
	prepareHook func(*queue.Job)
	executeFunc func(context.Context, *queue.Job) error
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubHandler() *stubHandler {
	return &stubHandler{health: stage.Healthy("convert")}
}

func (s *stubHandler) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubHandler) Execute(ctx context.Context, job *queue.Job) error {
	if s.executeFunc != nil {
		return s.executeFunc(ctx, job)
	}
	return s.executeErr
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return s.health
}

type queueCompletion struct {
	processed int
	failed    int
}

// recordingNotifier captures published events for assertions. The manager
// publishes from its own goroutine, so access is guarded.
type recordingNotifier struct {
	mu        sync.Mutex
	events    []notifications.Event
	starts    []int
	completes []queueCompletion
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	switch event {
	case notifications.EventQueueStarted:
		if count, ok := payload["count"].(int); ok {
			r.starts = append(r.starts, count)
		}
	case notifications.EventQueueCompleted:
		var completion queueCompletion
		if v, ok := payload["processed"].(int); ok {
			completion.processed = v
		}
		if v, ok := payload["failed"].(int); ok {
			completion.failed = v
		}
		r.completes = append(r.completes, completion)
	}
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, seen := range r.events {
		if seen == event {
			total++
		}
	}
	return total
}

func (r *recordingNotifier) queueStarts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.starts))
	copy(out, r.starts)
	return out
}

func (r *recordingNotifier) queueCompletions() []queueCompletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queueCompletion, len(r.completes))
	copy(out, r.completes)
	return out
}

func managerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Queue.PollInterval = 0
	cfg.Queue.ErrorRetryInterval = 0
	return cfg
}

func waitForJobStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %d to reach %s", id, want)
		default:
		}
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}
