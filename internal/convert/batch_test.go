package convert_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"recast/internal/catalog"
	"recast/internal/convert"
	"recast/internal/services/ffmpeg"
)

func batchJobs(t *testing.T, sources ...string) []convert.Job {
	t.Helper()
	dir := t.TempDir()
	jobs := make([]convert.Job, 0, len(sources))
	for i, source := range sources {
		jobs = append(jobs, convert.Job{
			SourcePath: source,
			OutputPath: filepath.Join(dir, "out", filepath.Base(source)+"-"+string(rune('a'+i))+".mp4"),
			Settings:   convert.DefaultSettings(catalog.KindVideo),
		})
	}
	return jobs
}

func TestBatchRunsStrictlySequentially(t *testing.T) {
	var active, maxActive int32
	var order []string

	engine := &stubEngine{
		invoke: func(ctx context.Context, spec ffmpeg.RunSpec) (ffmpeg.RunResult, error) {
			current := atomic.AddInt32(&active, 1)
			if current > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, current)
			}
			order = append(order, spec.Args[2])
			spec.OnStats(ffmpeg.Stats{ProcessedMs: 30000})
			atomic.AddInt32(&active, -1)
			return ffmpeg.RunResult{ExitCode: 0}, nil
		},
	}
	orchestrator := convert.NewOrchestrator(engine, fixedProbe(60000), nil)
	batch := convert.NewBatch(orchestrator, convert.WithJobDelay(0))

	jobs := batchJobs(t, "/in/a.mkv", "/in/b.mkv", "/in/c.mkv")
	var observedIndexes []int
	results, err := batch.Run(context.Background(), jobs, func(index int, p convert.Progress) {
		observedIndexes = append(observedIndexes, index)
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, result := range results {
		if !result.Succeeded() {
			t.Fatalf("job %d did not succeed: %+v", i, result.Terminal)
		}
	}
	if atomic.LoadInt32(&maxActive) != 1 {
		t.Fatalf("expected at most one active conversion, saw %d", maxActive)
	}
	if order[0] != "/in/a.mkv" || order[1] != "/in/b.mkv" || order[2] != "/in/c.mkv" {
		t.Fatalf("expected submission order preserved, got %v", order)
	}
	last := 0
	for _, index := range observedIndexes {
		if index < last {
			t.Fatalf("observer saw index %d after %d", index, last)
		}
		last = index
	}
}

func TestBatchContinuesAfterFailedJob(t *testing.T) {
	engine := &stubEngine{
		invoke: func(ctx context.Context, spec ffmpeg.RunSpec) (ffmpeg.RunResult, error) {
			if spec.Args[2] == "/in/broken.mkv" {
				return ffmpeg.RunResult{ExitCode: 1, LogTail: "corrupt input"}, nil
			}
			return ffmpeg.RunResult{ExitCode: 0}, nil
		},
	}
	orchestrator := convert.NewOrchestrator(engine, fixedProbe(60000), nil)
	batch := convert.NewBatch(orchestrator, convert.WithJobDelay(0))

	jobs := batchJobs(t, "/in/ok1.mkv", "/in/broken.mkv", "/in/ok2.mkv")
	results, err := batch.Run(context.Background(), jobs, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected all jobs to run, got %d results", len(results))
	}
	if !results[0].Succeeded() || results[1].Succeeded() || !results[2].Succeeded() {
		t.Fatalf("expected ok, failed, ok; got %+v", results)
	}
	if results[1].Terminal.Error == "" {
		t.Fatal("failed job must carry an error")
	}
}

func TestBatchStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine := &stubEngine{
		invoke: func(runCtx context.Context, spec ffmpeg.RunSpec) (ffmpeg.RunResult, error) {
			cancel()
			<-runCtx.Done()
			return ffmpeg.RunResult{Cancelled: true}, nil
		},
	}
	orchestrator := convert.NewOrchestrator(engine, fixedProbe(60000), nil)
	batch := convert.NewBatch(orchestrator, convert.WithJobDelay(0))

	jobs := batchJobs(t, "/in/a.mkv", "/in/b.mkv")
	results, err := batch.Run(ctx, jobs, nil)
	if err == nil {
		t.Fatal("expected context error from an aborted batch")
	}
	if len(results) != 1 {
		t.Fatalf("expected only the first job to produce a result, got %d", len(results))
	}
	if results[0].Terminal.Status != convert.StatusCancelled {
		t.Fatalf("expected cancelled terminal, got %+v", results[0].Terminal)
	}
	if engine.callCount() != 1 {
		t.Fatalf("expected the second job to never launch, got %d calls", engine.callCount())
	}
}
