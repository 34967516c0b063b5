package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"recast/internal/api"
	"recast/internal/convert"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/stage"
	"recast/internal/testsupport"
	"recast/internal/workflow"
)

type readyHandler struct{}

func (readyHandler) Prepare(context.Context, *queue.Job) error { return nil }
func (readyHandler) Execute(context.Context, *queue.Job) error { return nil }
func (readyHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("convert")
}

type queueStoreStub struct {
	jobs []*queue.Job
}

func (s *queueStoreStub) List(context.Context, ...queue.Status) ([]*queue.Job, error) {
	return s.jobs, nil
}

func (s *queueStoreStub) Stats(context.Context) (map[queue.Status]int, error) {
	return map[queue.Status]int{queue.StatusPending: len(s.jobs)}, nil
}

func (s *queueStoreStub) Get(context.Context, int64) (*queue.Job, error) {
	if len(s.jobs) == 0 {
		return nil, nil
	}
	return s.jobs[0], nil
}

func newTestServer(t *testing.T) (*apiServer, *Daemon, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, readyHandler{})
	d, err := New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if d.server == nil {
		t.Fatal("expected api server to be configured")
	}
	return d.server, d, store
}

func apiSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	d, err := New(cfg, store, logger, workflow.NewManager(cfg, store, logger, readyHandler{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if d.server != nil {
		t.Fatal("expected no api server without bind address")
	}
	if err := d.server.start(context.Background()); err != nil {
		t.Fatalf("nil server start should be a no-op, got %v", err)
	}
	d.server.stop()
}

func TestAPIServerHandleQueueList(t *testing.T) {
	stub := &queueStoreStub{jobs: []*queue.Job{{
		ID:         1,
		SourcePath: "/library/example.mkv",
		Status:     queue.StatusPending,
	}}}
	srv := &apiServer{queueSvc: api.NewQueueService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	w := httptest.NewRecorder()
	srv.handleQueue(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].SourceName != "example.mkv" {
		t.Fatalf("unexpected source name: %q", resp.Jobs[0].SourceName)
	}
}

func TestAPIServerEnqueue(t *testing.T) {
	srv, _, store := newTestServer(t)
	source := apiSource(t, "incoming.mp4")

	payload, err := json.Marshal(api.EnqueueRequest{SourcePath: source})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/queue", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.handleQueue(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.QueueJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Job.Status != string(queue.StatusPending) {
		t.Fatalf("expected pending job, got %s", resp.Job.Status)
	}
	if len(resp.Job.Settings) == 0 {
		t.Fatal("expected defaulted settings on the stored job")
	}

	var settings convert.Settings
	if err := json.Unmarshal(resp.Job.Settings, &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.OutputFormat != "mp4" {
		t.Fatalf("expected configured default format, got %q", settings.OutputFormat)
	}

	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 stored job, got %d", len(jobs))
	}
}

func TestAPIServerEnqueueRejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.handleQueue(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader(`{"sourcePath":"/nope/missing.mkv"}`))
	w = httptest.NewRecorder()
	srv.handleQueue(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing source, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/queue", nil)
	w = httptest.NewRecorder()
	srv.handleQueue(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for unsupported method, got %d", w.Code)
	}
}

func TestAPIServerQueueItemLifecycle(t *testing.T) {
	srv, _, store := newTestServer(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, apiSource(t, "lifecycle.mkv"))
	base := "/api/queue/" + strconv.FormatInt(job.ID, 10)

	w := httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodGet, base, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for describe, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodPost, base+"/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for cancel, got %d: %s", w.Code, w.Body.String())
	}
	var cancelResp api.QueueJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &cancelResp); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if cancelResp.Job.Status != string(queue.StatusCancelled) {
		t.Fatalf("expected cancelled job, got %s", cancelResp.Job.Status)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodDelete, base, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for delete, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodGet, base, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty queue, got %d jobs", len(remaining))
	}
}

func TestAPIServerQueueItemGuards(t *testing.T) {
	srv, _, store := newTestServer(t)
	ctx := context.Background()

	testsupport.NewJob(t, store, apiSource(t, "running.mkv"))
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending: job=%v err=%v", claimed, err)
	}
	base := "/api/queue/" + strconv.FormatInt(claimed.ID, 10)

	w := httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodDelete, base, nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting a running job, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodPost, base+"/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 flagging a running job, got %d", w.Code)
	}
	var resp api.QueueJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Job.CancelRequested {
		t.Fatal("expected cancelRequested flag on running job")
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodGet, "/api/queue/oops", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodPost, "/api/queue/999/cancel", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 cancelling unknown job, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleQueueItem(w, httptest.NewRequest(http.MethodPut, base, nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for unsupported method, got %d", w.Code)
	}
}

func TestAPIServerHandleStatus(t *testing.T) {
	srv, _, store := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Running {
		t.Fatal("expected stopped daemon in status")
	}
	if resp.QueueDBPath != store.Path() {
		t.Fatalf("expected queue db path %q, got %q", store.Path(), resp.QueueDBPath)
	}
	if len(resp.Dependencies) != 2 {
		t.Fatalf("expected 2 dependency reports, got %d", len(resp.Dependencies))
	}
	if len(resp.Workflow.StageHealth) != 1 || !resp.Workflow.StageHealth[0].Ready {
		t.Fatalf("expected ready convert stage, got %+v", resp.Workflow.StageHealth)
	}
}

func TestAPIServerPauseResume(t *testing.T) {
	srv, d, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handlePause(w, httptest.NewRequest(http.MethodPost, "/api/pause", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for pause, got %d", w.Code)
	}
	var paused api.WorkflowStatus
	if err := json.Unmarshal(w.Body.Bytes(), &paused); err != nil {
		t.Fatalf("decode pause response: %v", err)
	}
	if !paused.Paused {
		t.Fatal("expected workflow to report paused")
	}
	if !d.workflow.Paused() {
		t.Fatal("expected manager to be paused")
	}

	w = httptest.NewRecorder()
	srv.handleResume(w, httptest.NewRequest(http.MethodPost, "/api/resume", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for resume, got %d", w.Code)
	}
	var resumed api.WorkflowStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resumed); err != nil {
		t.Fatalf("decode resume response: %v", err)
	}
	if resumed.Paused {
		t.Fatal("expected workflow to report resumed")
	}

	w = httptest.NewRecorder()
	srv.handlePause(w, httptest.NewRequest(http.MethodGet, "/api/pause", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET pause, got %d", w.Code)
	}
}

func TestAPIServerHistoryEndpoints(t *testing.T) {
	srv, d, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without history store, got %d", w.Code)
	}

	historyStore, err := history.NewStore(d.cfg.Paths.HistoryDir, 10)
	if err != nil {
		t.Fatalf("history.NewStore: %v", err)
	}
	t.Cleanup(func() {
		historyStore.Close()
	})
	d.SetHistory(historyStore)

	if _, err := historyStore.Add(history.Entry{
		SourcePath:      "/library/example.mkv",
		OutputPath:      "/converted/example.mp4",
		OutputFormat:    "mp4",
		Status:          convert.StatusCompleted,
		OutputSizeBytes: 2048,
	}); err != nil {
		t.Fatalf("history.Add: %v", err)
	}

	w = httptest.NewRecorder()
	srv.handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", w.Code)
	}
	var listResp api.HistoryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(listResp.Entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(listResp.Entries))
	}
	if listResp.Entries[0].SourceName != "example.mkv" {
		t.Fatalf("unexpected source name %q", listResp.Entries[0].SourceName)
	}

	w = httptest.NewRecorder()
	srv.handleHistoryStats(w, httptest.NewRequest(http.MethodGet, "/api/history/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d", w.Code)
	}
	var statsResp api.HistoryStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &statsResp); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if statsResp.TotalEntries != 1 || statsResp.Completed != 1 {
		t.Fatalf("unexpected stats: %+v", statsResp)
	}
}

func TestAPIServerEventsRequireHub(t *testing.T) {
	srv, d, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleEvents(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without hub, got %d", w.Code)
	}

	d.SetHub(api.NewHub(logging.NewNop()))
	w = httptest.NewRecorder()
	srv.handleEvents(w, httptest.NewRequest(http.MethodPost, "/api/events", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST events, got %d", w.Code)
	}
}
