package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StatusError reports a non-2xx daemon API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon api: %s (status %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("daemon api returned status %d", e.Code)
}

// ErrorStatus returns the HTTP status carried by a daemon API error, or zero
// when err is nil or not a StatusError.
func ErrorStatus(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// Client calls a running daemon's HTTP API. All methods return an error when
// the daemon is unreachable; callers can detect that case with
// errors.Is(err, syscall.ECONNREFUSED).
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the daemon listening on bind ("host:port").
func NewClient(bind string) *Client {
	bind = strings.TrimSpace(bind)
	return &Client{
		baseURL: "http://" + bind,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Pause suspends queue processing and returns the resulting workflow state.
func (c *Client) Pause(ctx context.Context) (*WorkflowStatus, error) {
	var status WorkflowStatus
	if err := c.do(ctx, http.MethodPost, "/api/pause", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Resume restarts queue processing and returns the resulting workflow state.
func (c *Client) Resume(ctx context.Context) (*WorkflowStatus, error) {
	var status WorkflowStatus
	if err := c.do(ctx, http.MethodPost, "/api/resume", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Queue lists queue jobs, optionally filtered by status names.
func (c *Client) Queue(ctx context.Context, statuses []string) (*QueueListResponse, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		query := url.Values{}
		for _, status := range statuses {
			query.Add("status", status)
		}
		path += "?" + query.Encode()
	}
	var list QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Enqueue submits a new conversion job.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (*QueueJob, error) {
	var resp QueueJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// DescribeJob fetches a single queue job. It returns (nil, nil) when the
// daemon reports no such job.
func (c *Client) DescribeJob(ctx context.Context, id int64) (*QueueJob, error) {
	var resp QueueJobResponse
	path := "/api/queue/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if ErrorStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Job, nil
}

// CancelJob requests cancellation of a queue job.
func (c *Client) CancelJob(ctx context.Context, id int64) error {
	path := "/api/queue/" + strconv.FormatInt(id, 10) + "/cancel"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// RemoveJob deletes a non-running queue job.
func (c *Client) RemoveJob(ctx context.Context, id int64) error {
	path := "/api/queue/" + strconv.FormatInt(id, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// History lists recorded conversions, newest first.
func (c *Client) History(ctx context.Context) (*HistoryListResponse, error) {
	var list HistoryListResponse
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// HistoryStats summarizes the history store.
func (c *Client) HistoryStats(ctx context.Context) (*HistoryStatsResponse, error) {
	var stats HistoryStatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/history/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &StatusError{Code: resp.StatusCode}
	if err := json.Unmarshal(data, &payload); err == nil {
		statusErr.Message = payload.Error
	}
	return statusErr
}
