package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueJob describes a queue entry in a transport-friendly format.
type QueueJob struct {
	ID              int64           `json:"id"`
	SourcePath      string          `json:"sourcePath"`
	SourceName      string          `json:"sourceName"`
	OutputPath      string          `json:"outputPath,omitempty"`
	Status          string          `json:"status"`
	Progress        QueueProgress   `json:"progress"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CancelRequested bool            `json:"cancelRequested"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
	StartedAt       string          `json:"startedAt,omitempty"`
	FinishedAt      string          `json:"finishedAt,omitempty"`
	Settings        json.RawMessage `json:"settings,omitempty"`
}

// QueueProgress captures progress information for a queue entry.
type QueueProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Paused      bool           `json:"paused"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *QueueJob      `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue jobs for API responses.
type QueueListResponse struct {
	Jobs []QueueJob `json:"jobs"`
}

// QueueJobResponse wraps a single queue job.
type QueueJobResponse struct {
	Job QueueJob `json:"job"`
}

// EnqueueRequest is the body of POST /api/queue. Settings fall back to the
// configured defaults when omitted.
type EnqueueRequest struct {
	SourcePath string          `json:"sourcePath"`
	OutputPath string          `json:"outputPath,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

// HistoryEntry is the transport form of a finished conversion record.
type HistoryEntry struct {
	ID               string          `json:"id"`
	SourcePath       string          `json:"sourcePath"`
	SourceName       string          `json:"sourceName"`
	OutputPath       string          `json:"outputPath,omitempty"`
	OutputFormat     string          `json:"outputFormat"`
	Status           string          `json:"status"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	SourceDurationMs int64           `json:"sourceDurationMs,omitempty"`
	OutputSizeBytes  int64           `json:"outputSizeBytes,omitempty"`
	ElapsedMs        int64           `json:"elapsedMs,omitempty"`
	CompletedAt      string          `json:"completedAt,omitempty"`
	ThumbnailPath    string          `json:"thumbnailPath,omitempty"`
	Settings         json.RawMessage `json:"settings,omitempty"`
}

// HistoryListResponse wraps a collection of history entries.
type HistoryListResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// HistoryStatsResponse summarizes the history store.
type HistoryStatsResponse struct {
	TotalEntries     int   `json:"totalEntries"`
	Completed        int   `json:"completed"`
	Failed           int   `json:"failed"`
	Cancelled        int   `json:"cancelled"`
	TotalOutputBytes int64 `json:"totalOutputBytes"`
	TotalElapsedMs   int64 `json:"totalElapsedMs"`
}
