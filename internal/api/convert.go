package api

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"recast/internal/deps"
	"recast/internal/history"
	"recast/internal/queue"
	"recast/internal/stage"
	"recast/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) QueueJob {
	if job == nil {
		return QueueJob{}
	}

	dto := QueueJob{
		ID:         job.ID,
		SourcePath: job.SourcePath,
		SourceName: job.SourceName(),
		OutputPath: job.OutputPath,
		Status:     string(job.Status),
		Progress: QueueProgress{
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage:    job.ErrorMessage,
		CancelRequested: job.CancelRequested,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil && !job.StartedAt.IsZero() {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.FinishedAt != nil && !job.FinishedAt.IsZero() {
		dto.FinishedAt = job.FinishedAt.UTC().Format(dateTimeFormat)
	}
	if raw := strings.TrimSpace(job.SettingsJSON); raw != "" {
		dto.Settings = json.RawMessage(raw)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []QueueJob {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]QueueJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		Paused:      summary.Paused,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts binary availability reports into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Version:     status.Version,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromHistoryEntry converts a history record to its API representation.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	dto := HistoryEntry{
		ID:               entry.ID,
		SourcePath:       entry.SourcePath,
		SourceName:       entry.SourceName,
		OutputPath:       entry.OutputPath,
		OutputFormat:     entry.OutputFormat,
		Status:           string(entry.Status),
		ErrorMessage:     entry.ErrorMessage,
		SourceDurationMs: entry.SourceDurationMs,
		OutputSizeBytes:  entry.OutputSizeBytes,
		ElapsedMs:        entry.ElapsedMs,
		ThumbnailPath:    entry.ThumbnailPath,
	}
	if !entry.CompletedAt.IsZero() {
		dto.CompletedAt = entry.CompletedAt.UTC().Format(dateTimeFormat)
	}
	if raw, err := json.Marshal(entry.Settings); err == nil {
		dto.Settings = raw
	}
	return dto
}

// FromHistoryEntries converts a slice of history records into API DTOs.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromHistoryEntry(entry))
	}
	return out
}

// FromHistoryStats converts store statistics into the API payload.
func FromHistoryStats(stats history.Stats) HistoryStatsResponse {
	return HistoryStatsResponse{
		TotalEntries:     stats.TotalEntries,
		Completed:        stats.Completed,
		Failed:           stats.Failed,
		Cancelled:        stats.Cancelled,
		TotalOutputBytes: stats.TotalOutputBytes,
		TotalElapsedMs:   stats.TotalElapsedMs,
	}
}

// FormatTime converts a time to RFC3339 or returns the empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
