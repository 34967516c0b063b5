package queue

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"recast/internal/convert"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status is final and will never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// TerminalStatuses returns the statuses removed by ClearFinished.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusFailed, StatusCancelled}
}

// Job represents a conversion job persisted in SQLite.
type Job struct {
	ID              int64
	SourcePath      string
	OutputPath      string
	SettingsJSON    string
	Status          Status
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	LogTail         string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Settings decodes the conversion settings stored with the job.
func (j *Job) Settings() (convert.Settings, error) {
	var settings convert.Settings
	if strings.TrimSpace(j.SettingsJSON) == "" {
		return settings, fmt.Errorf("job %d has no conversion settings", j.ID)
	}
	if err := json.Unmarshal([]byte(j.SettingsJSON), &settings); err != nil {
		return settings, fmt.Errorf("decode job %d settings: %w", j.ID, err)
	}
	return settings, nil
}

// SetSettings serializes the conversion settings onto the job.
func (j *Job) SetSettings(settings convert.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode job settings: %w", err)
	}
	j.SettingsJSON = string(data)
	return nil
}

// SourceName returns the base name of the source file for display.
func (j *Job) SourceName() string {
	return filepath.Base(j.SourcePath)
}

// StagingPath returns the per-job scratch file rooted at base. The engine
// writes here and the finished file is moved to OutputPath afterwards, so a
// cancelled or crashed conversion never leaves a partial file in the output
// directory.
func (j *Job) StagingPath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	ext := filepath.Ext(j.OutputPath)
	return filepath.Join(base, fmt.Sprintf("job-%d%s", j.ID, ext))
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
