package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"recast/internal/config"
)

// Minimum free space on the output volume before conversions are likely to
// fail mid-write.
const minOutputFreeBytes = 1 << 30

// Result reports the outcome of a single preflight check. Remedy is only set
// on failures and tells the operator how to fix the problem.
type Result struct {
	Name   string
	Passed bool
	Detail string
	Remedy string
}

// RunAll executes all applicable preflight checks for the given config.
// Directory checks always run; service checks only when the corresponding
// feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if dir := strings.TrimSpace(cfg.Paths.OutputDir); dir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", dir))
		results = append(results, CheckDiskSpace("Output free space", dir, minOutputFreeBytes))
	}
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("History directory", cfg.Paths.HistoryDir))

	if db := strings.TrimSpace(cfg.Paths.QueueDB); db != "" {
		results = append(results, CheckDirectoryAccess("Queue database directory", filepath.Dir(db)))
	}
	if cfg.History.Thumbnails {
		results = append(results, CheckDirectoryAccess("Thumbnail directory", cfg.ThumbnailDir()))
	}

	if cfg.NotificationsEnabled() {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckNotificationsFromConfig evaluates ntfy readiness from config and
// connectivity. A disabled notifier passes so status output stays green for
// setups that never configured a topic.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.NotificationsEnabled() {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckNtfy(context.Background(), cfg.Notifications.NtfyTopic)
}
