// Package staging manages the scratch files conversions write before their
// results move into the output directory. Each job owns one file named
// job-<id> with the output extension; anything else in the staging directory
// is not ours and is never touched.
package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"recast/internal/logging"
)

var scratchPattern = regexp.MustCompile(`^job-(\d+)(?:\..+)?$`)

// SweepResult reports the outcome of one staging sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with the error that kept it in place.
type SweepError struct {
	Path string
	Err  error
}

// ScratchJobID extracts the owning job id from a staging file name. ok is
// false for names the daemon did not generate.
func ScratchJobID(name string) (int64, bool) {
	match := scratchPattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Sweep removes scratch files whose job is no longer active, typically
// partial engine output left behind by a crash. active reports whether a job
// id still has a pending or running queue entry.
func Sweep(stagingDir string, active func(id int64) bool, logger *slog.Logger) SweepResult {
	var result SweepResult

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || active == nil {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: stagingDir, Err: err})
		}
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := ScratchJobID(entry.Name())
		if !ok || active(id) {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Err: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned scratch file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}

		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed orphaned scratch file",
				logging.String("path", path),
				logging.Int64("job_id", id),
				logging.String(logging.FieldEventType, "staging_sweep"),
			)
		}
	}

	return result
}
