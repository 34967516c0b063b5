// Package deps checks the availability of external binaries recast shells
// out to. Results feed daemon startup logs and the status command.
package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"recast/internal/config"
)

const versionProbeTimeout = 3 * time.Second

// Requirement defines an external binary recast relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Requirements returns the binaries the conversion engine needs, using the
// configured command names.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Runs media conversions"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Inspects media before conversion"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Version strings are captured best-effort and left empty when the probe
// fails.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Version = binaryVersion(resolved)
		results = append(results, status)
	}
	return results
}

// binaryVersion returns the first line of `<binary> -version`, the format
// both ffmpeg and ffprobe print.
func binaryVersion(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ""
	}
	line := out
	if idx := bytes.IndexByte(out, '\n'); idx >= 0 {
		line = out[:idx]
	}
	return strings.TrimSpace(string(line))
}
