// Package thumbnail extracts single-frame JPEG previews from converted
// files for the history browser.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// defaultOffset is where the preview frame is taken when the caller has no
// better position; early enough to exist in short clips, late enough to
// skip black lead-in frames.
const defaultOffset = 3 * time.Second

// Options control preview extraction.
type Options struct {
	Binary string
	Offset time.Duration
	Width  int
}

// Generate writes a single-frame preview of sourcePath to thumbPath. The
// frame is scaled to the requested width preserving aspect ratio.
func Generate(ctx context.Context, sourcePath, thumbPath string, opts Options) error {
	if strings.TrimSpace(sourcePath) == "" {
		return errors.New("thumbnail: source path required")
	}
	if strings.TrimSpace(thumbPath) == "" {
		return errors.New("thumbnail: target path required")
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	offset := opts.Offset
	if offset <= 0 {
		offset = defaultOffset
	}
	width := opts.Width
	if width <= 0 {
		width = 320
	}

	if err := os.MkdirAll(filepath.Dir(thumbPath), 0o755); err != nil {
		return fmt.Errorf("thumbnail: create directory: %w", err)
	}

	args := []string{
		"-y",
		"-ss", formatOffset(offset),
		"-i", sourcePath,
		"-frames:v", "1",
		"-vf", "scale=" + strconv.Itoa(width) + ":-2",
		"-q:v", "4",
		thumbPath,
	}
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("thumbnail: extract frame: %w: %s", err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(thumbPath); err != nil {
		return fmt.Errorf("thumbnail: no frame produced: %w", err)
	}
	return nil
}

func formatOffset(offset time.Duration) string {
	return strconv.FormatFloat(offset.Seconds(), 'f', 3, 64)
}
