package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, detail)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationMs returns the container duration in milliseconds, or 0 when
// unavailable.
func (r Result) DurationMs() int64 {
	seconds, ok := parseFloat(r.Format.Duration)
	if !ok || seconds <= 0 {
		return 0
	}
	return int64(seconds * 1000)
}

// SizeBytes returns the reported container size in bytes, or 0 when
// unavailable.
func (r Result) SizeBytes() int64 {
	size, ok := parseFloat(r.Format.Size)
	if !ok || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when
// unavailable.
func (r Result) BitRate() int64 {
	rate, ok := parseFloat(r.Format.BitRate)
	if !ok || rate < 0 {
		return 0
	}
	return int64(rate)
}

// HasVideo reports whether the container carries at least one video stream.
func (r Result) HasVideo() bool {
	return r.videoStream() != nil
}

// HasAudio reports whether the container carries at least one audio stream.
func (r Result) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// Width returns the first video stream's width, or 0 without video.
func (r Result) Width() int {
	if stream := r.videoStream(); stream != nil {
		return stream.Width
	}
	return 0
}

// Height returns the first video stream's height, or 0 without video.
func (r Result) Height() int {
	if stream := r.videoStream(); stream != nil {
		return stream.Height
	}
	return 0
}

// FrameRate returns the first video stream's average frame rate, or 0 when
// it cannot be determined. ffprobe reports rates as fractions ("30000/1001").
func (r Result) FrameRate() float64 {
	stream := r.videoStream()
	if stream == nil {
		return 0
	}
	return parseFraction(stream.AvgFrameRate)
}

// VideoCodec returns the first video stream's codec name, or "".
func (r Result) VideoCodec() string {
	if stream := r.videoStream(); stream != nil {
		return stream.CodecName
	}
	return ""
}

// AudioCodec returns the first audio stream's codec name, or "".
func (r Result) AudioCodec() string {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream.CodecName
		}
	}
	return ""
}

func (r Result) videoStream() *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, "video") {
			return &r.Streams[i]
		}
	}
	return nil
}

// DurationProber adapts Inspect into the duration-only callback the
// conversion orchestrator consumes. Probe failures map to 0, never an error.
func DurationProber(binary string) func(ctx context.Context, sourcePath string) int64 {
	return func(ctx context.Context, sourcePath string) int64 {
		result, err := Inspect(ctx, binary, sourcePath)
		if err != nil {
			return 0
		}
		return result.DurationMs()
	}
}

func parseFloat(value string) (float64, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseFraction(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "0/0" {
		return 0
	}
	parts := strings.SplitN(cleaned, "/", 2)
	numerator, ok := parseFloat(parts[0])
	if !ok {
		return 0
	}
	if len(parts) == 1 {
		return numerator
	}
	denominator, ok := parseFloat(parts[1])
	if !ok || denominator == 0 {
		return 0
	}
	return numerator / denominator
}
