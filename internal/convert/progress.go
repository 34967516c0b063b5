package convert

import (
	"fmt"

	"recast/internal/services/ffmpeg"
)

// Status identifies where a conversion is in its lifecycle.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Progress is one event on a conversion stream. Ratio is normalized to
// [0, 1]. EtaMs is 0 while the estimate is still unreliable. OutputPath and
// OutputSizeBytes are set only on completed events; Error only on failed
// ones.
type Progress struct {
	Status          Status  `json:"status"`
	Ratio           float64 `json:"progress"`
	Message         string  `json:"message"`
	TimeProcessedMs int64   `json:"timeProcessedMs"`
	EtaMs           int64   `json:"estimatedTimeRemainingMs"`
	Speed           float64 `json:"speed,omitempty"`
	Bitrate         string  `json:"bitrate,omitempty"`
	OutputPath      string  `json:"outputPath,omitempty"`
	OutputSizeBytes int64   `json:"outputSizeBytes,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (p Progress) Terminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// minRatioForETA suppresses extrapolation while the sample base is too
// small to be meaningful.
const minRatioForETA = 0.01

// ratio normalizes processed output time against the source duration. The
// second return is false when the tick cannot be normalized.
func ratio(processedMs, totalMs int64) (float64, bool) {
	if totalMs <= 0 || processedMs <= 0 {
		return 0, false
	}
	r := float64(processedMs) / float64(totalMs)
	if r > 1 {
		r = 1
	}
	return r, true
}

// etaMs extrapolates the remaining wall time linearly from how long the
// processed fraction took.
func etaMs(r float64, processedMs int64) int64 {
	if r < minRatioForETA || r >= 1 {
		return 0
	}
	return int64((1 - r) / r * float64(processedMs))
}

// progressTracker turns raw engine stats into monotonic converting events.
// It keeps a high-water mark so a stream never reports progress moving
// backwards.
type progressTracker struct {
	totalMs     int64
	high        float64
	processedMs int64
}

func (t *progressTracker) sample(s ffmpeg.Stats) (Progress, bool) {
	if s.ProcessedMs > t.processedMs {
		t.processedMs = s.ProcessedMs
	}
	r, ok := ratio(s.ProcessedMs, t.totalMs)
	if !ok {
		return Progress{}, false
	}
	if r < t.high {
		r = t.high
	} else {
		t.high = r
	}
	return Progress{
		Status:          StatusConverting,
		Ratio:           r,
		Message:         fmt.Sprintf("converting %d%%", int(r*100)),
		TimeProcessedMs: s.ProcessedMs,
		EtaMs:           etaMs(r, s.ProcessedMs),
		Speed:           s.Speed,
		Bitrate:         s.Bitrate,
	}, true
}
