package logging

import (
	"math"
	"strings"
)

// ProgressSampler rate-limits progress logging. Conversions report many times
// per second; the sampler lets a line through only when the phase label
// changes or the percentage crosses the next step boundary.
type ProgressSampler struct {
	step      float64
	lastLabel string
	next      float64
}

// NewProgressSampler returns a sampler that emits every step percent
// (default 5) and on every label change.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether this progress event carries enough new
// information to be worth a log line. A negative percent means the caller
// does not know the completion ratio yet; only label changes emit then.
// A nil sampler passes everything through.
func (s *ProgressSampler) ShouldLog(percent float64, label string) bool {
	if s == nil {
		return true
	}
	emit := false
	if label = strings.TrimSpace(label); label != "" && label != s.lastLabel {
		s.lastLabel = label
		s.next = 0
		emit = true
	}
	if percent >= 0 && percent >= s.next {
		s.next = math.Floor(percent/s.step)*s.step + s.step
		emit = true
	}
	return emit
}

// Reset clears the sampler between jobs.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastLabel = ""
	s.next = 0
}
