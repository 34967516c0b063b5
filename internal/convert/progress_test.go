package convert

import (
	"testing"

	"recast/internal/services/ffmpeg"
)

func TestRatioHalfway(t *testing.T) {
	r, ok := ratio(30000, 60000)
	if !ok {
		t.Fatal("expected ratio to be computable")
	}
	if r != 0.5 {
		t.Fatalf("expected 0.5, got %f", r)
	}
}

func TestRatioClampsToOne(t *testing.T) {
	r, ok := ratio(75000, 60000)
	if !ok {
		t.Fatal("expected ratio to be computable")
	}
	if r != 1 {
		t.Fatalf("expected clamp to 1, got %f", r)
	}
}

func TestRatioUnknownInputs(t *testing.T) {
	if _, ok := ratio(30000, 0); ok {
		t.Fatal("expected unknown duration to suppress the tick")
	}
	if _, ok := ratio(0, 60000); ok {
		t.Fatal("expected zero processed time to suppress the tick")
	}
	if _, ok := ratio(-5, 60000); ok {
		t.Fatal("expected negative processed time to suppress the tick")
	}
}

func TestEtaLinearExtrapolation(t *testing.T) {
	// A quarter done in 25s leaves three quarters, 75s at the same pace.
	if got := etaMs(0.25, 25000); got != 75000 {
		t.Fatalf("expected 75000ms, got %d", got)
	}
}

func TestEtaSuppressedNearZeroAndDone(t *testing.T) {
	if got := etaMs(0.005, 1000); got != 0 {
		t.Fatalf("expected no estimate below the threshold, got %d", got)
	}
	if got := etaMs(1, 60000); got != 0 {
		t.Fatalf("expected no estimate at completion, got %d", got)
	}
}

func TestProgressTrackerMonotonic(t *testing.T) {
	tracker := &progressTracker{totalMs: 60000}

	first, ok := tracker.sample(ffmpeg.Stats{ProcessedMs: 30000})
	if !ok {
		t.Fatal("expected first sample to emit")
	}
	if first.Ratio != 0.5 {
		t.Fatalf("expected 0.5, got %f", first.Ratio)
	}

	// The engine can report a lower timestamp after a seek; the stream must
	// not move backwards.
	second, ok := tracker.sample(ffmpeg.Stats{ProcessedMs: 15000})
	if !ok {
		t.Fatal("expected second sample to emit")
	}
	if second.Ratio != 0.5 {
		t.Fatalf("expected high-water mark 0.5, got %f", second.Ratio)
	}

	third, ok := tracker.sample(ffmpeg.Stats{ProcessedMs: 45000})
	if !ok {
		t.Fatal("expected third sample to emit")
	}
	if third.Ratio != 0.75 {
		t.Fatalf("expected 0.75, got %f", third.Ratio)
	}
	if tracker.processedMs != 45000 {
		t.Fatalf("expected processed high-water 45000, got %d", tracker.processedMs)
	}
}

func TestProgressTrackerSuppressedWithoutDuration(t *testing.T) {
	tracker := &progressTracker{}
	if _, ok := tracker.sample(ffmpeg.Stats{ProcessedMs: 30000}); ok {
		t.Fatal("expected unknown duration to suppress converting events")
	}
}

func TestProgressTrackerMessageAndPassthrough(t *testing.T) {
	tracker := &progressTracker{totalMs: 100000}
	event, ok := tracker.sample(ffmpeg.Stats{ProcessedMs: 42000, Speed: 2.5, Bitrate: "900kbits/s"})
	if !ok {
		t.Fatal("expected sample to emit")
	}
	if event.Message != "converting 42%" {
		t.Fatalf("expected percentage message, got %q", event.Message)
	}
	if event.Speed != 2.5 || event.Bitrate != "900kbits/s" {
		t.Fatalf("expected engine stats passthrough, got %+v", event)
	}
	if event.Status != StatusConverting {
		t.Fatalf("expected converting status, got %q", event.Status)
	}
}

func TestProgressTerminal(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !(Progress{Status: status}).Terminal() {
			t.Fatalf("expected %q to be terminal", status)
		}
	}
	for _, status := range []Status{StatusStarting, StatusConverting} {
		if (Progress{Status: status}).Terminal() {
			t.Fatalf("expected %q to be non-terminal", status)
		}
	}
}
