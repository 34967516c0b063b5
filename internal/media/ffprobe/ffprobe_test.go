package ffprobe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestResultAccessors(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001"},
			{CodecType: "audio", CodecName: "aac", Channels: 2},
		},
		Format: Format{
			Duration: "123.456",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.DurationMs() != 123456 {
		t.Fatalf("unexpected duration: %d", result.DurationMs())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Fatal("expected both stream kinds to be detected")
	}
	if result.Width() != 1920 || result.Height() != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", result.Width(), result.Height())
	}
	if fps := result.FrameRate(); fps < 29.96 || fps > 29.98 {
		t.Fatalf("expected NTSC frame rate, got %f", fps)
	}
	if result.VideoCodec() != "h264" || result.AudioCodec() != "aac" {
		t.Fatalf("unexpected codecs: %q/%q", result.VideoCodec(), result.AudioCodec())
	}
}

func TestResultAccessorsHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if result.DurationMs() != 0 {
		t.Fatalf("expected duration 0, got %d", result.DurationMs())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if result.HasVideo() {
		t.Fatal("expected no video stream")
	}
	if result.Width() != 0 || result.Height() != 0 || result.FrameRate() != 0 {
		t.Fatal("expected zero video metadata without a video stream")
	}
}

func TestParseFraction(t *testing.T) {
	cases := []struct {
		input    string
		expected float64
	}{
		{"25/1", 25},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"x/1", 0},
		{"1/0", 0},
	}
	for _, tc := range cases {
		if got := parseFraction(tc.input); got != tc.expected {
			t.Fatalf("parseFraction(%q) = %f, expected %f", tc.input, got, tc.expected)
		}
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectDecodesJSON(t *testing.T) {
	setProbeHelper(t, "json")

	result, err := Inspect(context.Background(), "ffprobe", "/media/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.DurationMs() != 60000 {
		t.Fatalf("expected 60000ms, got %d", result.DurationMs())
	}
	if result.Width() != 1280 {
		t.Fatalf("expected width 1280, got %d", result.Width())
	}
}

func TestInspectSurfacesProcessFailure(t *testing.T) {
	setProbeHelper(t, "fail")

	if _, err := Inspect(context.Background(), "ffprobe", "/media/clip.mp4"); err == nil {
		t.Fatal("expected error from failing probe")
	}
}

func TestDurationProberNeverFails(t *testing.T) {
	setProbeHelper(t, "fail")

	probe := DurationProber("ffprobe")
	if got := probe(context.Background(), "/media/clip.mp4"); got != 0 {
		t.Fatalf("expected 0 for failed probe, got %d", got)
	}

	setProbeHelper(t, "json")
	if got := probe(context.Background(), "/media/clip.mp4"); got != 60000 {
		t.Fatalf("expected 60000, got %d", got)
	}
}

func setProbeHelper(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFPROBE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "json":
		fmt.Println(`{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"avg_frame_rate":"30/1"}],"format":{"duration":"60.0","size":"1048576","bit_rate":"2000000"}}`)
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "No such file or directory")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
