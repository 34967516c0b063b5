package thumbnail

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateValidatesPaths(t *testing.T) {
	if err := Generate(context.Background(), "", "/tmp/thumb.jpg", Options{}); err == nil {
		t.Fatal("expected error for empty source path")
	}
	if err := Generate(context.Background(), "/media/out.mp4", "", Options{}); err == nil {
		t.Fatal("expected error for empty target path")
	}
}

func TestGenerateBuildsExtractionCommand(t *testing.T) {
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "THUMB_HELPER_MODE=write", "THUMB_HELPER_PATH="+args[len(args)-1])
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	thumbPath := filepath.Join(t.TempDir(), "previews", "clip.jpg")
	err := Generate(context.Background(), "/media/clip.mp4", thumbPath, Options{
		Offset: 1500 * time.Millisecond,
		Width:  480,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	joined := strings.Join(capturedArgs, " ")
	for _, fragment := range []string{"-ss 1.500", "-frames:v 1", "scale=480:-2"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args, got %v", fragment, capturedArgs)
		}
	}
	if capturedArgs[len(capturedArgs)-1] != thumbPath {
		t.Fatalf("expected target path last, got %v", capturedArgs)
	}
}

func TestGenerateFailsWhenNoFrameProduced(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "THUMB_HELPER_MODE=noop")
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})

	thumbPath := filepath.Join(t.TempDir(), "clip.jpg")
	if err := Generate(context.Background(), "/media/clip.mp4", thumbPath, Options{}); err == nil {
		t.Fatal("expected error when the engine writes nothing")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("THUMB_HELPER_MODE") {
	case "write":
		if path := os.Getenv("THUMB_HELPER_PATH"); path != "" {
			_ = os.WriteFile(path, []byte("jpeg"), 0o644)
		}
		os.Exit(0)
	case "noop":
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
