package staging

import (
	"os"
	"path/filepath"
	"testing"

	"recast/internal/logging"
)

func TestScratchJobID(t *testing.T) {
	cases := []struct {
		name string
		id   int64
		ok   bool
	}{
		{name: "job-12.mp4", id: 12, ok: true},
		{name: "job-3", id: 3, ok: true},
		{name: "job-12.partial.mp4", id: 12, ok: true},
		{name: "job-0.mkv"},
		{name: "job-.mp4"},
		{name: "readme.txt"},
		{name: "JOB-4.mp4"},
	}
	for _, tc := range cases {
		id, ok := ScratchJobID(tc.name)
		if ok != tc.ok || id != tc.id {
			t.Fatalf("ScratchJobID(%q) = %d, %v; want %d, %v", tc.name, id, ok, tc.id, tc.ok)
		}
	}
}

func TestSweepRemovesOnlyInactiveScratch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"job-1.mp4", "job-7.mkv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	result := Sweep(dir, func(id int64) bool { return id == 1 }, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected sweep errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != "job-7.mkv" {
		t.Fatalf("unexpected removals: %v", result.Removed)
	}

	for name, want := range map[string]bool{"job-1.mp4": true, "job-7.mkv": false, "notes.txt": true} {
		_, err := os.Stat(filepath.Join(dir, name))
		if exists := err == nil; exists != want {
			t.Fatalf("%s exists = %v, want %v", name, exists, want)
		}
	}
}

func TestSweepMissingDirIsNoOp(t *testing.T) {
	result := Sweep(filepath.Join(t.TempDir(), "absent"), func(int64) bool { return false }, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("missing dir should be a no-op: %+v", result)
	}
}

func TestSweepIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "job-9.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	result := Sweep(dir, func(int64) bool { return false }, nil)
	if len(result.Removed) != 0 {
		t.Fatalf("directories must not be swept: %v", result.Removed)
	}
}
