package daemon

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"recast/internal/config"
	"recast/internal/queue"
)

func watchConfig(root string) *config.Config {
	cfg := &config.Config{}
	cfg.Watch.Enabled = true
	cfg.Watch.MountRoots = []string{root}
	cfg.Watch.Extensions = []string{".mkv", "MP4"}
	return cfg
}

func TestNewWatchMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newWatchMonitor(nil, nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("disabled watcher returns nil", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Watch.MountRoots = []string{"/media"}
		if m := newWatchMonitor(cfg, nil, nil, nil); m != nil {
			t.Error("expected nil monitor when disabled")
		}
	})

	t.Run("no mount roots returns nil", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Watch.Enabled = true
		if m := newWatchMonitor(cfg, nil, nil, nil); m != nil {
			t.Error("expected nil monitor without mount roots")
		}
	})

	t.Run("valid config creates monitor", func(t *testing.T) {
		cfg := watchConfig("/media")
		cfg.Watch.SettleSeconds = 4
		m := newWatchMonitor(cfg, nil, nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.settle != 4*time.Second {
			t.Errorf("expected 4s settle delay, got %s", m.settle)
		}
		if _, ok := m.extensions[".mkv"]; !ok {
			t.Error("expected .mkv in extension set")
		}
		if _, ok := m.extensions[".mp4"]; !ok {
			t.Error("expected extensions normalized to lowercase dotted form")
		}
	})
}

func TestWatchMonitorLifecycleSafety(t *testing.T) {
	t.Run("nil monitor is inert", func(t *testing.T) {
		var m *watchMonitor
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor should return nil, got %v", err)
		}
		m.Stop()
		if m.Running() {
			t.Error("expected Running() false for nil monitor")
		}
	})

	t.Run("stop on unstarted monitor is safe", func(t *testing.T) {
		m := newWatchMonitor(watchConfig("/media"), nil, nil, nil)
		m.Stop()
		m.Stop()
		if m.Running() {
			t.Error("expected Running() false after Stop on unstarted monitor")
		}
	})

	t.Run("start is non-fatal without netlink access", func(t *testing.T) {
		m := newWatchMonitor(watchConfig("/media"), nil, nil, nil)
		// Connect may fail in the test environment; Start must not error.
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start should be non-fatal, got %v", err)
		}
		m.Stop()
	})
}

func TestWatchBuildMatcher(t *testing.T) {
	m := newWatchMonitor(watchConfig("/media"), nil, nil, nil)
	matcher := m.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	valid := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "filesystem",
		},
	}
	if !matcher.Evaluate(valid) {
		t.Error("expected matcher to accept filesystem add event")
	}

	change := netlink.UEvent{
		Action: netlink.CHANGE,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "filesystem",
		},
	}
	if matcher.Evaluate(change) {
		t.Error("expected matcher to reject change action")
	}

	swap := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "other",
		},
	}
	if matcher.Evaluate(swap) {
		t.Error("expected matcher to reject non-filesystem usage")
	}

	usb := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM":   "usb",
			"ID_FS_USAGE": "filesystem",
		},
	}
	if matcher.Evaluate(usb) {
		t.Error("expected matcher to reject non-block subsystem")
	}
}

func TestWatchHandleEventScansRoots(t *testing.T) {
	root := t.TempDir()
	writeWatched := func(rel string) string {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}
	movie := writeWatched("movie.mkv")
	nested := writeWatched(filepath.Join("clips", "trailer.mp4"))
	writeWatched("notes.txt")
	writeWatched(filepath.Join(".Trashes", "ghost.mkv"))

	var enqueued []string
	enqueue := func(ctx context.Context, path string) (*queue.Job, error) {
		enqueued = append(enqueued, path)
		return &queue.Job{ID: int64(len(enqueued))}, nil
	}

	m := newWatchMonitor(watchConfig(root), nil, enqueue, func() bool { return false })
	event := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"DEVNAME":     "/dev/sdb1",
			"ID_FS_USAGE": "filesystem",
		},
	}

	m.handleEvent(context.Background(), event)

	want := []string{movie, nested}
	slices.Sort(enqueued)
	slices.Sort(want)
	if !slices.Equal(enqueued, want) {
		t.Fatalf("expected %v enqueued, got %v", want, enqueued)
	}

	// A second event must not re-import files seen during this run.
	m.handleEvent(context.Background(), event)
	if len(enqueued) != len(want) {
		t.Fatalf("expected no re-imports, got %v", enqueued)
	}

	extra := writeWatched("fresh.mkv")
	m.handleEvent(context.Background(), event)
	if !slices.Contains(enqueued, extra) {
		t.Fatalf("expected new file %q to be enqueued, got %v", extra, enqueued)
	}
}

func TestWatchHandleEventRespectsPause(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "movie.mkv"), []byte("media"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var calls int
	enqueue := func(ctx context.Context, path string) (*queue.Job, error) {
		calls++
		return &queue.Job{ID: 1}, nil
	}

	var paused atomic.Bool
	paused.Store(true)
	m := newWatchMonitor(watchConfig(root), nil, enqueue, paused.Load)
	event := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"DEVNAME": "/dev/sdb1"},
	}

	m.handleEvent(context.Background(), event)
	if calls != 0 {
		t.Fatalf("expected no enqueues while paused, got %d", calls)
	}

	paused.Store(false)
	m.handleEvent(context.Background(), event)
	if calls != 1 {
		t.Fatalf("expected 1 enqueue after resume, got %d", calls)
	}
}

func TestWatchHandleEventIgnoresAnonymousDevices(t *testing.T) {
	var calls int
	enqueue := func(ctx context.Context, path string) (*queue.Job, error) {
		calls++
		return nil, nil
	}

	m := newWatchMonitor(watchConfig(t.TempDir()), nil, enqueue, nil)
	m.handleEvent(context.Background(), netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{},
	})
	if calls != 0 {
		t.Fatalf("expected no scan without a device name, got %d calls", calls)
	}
}

func TestWatchExtractDeviceName(t *testing.T) {
	m := newWatchMonitor(watchConfig("/media"), nil, nil, nil)

	fromName := m.extractDeviceName(netlink.UEvent{
		Env: map[string]string{"DEVNAME": "/dev/sdc1"},
	})
	if fromName != "/dev/sdc1" {
		t.Errorf("expected /dev/sdc1, got %q", fromName)
	}

	fromPath := m.extractDeviceName(netlink.UEvent{
		Env: map[string]string{
			"DEVPATH": "/devices/pci0000:00/0000:00:14.0/usb2/2-1/block/sdb/sdb1",
		},
	})
	if fromPath != "/dev/sdb1" {
		t.Errorf("expected /dev/sdb1 from DEVPATH, got %q", fromPath)
	}

	if empty := m.extractDeviceName(netlink.UEvent{Env: map[string]string{}}); empty != "" {
		t.Errorf("expected empty device name, got %q", empty)
	}
}
