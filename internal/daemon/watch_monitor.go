package daemon

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/pilebones/go-udev/netlink"

	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/queue"
)

// watchMonitor listens for udev netlink events and enqueues convertible
// files found on newly attached removable filesystems. This replaces udev
// rules or cron-based folder polling.
type watchMonitor struct {
	cfg      *config.Config
	logger   *slog.Logger
	enqueue  func(ctx context.Context, path string) (*queue.Job, error)
	isPaused func() bool

	roots      []string
	extensions map[string]struct{}
	settle     time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	seen    map[string]struct{}
}

// newWatchMonitor creates a monitor for removable-media insertion events.
// It returns nil when the watcher is disabled or has no mount roots.
func newWatchMonitor(
	cfg *config.Config,
	logger *slog.Logger,
	enqueue func(ctx context.Context, path string) (*queue.Job, error),
	isPaused func() bool,
) *watchMonitor {
	if cfg == nil || !cfg.Watch.Enabled {
		return nil
	}

	roots := make([]string, 0, len(cfg.Watch.MountRoots))
	for _, root := range cfg.Watch.MountRoots {
		if trimmed := strings.TrimSpace(root); trimmed != "" {
			roots = append(roots, trimmed)
		}
	}
	if len(roots) == 0 {
		return nil
	}

	extensions := make(map[string]struct{}, len(cfg.Watch.Extensions))
	for _, ext := range cfg.Watch.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		extensions[normalized] = struct{}{}
	}

	return &watchMonitor{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "watch-monitor"),
		enqueue:    enqueue,
		isPaused:   isPaused,
		roots:      roots,
		extensions: extensions,
		settle:     time.Duration(cfg.Watch.SettleSeconds) * time.Second,
		seen:       make(map[string]struct{}),
	}
}

// Start begins listening for udev netlink events.
func (m *watchMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; removable media will not be detected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "automatic media import unavailable"),
		)
		// Non-fatal; the queue still accepts files through the API and CLI.
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("media watcher started",
		logging.String(logging.FieldEventType, "watch_monitor_started"),
		logging.Any("mount_roots", m.roots),
	)
	return nil
}

// Stop shuts down the watch monitor.
func (m *watchMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("media watcher stopped",
		logging.String(logging.FieldEventType, "watch_monitor_stopped"))
}

// Running reports whether the watch monitor is active.
func (m *watchMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *watchMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, m.buildMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("media watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_monitor_error"),
				logging.String(logging.FieldImpact, "media detection may be affected"),
			)
		}
	}
}

// buildMatcher selects block devices carrying a mountable filesystem:
// ACTION=add, SUBSYSTEM=block, ID_FS_USAGE=filesystem.
func (m *watchMonitor) buildMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "filesystem",
		},
	})
	return rules
}

// handleEvent waits for the automounter to settle, then scans the configured
// mount roots for new convertible files.
func (m *watchMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := m.extractDeviceName(uevent)
	if devname == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	if m.isPaused != nil && m.isPaused() {
		m.logger.Debug("queue paused, ignoring media event",
			logging.String("device", devname))
		return
	}

	m.logger.Info("removable filesystem detected",
		logging.String(logging.FieldEventType, "watch_media_detected"),
		logging.String("device", devname),
		logging.String("fs_type", uevent.Env["ID_FS_TYPE"]),
	)

	if !m.wait(ctx, m.settle) {
		return
	}
	m.scanRoots(ctx, devname)
}

// wait sleeps for the settle delay, returning false when interrupted.
func (m *watchMonitor) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// scanRoots walks every mount root and enqueues convertible files that have
// not been imported during this daemon run.
func (m *watchMonitor) scanRoots(ctx context.Context, devname string) {
	var queued int
	for _, root := range m.roots {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				// Mount roots may not exist until a drive is attached.
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if entry.IsDir() {
				if strings.HasPrefix(entry.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !m.convertible(entry.Name()) {
				return nil
			}
			if m.markSeen(path) {
				return nil
			}
			job, enqueueErr := m.enqueueFile(ctx, path)
			if enqueueErr != nil {
				m.logger.Warn("failed to enqueue watched file",
					logging.Error(enqueueErr),
					logging.String("source", path),
				)
				return nil
			}
			if job != nil {
				queued++
				m.logger.Info("watched file queued",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.String("source", path),
				)
			}
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return
		}
	}

	if queued > 0 {
		m.logger.Info("removable media scan complete",
			logging.String(logging.FieldEventType, "watch_media_queued"),
			logging.String("device", devname),
			logging.Int("queued", queued),
		)
	} else {
		m.logger.Debug("removable media scan found no new files",
			logging.String("device", devname))
	}
}

func (m *watchMonitor) enqueueFile(ctx context.Context, path string) (*queue.Job, error) {
	if m.enqueue == nil {
		return nil, nil
	}
	return m.enqueue(ctx, path)
}

// convertible reports whether the file name carries a watched extension.
func (m *watchMonitor) convertible(name string) bool {
	if len(m.extensions) == 0 {
		return false
	}
	_, ok := m.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// markSeen records the path and reports whether it was already imported.
func (m *watchMonitor) markSeen(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[path]; ok {
		return true
	}
	m.seen[path] = struct{}{}
	return false
}

// extractDeviceName gets the device path from a uevent.
func (m *watchMonitor) extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
