// Package daemonctl controls a recastd process from the CLI: launching it
// detached, stopping it with signals, and collecting status snapshots over
// the daemon HTTP API with offline fallbacks.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"recast/internal/api"
	"recast/internal/config"
	"recast/internal/deps"
	"recast/internal/preflight"
	"recast/internal/queue"
)

// ErrDaemonNotRunning indicates no live daemon process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// PIDFilePath returns the location of the daemon pid file for the config.
func PIDFilePath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "recastd.pid")
}

// ReadPID returns the process id recorded by a running daemon. A missing pid
// file yields os.ErrNotExist.
func ReadPID(cfg *config.Config) (int, error) {
	path := PIDFilePath(cfg)
	if path == "" {
		return 0, errors.New("pid file path not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %q: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("pid file %q holds invalid pid %d", path, pid)
	}
	return pid, nil
}

// ProcessAlive reports whether pid refers to a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ResolveDaemonBinary locates the recastd executable, preferring the one
// installed next to the current binary over PATH lookup.
func ResolveDaemonBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "recastd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("recastd")
	if err != nil {
		return "", fmt.Errorf("recastd binary not found: %w", err)
	}
	return path, nil
}

// Launch starts a detached recastd process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureStarted launches recastd unless a daemon already answers on the API
// bind, then waits for the new process to come up.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("configuration not available")
	}

	if status := probeStatus(ctx, cfg); status != nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if pid, err := ReadPID(cfg); err == nil && ProcessAlive(pid) {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}

	pid, err := waitForStartup(ctx, cfg, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// StopAndTerminate signals the daemon with SIGTERM and waits for it to exit.
// When the process is still alive after gracePeriod it is killed and its pid
// and lock files are removed.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", pid)
	}
	if !ProcessAlive(pid) {
		// Stale pid file left behind by a crashed daemon.
		_ = os.Remove(PIDFilePath(cfg))
		return StopResult{}, ErrDaemonNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(PIDFilePath(cfg))
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	if waitForExit(pid, gracePeriod) {
		return StopResult{PID: pid}, nil
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return StopResult{PID: pid}, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	_ = os.Remove(PIDFilePath(cfg))
	if cfg != nil {
		_ = os.Remove(filepath.Join(cfg.Paths.LogDir, "recastd.lock"))
	}
	return StopResult{PID: pid, ForcedKill: true}, nil
}

// Restart stops the daemon if running, then starts a fresh process.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (StartResult, error) {
	if _, err := StopAndTerminate(cfg, stopGracePeriod); err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return StartResult{}, err
	}
	return EnsureStarted(ctx, cfg, executablePath, opts, startWaitTimeout)
}

// StatusSnapshot aggregates daemon state for the status command. When the
// daemon is offline, queue stats and dependency checks fall back to direct
// store and binary probes.
type StatusSnapshot struct {
	DaemonUp     bool
	Daemon       *api.DaemonStatus
	QueueStats   map[string]int
	Dependencies []api.DependencyStatus
	Checks       []preflight.Result
}

// BuildStatusSnapshot collects daemon, queue, dependency, and preflight state.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	snapshot := &StatusSnapshot{}
	if status := probeStatus(ctx, cfg); status != nil {
		snapshot.Daemon = status
		snapshot.DaemonUp = status.Running
		snapshot.QueueStats = status.Workflow.QueueStats
		snapshot.Dependencies = status.Dependencies
	}

	if !snapshot.DaemonUp {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if store, err := queue.Open(cfg); err == nil {
			if stats, statsErr := store.Stats(queryCtx); statsErr == nil {
				counts := make(map[string]int, len(stats))
				for status, count := range stats {
					counts[string(status)] = count
				}
				snapshot.QueueStats = counts
			}
			_ = store.Close()
		}
	}

	if len(snapshot.Dependencies) == 0 {
		snapshot.Dependencies = api.FromDependencies(deps.CheckBinaries(deps.Requirements(cfg)))
	}
	snapshot.Checks = preflight.RunAll(ctx, cfg)
	return snapshot, nil
}

// SummarizeDependencies reports how many dependencies are available and how
// many required ones are missing.
func SummarizeDependencies(statuses []api.DependencyStatus) (available, missingRequired int) {
	for _, dep := range statuses {
		if dep.Available {
			available++
			continue
		}
		if !dep.Optional {
			missingRequired++
		}
	}
	return available, missingRequired
}

func probeStatus(ctx context.Context, cfg *config.Config) *api.DaemonStatus {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, err := api.NewClient(bind).Status(probeCtx)
	if err != nil {
		return nil
	}
	return status
}

// waitForStartup waits for the daemon to answer on the API, or, when the API
// is unbound, for a live pid file to appear.
func waitForStartup(ctx context.Context, cfg *config.Config, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if status := probeStatus(ctx, cfg); status != nil && status.Running {
			return status.PID, nil
		}
		if strings.TrimSpace(cfg.Paths.APIBind) == "" {
			if pid, err := ReadPID(cfg); err == nil && ProcessAlive(pid) {
				return pid, nil
			}
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return 0, fmt.Errorf("daemon failed to start within %s", timeout)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !ProcessAlive(pid)
}
