package main

import (
	"path/filepath"
	"strings"
	"testing"

	"recast/internal/testsupport"
)

func TestQueueLifecycleAgainstStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	input := filepath.Join(testsupport.BaseDir(cfg), "clip.mkv")
	testsupport.WriteFile(t, input, 2048)

	stdout, _, err := runCLI(t, configPath, "queue", "add", input, "--format", "mp4")
	if err != nil {
		t.Fatalf("queue add failed: %v", err)
	}
	if !strings.Contains(stdout, "Queued job 1") {
		t.Fatalf("unexpected add output: %q", stdout)
	}
	if !strings.Contains(stdout, "Daemon is not running") {
		t.Fatalf("expected daemon hint in add output: %q", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(stdout, "clip.mkv") || !strings.Contains(stdout, "Pending") {
		t.Fatalf("unexpected list output:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "stats")
	if err != nil {
		t.Fatalf("queue stats failed: %v", err)
	}
	if !strings.Contains(stdout, "Pending") {
		t.Fatalf("unexpected stats output:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "cancel", "1")
	if err != nil {
		t.Fatalf("queue cancel failed: %v", err)
	}
	if !strings.Contains(stdout, "Job 1 cancelled") {
		t.Fatalf("unexpected cancel output: %q", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "list", "--status", "cancelled")
	if err != nil {
		t.Fatalf("queue list --status failed: %v", err)
	}
	if !strings.Contains(stdout, "clip.mkv") {
		t.Fatalf("cancelled job missing from filtered list:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("queue remove failed: %v", err)
	}
	if !strings.Contains(stdout, "Job 1 removed") {
		t.Fatalf("unexpected remove output: %q", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(stdout, "Queue is empty") {
		t.Fatalf("expected empty queue, got:\n%s", stdout)
	}
}

func TestQueueCancelUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "queue", "cancel", "42")
	if err != nil {
		t.Fatalf("queue cancel failed: %v", err)
	}
	if !strings.Contains(stdout, "not found or already finished") {
		t.Fatalf("unexpected cancel output: %q", stdout)
	}
}

func TestQueueRemoveUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "queue", "remove", "7")
	if err != nil {
		t.Fatalf("queue remove failed: %v", err)
	}
	if !strings.Contains(stdout, "Job 7 not found") {
		t.Fatalf("unexpected remove output: %q", stdout)
	}
}

func TestQueueRetryWithNothingToDo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	stdout, _, err := runCLI(t, configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry failed: %v", err)
	}
	if !strings.Contains(stdout, "No failed jobs to retry") {
		t.Fatalf("unexpected retry output: %q", stdout)
	}
}

func TestQueueRetryRejectsBadID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	if _, _, err := runCLI(t, configPath, "queue", "retry", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	} else if !strings.Contains(err.Error(), "invalid job id") {
		t.Fatalf("unexpected retry error: %v", err)
	}
}

func TestQueueClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	input := filepath.Join(testsupport.BaseDir(cfg), "clip.mkv")
	testsupport.WriteFile(t, input, 1024)

	if _, _, err := runCLI(t, configPath, "queue", "add", input); err != nil {
		t.Fatalf("queue add failed: %v", err)
	}

	stdout, _, err := runCLI(t, configPath, "queue", "clear", "--finished")
	if err != nil {
		t.Fatalf("queue clear --finished failed: %v", err)
	}
	if !strings.Contains(stdout, "Cleared 0 finished jobs") {
		t.Fatalf("pending job should survive --finished clear: %q", stdout)
	}

	stdout, _, err = runCLI(t, configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear failed: %v", err)
	}
	if !strings.Contains(stdout, "Cleared 1 jobs") {
		t.Fatalf("unexpected clear output: %q", stdout)
	}
}

func TestQueueAddMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeCLIConfig(t, cfg)

	missing := filepath.Join(testsupport.BaseDir(cfg), "absent.mkv")
	if _, _, err := runCLI(t, configPath, "queue", "add", missing); err == nil {
		t.Fatal("expected missing input error")
	} else if !strings.Contains(err.Error(), "input file not found") {
		t.Fatalf("unexpected add error: %v", err)
	}
}
