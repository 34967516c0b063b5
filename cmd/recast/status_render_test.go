package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusLinePlain(t *testing.T) {
	line := statusLine("State", statusOK, "running (pid 7)", false)
	if !strings.HasPrefix(line, "  State:") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "[OK] running (pid 7)") {
		t.Fatalf("missing tag and detail: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("plain line should carry no ANSI codes: %q", line)
	}
}

func TestStatusLineColorized(t *testing.T) {
	line := statusLine("Checks", statusError, "queue database unreachable", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red wrapping: %q", line)
	}
}

func TestStatusKindLabels(t *testing.T) {
	cases := map[statusKind]string{
		statusInfo:  "INFO",
		statusOK:    "OK",
		statusWarn:  "WARN",
		statusError: "ERROR",
	}
	for kind, want := range cases {
		if got := kind.label(); got != want {
			t.Fatalf("label for kind %d = %q, want %q", kind, got, want)
		}
	}
}

func TestSectionHeaderRuleMatchesTitle(t *testing.T) {
	lines := sectionHeader("Dependencies", false)
	if len(lines) != 2 {
		t.Fatalf("expected title and rule, got %d lines", len(lines))
	}
	if lines[0] != "== Dependencies ==" {
		t.Fatalf("unexpected title line %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) || strings.Trim(lines[1], "-") != "" {
		t.Fatalf("rule should be dashes matching the title width: %q", lines[1])
	}
}

func TestShouldColorizeRejectsBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are not terminals")
	}
}
