package main

import (
	"testing"
)

func TestParseJobID(t *testing.T) {
	if id, err := parseJobID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parseJobID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := parseJobID(bad); err == nil {
			t.Fatalf("parseJobID(%q) should fail", bad)
		}
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":          "Pending",
		"cancel_requested": "Cancel Requested",
		"RUNNING":          "Running",
		"":                 "",
	}
	for in, want := range cases {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatDurationMs(t *testing.T) {
	cases := map[int64]string{
		0:        "-",
		1_500:    "0:02",
		65_000:   "1:05",
		372_500:  "6:13",
	}
	for in, want := range cases {
		if got := formatDurationMs(in); got != want {
			t.Fatalf("formatDurationMs(%d) = %q, want %q", in, got, want)
		}
	}
	if got := formatDurationMs(3_725_000); got != "1:02:05" {
		t.Fatalf("formatDurationMs(3725000) = %q, want 1:02:05", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(""); got != "-" {
		t.Fatalf("empty timestamp = %q", got)
	}
	if got := formatTimestamp("not-a-time"); got != "not-a-time" {
		t.Fatalf("unparseable timestamp should pass through, got %q", got)
	}
	if got := formatTimestamp("2026-03-01T10:30:00.000Z"); len(got) != len("2006-01-02 15:04") {
		t.Fatalf("unexpected timestamp rendering %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(0); got != "-" {
		t.Fatalf("formatPercent(0) = %q", got)
	}
	if got := formatPercent(42.4); got != "42%" {
		t.Fatalf("formatPercent(42.4) = %q", got)
	}
}

func TestQueueStatsRows(t *testing.T) {
	rows := queueStatsRows(map[string]int{
		"pending":   2,
		"running":   1,
		"completed": 0,
	})
	if len(rows) != 2 {
		t.Fatalf("expected zero counts to be dropped, got %d rows", len(rows))
	}
	if rows[0][0] != "Pending" || rows[1][0] != "Running" {
		t.Fatalf("rows not sorted by status: %v", rows)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("short input should pass through, got %q", got)
	}
}
