package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/logging"
)

// parseJobID parses a positive queue job id argument.
func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

// formatStatusLabel turns stored status values into display labels, e.g.
// "cancel_requested" becomes "Cancel Requested".
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

// formatTimestamp renders an RFC3339 API timestamp for table cells.
func formatTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.Local().Format("2006-01-02 15:04")
	}
	return value
}

// formatDurationMs renders a millisecond duration as a compact clock value.
func formatDurationMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	rounded := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	hours := int(rounded.Hours())
	minutes := int(rounded.Minutes()) % 60
	seconds := int(rounded.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// formatPercent renders a 0-100 progress value for table cells.
func formatPercent(percent float64) string {
	if percent <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", percent)
}

// formatBytesCell renders a byte count for table cells, "-" when unknown.
func formatBytesCell(size int64) string {
	if size <= 0 {
		return "-"
	}
	return logging.FormatBytes(size)
}

// shortID abbreviates a history entry id for display. Commands that take an
// id resolve unambiguous prefixes back to the full value.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// queueStatsRows converts a status count map into sorted table rows.
func queueStatsRows(stats map[string]int) []table.Row {
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]table.Row, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, table.Row{formatStatusLabel(key), stats[key]})
	}
	return rows
}

// writeJSON encodes v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
