package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// readProgress consumes the key=value stream produced by -progress pipe:1.
// FFmpeg emits one block per reporting interval, terminated by a
// progress=continue or progress=end line; each completed block becomes one
// Stats callback.
func readProgress(r io.Reader, onStats func(Stats)) {
	scanner := bufio.NewScanner(r)
	block := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key != "progress" {
			block[key] = value
			continue
		}
		if onStats != nil {
			onStats(decodeStats(block))
		}
		block = make(map[string]string)
	}
}

func decodeStats(block map[string]string) Stats {
	stats := Stats{ProcessedMs: processedMs(block)}
	if v := usable(block["speed"]); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64); err == nil {
			stats.Speed = f
		}
	}
	if v := usable(block["fps"]); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			stats.FPS = f
		}
	}
	stats.Bitrate = usable(block["bitrate"])
	return stats
}

// processedMs resolves the cumulative output timestamp. out_time_ms carries
// microseconds despite the name; out_time is an HH:MM:SS.micros clock string
// used as the fallback when the numeric field is absent or unusable.
func processedMs(block map[string]string) int64 {
	if v := usable(block["out_time_ms"]); v != "" {
		if us, err := strconv.ParseInt(v, 10, 64); err == nil && us > 0 {
			return us / 1000
		}
	}
	if v := usable(block["out_time"]); v != "" {
		if d, ok := parseClock(v); ok {
			return d.Milliseconds()
		}
	}
	return 0
}

func parseClock(value string) (time.Duration, bool) {
	var hours, minutes int
	var seconds float64
	if _, err := fmt.Sscanf(value, "%d:%d:%f", &hours, &minutes, &seconds); err != nil {
		return 0, false
	}
	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	if d < 0 {
		return 0, false
	}
	return d, true
}

func usable(value string) string {
	if value == "" || value == "N/A" {
		return ""
	}
	return value
}
