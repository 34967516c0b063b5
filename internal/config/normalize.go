package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeDefaults()
	c.normalizeQueue()
	c.normalizeHistory()
	c.normalizeNotifications()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDir) == "" {
		c.Paths.HistoryDir = defaultHistoryDir
	}
	if c.Paths.HistoryDir, err = expandPath(c.Paths.HistoryDir); err != nil {
		return fmt.Errorf("paths.history_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QueueDB) == "" {
		c.Paths.QueueDB = defaultQueueDB
	}
	if c.Paths.QueueDB, err = expandPath(c.Paths.QueueDB); err != nil {
		return fmt.Errorf("paths.queue_db: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.FFmpegBinary = strings.TrimSpace(c.Engine.FFmpegBinary)
	if c.Engine.FFmpegBinary == "" {
		c.Engine.FFmpegBinary = "ffmpeg"
	}
	c.Engine.FFprobeBinary = strings.TrimSpace(c.Engine.FFprobeBinary)
	if c.Engine.FFprobeBinary == "" {
		c.Engine.FFprobeBinary = "ffprobe"
	}
	args := make([]string, 0, len(c.Engine.ExtraArgs))
	for _, arg := range c.Engine.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Engine.ExtraArgs = args
}

func (c *Config) normalizeDefaults() {
	c.Defaults.VideoFormat = strings.ToLower(strings.TrimSpace(c.Defaults.VideoFormat))
	if c.Defaults.VideoFormat == "" {
		c.Defaults.VideoFormat = defaultVideoFormat
	}
	c.Defaults.AudioFormat = strings.ToLower(strings.TrimSpace(c.Defaults.AudioFormat))
	if c.Defaults.AudioFormat == "" {
		c.Defaults.AudioFormat = defaultAudioFormat
	}
	c.Defaults.SpeedPreset = strings.ToLower(strings.TrimSpace(c.Defaults.SpeedPreset))
	if c.Defaults.SpeedPreset == "" {
		c.Defaults.SpeedPreset = defaultSpeedPreset
	}
	if c.Defaults.QualityCRF <= 0 {
		c.Defaults.QualityCRF = defaultQualityCRF
	}
	if c.Defaults.VideoBitrateKbps <= 0 {
		c.Defaults.VideoBitrateKbps = defaultVideoBitrateKbps
	}
	if c.Defaults.AudioBitrateKbps <= 0 {
		c.Defaults.AudioBitrateKbps = defaultAudioBitrateKbps
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = defaultQueuePollInterval
	}
	if c.Queue.ErrorRetryInterval <= 0 {
		c.Queue.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Queue.MaxLogTailKiB <= 0 {
		c.Queue.MaxLogTailKiB = defaultMaxLogTailKiB
	}
}

func (c *Config) normalizeHistory() {
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = defaultHistoryMaxEntries
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("RECAST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeWatch() error {
	if len(c.Watch.MountRoots) == 0 {
		c.Watch.MountRoots = defaultWatchMountRoots()
	}
	roots := make([]string, 0, len(c.Watch.MountRoots))
	for _, root := range c.Watch.MountRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("watch.mount_roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Watch.MountRoots = roots

	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = defaultWatchExtensions()
	}
	exts := make([]string, 0, len(c.Watch.Extensions))
	seen := make(map[string]struct{}, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Watch.Extensions = exts

	if c.Watch.SettleSeconds <= 0 {
		c.Watch.SettleSeconds = defaultWatchSettleSeconds
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
