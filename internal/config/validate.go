package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDefaults(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDefaults() error {
	if c.Defaults.QualityCRF < 0 || c.Defaults.QualityCRF > 51 {
		return errors.New("defaults.quality_crf must be between 0 and 51")
	}
	return ensurePositiveMap(map[string]int{
		"defaults.video_bitrate_kbps": c.Defaults.VideoBitrateKbps,
		"defaults.audio_bitrate_kbps": c.Defaults.AudioBitrateKbps,
	})
}

func (c *Config) validateQueue() error {
	return ensurePositiveMap(map[string]int{
		"queue.poll_interval":        c.Queue.PollInterval,
		"queue.error_retry_interval": c.Queue.ErrorRetryInterval,
		"queue.max_log_tail_kib":     c.Queue.MaxLogTailKiB,
	})
}

func (c *Config) validateHistory() error {
	if c.History.MaxEntries <= 0 {
		return errors.New("history.max_entries must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if !c.Watch.Enabled {
		return nil
	}
	if len(c.Watch.MountRoots) == 0 {
		return errors.New("watch.mount_roots must include at least one directory when watch.enabled is true")
	}
	if len(c.Watch.Extensions) == 0 {
		return errors.New("watch.extensions must include at least one extension when watch.enabled is true")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
