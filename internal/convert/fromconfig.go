package convert

import (
	"recast/internal/catalog"
	"recast/internal/config"
)

// SettingsFromConfig builds settings for the given kind from the configured
// defaults. An unknown or mismatched default format falls back to the
// catalog baseline so the result always validates.
func SettingsFromConfig(cfg *config.Config, kind catalog.Kind) Settings {
	settings := DefaultSettings(kind)

	format := cfg.Defaults.VideoFormat
	if kind == catalog.KindAudio {
		format = cfg.Defaults.AudioFormat
	}
	if resolved, err := SettingsForFormat(format); err == nil && resolved.Kind == settings.Kind {
		settings = resolved
	}

	if catalog.IsSpeedPreset(cfg.Defaults.SpeedPreset) {
		settings.QualityPreset = cfg.Defaults.SpeedPreset
	}
	if cfg.Defaults.QualityCRF > 0 && cfg.Defaults.QualityCRF <= 51 {
		settings.QualityCRF = cfg.Defaults.QualityCRF
	}
	settings.AutoBitrate = cfg.Defaults.AutoBitrate
	if cfg.Defaults.VideoBitrateKbps > 0 {
		settings.TargetBitrateKbps = cfg.Defaults.VideoBitrateKbps
	}
	if cfg.Defaults.AudioBitrateKbps > 0 {
		settings.AudioBitrateKbps = cfg.Defaults.AudioBitrateKbps
	}
	return settings
}
