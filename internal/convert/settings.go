package convert

import (
	"errors"
	"fmt"

	"recast/internal/catalog"
)

// Settings fully describes how a source file should be converted. The JSON
// field names are the persistence format used by the queue and history
// stores, so they must stay stable.
type Settings struct {
	Kind              catalog.Kind `json:"kind"`
	OutputFormat      string       `json:"outputFormat"`
	Codec             string       `json:"codec"`
	TargetWidth       int          `json:"targetWidth"`
	TargetHeight      int          `json:"targetHeight"`
	TargetFPS         int          `json:"targetFps"`
	TargetBitrateKbps int          `json:"targetBitrateKbps"`
	AutoBitrate       bool         `json:"autoBitrate"`
	QualityPreset     string       `json:"qualityPreset"`
	QualityCRF        int          `json:"qualityCrf"`
	AudioBitrateKbps  int          `json:"audioBitrateKbps"`
}

// DefaultSettings returns a valid baseline for the given kind using the
// catalog's first format and the balanced quality tier. Callers layer
// config and flag overrides on top.
func DefaultSettings(kind catalog.Kind) Settings {
	settings := Settings{
		Kind:             kind,
		AutoBitrate:      true,
		QualityPreset:    "medium",
		QualityCRF:       23,
		AudioBitrateKbps: 192,
	}
	if quality, ok := catalog.LookupQuality("balanced"); ok {
		settings.QualityCRF = quality.CRF
	}
	switch kind {
	case catalog.KindAudio:
		format := catalog.AudioFormats()[0]
		settings.OutputFormat = format.Extension
		settings.Codec = format.Codec
	default:
		format := catalog.VideoFormats()[0]
		settings.Kind = catalog.KindVideo
		settings.OutputFormat = format.Extension
		settings.Codec = format.Codec
	}
	return settings
}

// SettingsForFormat builds defaults for a target container extension.
func SettingsForFormat(extension string) (Settings, error) {
	format, ok := catalog.LookupFormat(extension)
	if !ok {
		return Settings{}, fmt.Errorf("unsupported output format %q", extension)
	}
	settings := DefaultSettings(format.Kind)
	settings.OutputFormat = format.Extension
	settings.Codec = format.Codec
	return settings, nil
}

// Validate checks the settings against the invariants the command builder
// relies on. It returns the first problem found.
func (s Settings) Validate() error {
	switch s.Kind {
	case catalog.KindVideo, catalog.KindAudio:
	default:
		return fmt.Errorf("unknown conversion kind %q", string(s.Kind))
	}
	if s.OutputFormat == "" {
		return errors.New("output format required")
	}
	if s.Codec == "" {
		return errors.New("codec required")
	}
	if s.Kind == catalog.KindAudio {
		if s.Codec != catalog.CodecMP3 && !catalog.IsPCMCodec(s.Codec) && s.AudioBitrateKbps <= 0 {
			return errors.New("audio bitrate required for compressed audio codecs")
		}
		return nil
	}
	if s.TargetWidth < 0 || s.TargetHeight < 0 {
		return errors.New("target dimensions cannot be negative")
	}
	if (s.TargetWidth == 0) != (s.TargetHeight == 0) {
		return errors.New("target width and height must be set together")
	}
	if s.TargetFPS < 0 {
		return errors.New("target frame rate cannot be negative")
	}
	if s.QualityPreset == "" {
		return errors.New("speed preset required")
	}
	if !catalog.IsSpeedPreset(s.QualityPreset) {
		return fmt.Errorf("unknown speed preset %q", s.QualityPreset)
	}
	if s.AutoBitrate {
		if s.QualityCRF < 0 || s.QualityCRF > 51 {
			return fmt.Errorf("quality crf %d outside 0-51", s.QualityCRF)
		}
	} else if s.TargetBitrateKbps <= 0 {
		return errors.New("target bitrate required when auto bitrate is disabled")
	}
	return nil
}
