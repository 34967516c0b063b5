package convert_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"recast/internal/catalog"
	"recast/internal/convert"
)

func TestDefaultSettingsVideo(t *testing.T) {
	settings := convert.DefaultSettings(catalog.KindVideo)
	if err := settings.Validate(); err != nil {
		t.Fatalf("expected valid video defaults, got %v", err)
	}
	if settings.OutputFormat != "mp4" {
		t.Fatalf("expected mp4 default container, got %q", settings.OutputFormat)
	}
	if settings.Codec != "libx264" {
		t.Fatalf("expected libx264 default codec, got %q", settings.Codec)
	}
	if !settings.AutoBitrate {
		t.Fatal("expected auto bitrate by default")
	}
	if settings.QualityCRF != 23 {
		t.Fatalf("expected balanced CRF 23, got %d", settings.QualityCRF)
	}
	if settings.TargetWidth != 0 || settings.TargetHeight != 0 {
		t.Fatalf("expected keep-source dimensions, got %dx%d", settings.TargetWidth, settings.TargetHeight)
	}
}

func TestDefaultSettingsAudio(t *testing.T) {
	settings := convert.DefaultSettings(catalog.KindAudio)
	if err := settings.Validate(); err != nil {
		t.Fatalf("expected valid audio defaults, got %v", err)
	}
	if settings.OutputFormat != "mp3" {
		t.Fatalf("expected mp3 default container, got %q", settings.OutputFormat)
	}
	if settings.Codec != catalog.CodecMP3 {
		t.Fatalf("expected lame codec, got %q", settings.Codec)
	}
}

func TestSettingsForFormat(t *testing.T) {
	settings, err := convert.SettingsForFormat("WEBM")
	if err != nil {
		t.Fatalf("SettingsForFormat returned error: %v", err)
	}
	if settings.Kind != catalog.KindVideo {
		t.Fatalf("expected video kind for webm, got %q", settings.Kind)
	}
	if settings.Codec != "libvpx-vp9" {
		t.Fatalf("expected vp9 codec for webm, got %q", settings.Codec)
	}

	if _, err := convert.SettingsForFormat("xyz"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestSettingsValidateRejections(t *testing.T) {
	base := convert.DefaultSettings(catalog.KindVideo)

	cases := []struct {
		name   string
		mutate func(*convert.Settings)
	}{
		{"unknown kind", func(s *convert.Settings) { s.Kind = "image" }},
		{"missing format", func(s *convert.Settings) { s.OutputFormat = "" }},
		{"missing codec", func(s *convert.Settings) { s.Codec = "" }},
		{"negative width", func(s *convert.Settings) { s.TargetWidth = -1; s.TargetHeight = 720 }},
		{"lone width", func(s *convert.Settings) { s.TargetWidth = 1280 }},
		{"lone height", func(s *convert.Settings) { s.TargetHeight = 720 }},
		{"negative fps", func(s *convert.Settings) { s.TargetFPS = -24 }},
		{"missing preset", func(s *convert.Settings) { s.QualityPreset = "" }},
		{"unknown preset", func(s *convert.Settings) { s.QualityPreset = "warp9" }},
		{"crf out of range", func(s *convert.Settings) { s.QualityCRF = 52 }},
		{"explicit without bitrate", func(s *convert.Settings) { s.AutoBitrate = false; s.TargetBitrateKbps = 0 }},
	}
	for _, tc := range cases {
		settings := base
		tc.mutate(&settings)
		if err := settings.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestSettingsValidateAudioBitrateRules(t *testing.T) {
	aac := convert.DefaultSettings(catalog.KindAudio)
	aac.OutputFormat = "aac"
	aac.Codec = catalog.CodecAAC
	aac.AudioBitrateKbps = 0
	if err := aac.Validate(); err == nil {
		t.Fatal("expected compressed audio without bitrate to be rejected")
	}

	wav := convert.DefaultSettings(catalog.KindAudio)
	wav.OutputFormat = "wav"
	wav.Codec = catalog.CodecPCM
	wav.AudioBitrateKbps = 0
	if err := wav.Validate(); err != nil {
		t.Fatalf("expected PCM without bitrate to be valid, got %v", err)
	}

	mp3 := convert.DefaultSettings(catalog.KindAudio)
	mp3.AudioBitrateKbps = 0
	if err := mp3.Validate(); err != nil {
		t.Fatalf("expected mp3 without bitrate to be valid, got %v", err)
	}
}

func TestSettingsJSONRoundTrip(t *testing.T) {
	original := convert.Settings{
		Kind:              catalog.KindVideo,
		OutputFormat:      "webm",
		Codec:             "libvpx-vp9",
		TargetWidth:       1280,
		TargetHeight:      720,
		TargetFPS:         30,
		TargetBitrateKbps: 2500,
		AutoBitrate:       false,
		QualityPreset:     "slow",
		QualityCRF:        18,
		AudioBitrateKbps:  192,
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal settings: %v", err)
	}

	var restored convert.Settings
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal settings: %v", err)
	}
	if !reflect.DeepEqual(original, restored) {
		t.Fatalf("round trip mismatch:\noriginal %+v\nrestored %+v", original, restored)
	}
}

func TestSettingsJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(convert.DefaultSettings(catalog.KindVideo))
	if err != nil {
		t.Fatalf("marshal settings: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal into map: %v", err)
	}
	for _, key := range []string{
		"kind", "outputFormat", "codec", "targetWidth", "targetHeight",
		"targetFps", "targetBitrateKbps", "autoBitrate", "qualityPreset",
		"qualityCrf", "audioBitrateKbps",
	} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected stable JSON field %q, got %s", key, raw)
		}
	}
}
