package convert_test

import (
	"strings"
	"testing"

	"recast/internal/catalog"
	"recast/internal/convert"
)

func videoSettings() convert.Settings {
	return convert.DefaultSettings(catalog.KindVideo)
}

func TestBuildArgsInputFirstOutputLast(t *testing.T) {
	args, err := convert.BuildArgs("/in/movie.avi", "/out/movie.mp4", videoSettings())
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if args[0] != "-y" || args[1] != "-i" || args[2] != "/in/movie.avi" {
		t.Fatalf("expected -y -i <source> prefix, got %v", args[:3])
	}
	if args[len(args)-1] != "/out/movie.mp4" {
		t.Fatalf("expected output path last, got %v", args)
	}
}

func TestBuildArgsAutoBitrateUsesCRF(t *testing.T) {
	settings := videoSettings()
	settings.AutoBitrate = true
	settings.QualityCRF = 18

	args, err := convert.BuildArgs("/in/a.mov", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if argValue(args, "-crf") != "18" {
		t.Fatalf("expected -crf 18, got %v", args)
	}
	if hasFlag(args, "-b:v") {
		t.Fatalf("auto bitrate must not emit -b:v, got %v", args)
	}
	if argValue(args, "-preset") != settings.QualityPreset {
		t.Fatalf("expected preset %q, got %v", settings.QualityPreset, args)
	}
}

func TestBuildArgsExplicitBitrateSkipsCRF(t *testing.T) {
	settings := videoSettings()
	settings.AutoBitrate = false
	settings.TargetBitrateKbps = 2500

	args, err := convert.BuildArgs("/in/a.mov", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if argValue(args, "-b:v") != "2500k" {
		t.Fatalf("expected -b:v 2500k, got %v", args)
	}
	if hasFlag(args, "-crf") {
		t.Fatalf("explicit bitrate must not emit -crf, got %v", args)
	}
}

func TestBuildArgsKeepSourceDimensionsSkipsScale(t *testing.T) {
	args, err := convert.BuildArgs("/in/a.mkv", "/out/a.mp4", videoSettings())
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if hasFlag(args, "-vf") {
		t.Fatalf("0x0 target must not emit a scale filter, got %v", args)
	}
}

func TestBuildArgsScaleFilterProducesExactBox(t *testing.T) {
	settings := videoSettings()
	settings.TargetWidth = 1280
	settings.TargetHeight = 720

	args, err := convert.BuildArgs("/in/a.mkv", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	filter := argValue(args, "-vf")
	expected := "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2"
	if filter != expected {
		t.Fatalf("expected filter %q, got %q", expected, filter)
	}
}

func TestBuildArgsFrameRateFlag(t *testing.T) {
	settings := videoSettings()
	settings.TargetFPS = 30

	args, err := convert.BuildArgs("/in/a.mkv", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if argValue(args, "-r") != "30" {
		t.Fatalf("expected -r 30, got %v", args)
	}

	settings.TargetFPS = 0
	args, err = convert.BuildArgs("/in/a.mkv", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if hasFlag(args, "-r") {
		t.Fatalf("fps 0 must not emit -r, got %v", args)
	}
}

func TestBuildArgsVideoAlwaysNormalizesAudio(t *testing.T) {
	args, err := convert.BuildArgs("/in/a.avi", "/out/a.webm", videoSettings())
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if argValue(args, "-c:a") != "aac" {
		t.Fatalf("expected aac audio track, got %v", args)
	}
	if argValue(args, "-b:a") != "128k" {
		t.Fatalf("expected fixed 128k audio bitrate, got %v", args)
	}
}

func TestBuildArgsAudioMP3(t *testing.T) {
	settings := convert.DefaultSettings(catalog.KindAudio)

	args, err := convert.BuildArgs("/in/a.mp4", "/out/a.mp3", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if !hasFlag(args, "-vn") {
		t.Fatalf("audio extraction must drop video, got %v", args)
	}
	if argValue(args, "-c:a") != catalog.CodecMP3 {
		t.Fatalf("expected lame codec, got %v", args)
	}
	if argValue(args, "-q:a") != "2" {
		t.Fatalf("expected fixed VBR quality for mp3, got %v", args)
	}
	if hasFlag(args, "-b:a") {
		t.Fatalf("mp3 must not emit a bitrate, got %v", args)
	}
}

func TestBuildArgsAudioPCMSkipsBitrate(t *testing.T) {
	settings := convert.DefaultSettings(catalog.KindAudio)
	settings.OutputFormat = "wav"
	settings.Codec = catalog.CodecPCM

	args, err := convert.BuildArgs("/in/a.mp4", "/out/a.wav", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if hasFlag(args, "-b:a") {
		t.Fatalf("PCM must not emit a bitrate, got %v", args)
	}
	if hasFlag(args, "-q:a") {
		t.Fatalf("PCM must not emit a quality flag, got %v", args)
	}
}

func TestBuildArgsAudioCompressedBitrate(t *testing.T) {
	settings := convert.DefaultSettings(catalog.KindAudio)
	settings.OutputFormat = "aac"
	settings.Codec = catalog.CodecAAC
	settings.AudioBitrateKbps = 192

	args, err := convert.BuildArgs("/in/a.mp4", "/out/a.aac", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	if argValue(args, "-b:a") != "192k" {
		t.Fatalf("expected -b:a 192k, got %v", args)
	}
	if hasFlag(args, "-c:v") {
		t.Fatalf("audio extraction must not configure a video codec, got %v", args)
	}
}

func TestBuildArgsValidatesBeforeLaunch(t *testing.T) {
	if _, err := convert.BuildArgs("", "/out/a.mp4", videoSettings()); err == nil {
		t.Fatal("expected error for empty source path")
	}
	if _, err := convert.BuildArgs("/in/a.mkv", "  ", videoSettings()); err == nil {
		t.Fatal("expected error for blank output path")
	}
	broken := videoSettings()
	broken.Kind = "unknown"
	if _, err := convert.BuildArgs("/in/a.mkv", "/out/a.mp4", broken); err == nil {
		t.Fatal("expected error for invalid settings")
	}
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildArgsNoEmptyArguments(t *testing.T) {
	settings := videoSettings()
	settings.TargetWidth = 640
	settings.TargetHeight = 360
	settings.TargetFPS = 24

	args, err := convert.BuildArgs("/in/a.mkv", "/out/a.mp4", settings)
	if err != nil {
		t.Fatalf("BuildArgs returned error: %v", err)
	}
	for i, arg := range args {
		if strings.TrimSpace(arg) == "" {
			t.Fatalf("argument %d is blank in %v", i, args)
		}
	}
}
