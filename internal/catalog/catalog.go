// Package catalog enumerates the output formats, resolutions, frame rates,
// and quality tiers recast supports, together with the engine identifiers
// each one maps to. Pure data; conversion behavior lives in internal/convert.
package catalog

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind distinguishes video conversions from audio extractions.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Engine codec identifiers referenced by the command builder.
const (
	CodecMP3 = "libmp3lame"
	CodecAAC = "aac"
	CodecPCM = "pcm_s16le"
)

// Format pairs a container extension with the engine codec used to fill it.
type Format struct {
	Extension string
	Codec     string
	Kind      Kind
}

// DisplayName returns the format name as shown in tables ("MP4", "WEBM").
func (f Format) DisplayName() string {
	return strings.ToUpper(f.Extension)
}

// VideoFormats lists the supported video containers in display order.
func VideoFormats() []Format {
	return []Format{
		{Extension: "mp4", Codec: "libx264", Kind: KindVideo},
		{Extension: "mkv", Codec: "libx264", Kind: KindVideo},
		{Extension: "webm", Codec: "libvpx-vp9", Kind: KindVideo},
		{Extension: "mov", Codec: "libx264", Kind: KindVideo},
		{Extension: "avi", Codec: "mpeg4", Kind: KindVideo},
	}
}

// AudioFormats lists the supported audio containers in display order.
func AudioFormats() []Format {
	return []Format{
		{Extension: "mp3", Codec: CodecMP3, Kind: KindAudio},
		{Extension: "wav", Codec: CodecPCM, Kind: KindAudio},
		{Extension: "aac", Codec: CodecAAC, Kind: KindAudio},
		{Extension: "flac", Codec: "flac", Kind: KindAudio},
		{Extension: "ogg", Codec: "libvorbis", Kind: KindAudio},
	}
}

// LookupFormat resolves an extension (with or without leading dot, any case)
// against both format tables.
func LookupFormat(extension string) (Format, bool) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	for _, f := range VideoFormats() {
		if f.Extension == normalized {
			return f, true
		}
	}
	for _, f := range AudioFormats() {
		if f.Extension == normalized {
			return f, true
		}
	}
	return Format{}, false
}

// Resolution is a target output box. The zero value means "keep source".
type Resolution struct {
	Width  int
	Height int
}

// IsOriginal reports whether the resolution keeps the source dimensions.
func (r Resolution) IsOriginal() bool {
	return r.Width == 0 && r.Height == 0
}

// Label renders the resolution for tables ("Original", "1920x1080").
func (r Resolution) Label() string {
	if r.IsOriginal() {
		return "Original"
	}
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
}

// Resolutions lists the selectable output boxes, largest first, with the
// keep-source sentinel leading.
func Resolutions() []Resolution {
	return []Resolution{
		{},
		{Width: 3840, Height: 2160},
		{Width: 2560, Height: 1440},
		{Width: 1920, Height: 1080},
		{Width: 1280, Height: 720},
		{Width: 854, Height: 480},
		{Width: 640, Height: 360},
		{Width: 426, Height: 240},
	}
}

// FrameRates lists the selectable output frame rates; 0 keeps the source rate.
func FrameRates() []int {
	return []int{0, 24, 25, 30, 50, 60}
}

// QualityLevel names a CRF tier for quality-based encoding.
type QualityLevel struct {
	Name string
	CRF  int
}

// DisplayName returns the tier name in title case ("High", "Balanced").
func (q QualityLevel) DisplayName() string {
	return cases.Title(language.Und).String(q.Name)
}

// QualityLevels lists the CRF tiers, best quality first.
func QualityLevels() []QualityLevel {
	return []QualityLevel{
		{Name: "high", CRF: 18},
		{Name: "balanced", CRF: 23},
		{Name: "compact", CRF: 28},
	}
}

// LookupQuality resolves a tier name case-insensitively.
func LookupQuality(name string) (QualityLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, q := range QualityLevels() {
		if q.Name == normalized {
			return q, true
		}
	}
	return QualityLevel{}, false
}

// SpeedPresets lists the engine speed/quality presets, fastest first.
func SpeedPresets() []string {
	return []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow"}
}

// IsSpeedPreset reports whether name is a known engine preset.
func IsSpeedPreset(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, preset := range SpeedPresets() {
		if preset == normalized {
			return true
		}
	}
	return false
}

// IsPCMCodec reports whether codec is an uncompressed PCM variant, which
// never takes a bitrate parameter.
func IsPCMCodec(codec string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(codec)), "pcm_")
}
