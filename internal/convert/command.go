package convert

import (
	"errors"
	"strconv"
	"strings"

	"recast/internal/catalog"
)

// BuildArgs assembles the engine argument list for one conversion. The
// grammar is fixed: input first, codec and filter flags in the middle, the
// output path always last. Validation failures surface before any process
// is launched.
func BuildArgs(sourcePath, outputPath string, s Settings) ([]string, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("source path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return nil, errors.New("output path required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	args := []string{"-y", "-i", sourcePath}
	switch s.Kind {
	case catalog.KindAudio:
		args = appendAudioArgs(args, s)
	case catalog.KindVideo:
		args = appendVideoArgs(args, s)
	}
	return append(args, outputPath), nil
}

func appendAudioArgs(args []string, s Settings) []string {
	args = append(args, "-vn", "-c:a", s.Codec)
	switch {
	case s.Codec == catalog.CodecMP3:
		// Fixed VBR quality; lame ignores -b:a in this mode.
		args = append(args, "-q:a", "2")
	case catalog.IsPCMCodec(s.Codec):
		// PCM is uncompressed and carries no bitrate parameter.
	default:
		args = append(args, "-b:a", kbps(s.AudioBitrateKbps))
	}
	return args
}

func appendVideoArgs(args []string, s Settings) []string {
	args = append(args, "-c:v", s.Codec)
	if s.TargetWidth != 0 || s.TargetHeight != 0 {
		args = append(args, "-vf", scaleFilter(s.TargetWidth, s.TargetHeight))
	}
	if s.TargetFPS != 0 {
		args = append(args, "-r", strconv.Itoa(s.TargetFPS))
	}
	if s.AutoBitrate {
		args = append(args, "-crf", strconv.Itoa(s.QualityCRF), "-preset", s.QualityPreset)
	} else {
		args = append(args, "-b:v", kbps(s.TargetBitrateKbps), "-preset", s.QualityPreset)
	}
	// Audio is re-encoded unconditionally; stream copy is never used.
	return append(args, "-c:a", "aac", "-b:a", "128k")
}

// scaleFilter fits the source inside the WxH box preserving aspect ratio,
// then pads to exactly WxH with the frame centered.
func scaleFilter(width, height int) string {
	w := strconv.Itoa(width)
	h := strconv.Itoa(height)
	return "scale=" + w + ":" + h + ":force_original_aspect_ratio=decrease," +
		"pad=" + w + ":" + h + ":(ow-iw)/2:(oh-ih)/2"
}

func kbps(value int) string {
	return strconv.Itoa(value) + "k"
}
