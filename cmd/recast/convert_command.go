package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"recast/internal/catalog"
	"recast/internal/config"
	"recast/internal/convert"
	"recast/internal/fileutil"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/media/ffprobe"
	"recast/internal/media/thumbnail"
	"recast/internal/services/ffmpeg"
)

// progressScale is the progress bar resolution; ratios map to permille so
// long conversions still advance visibly.
const progressScale = 1000

// convertFlags holds the conversion tuning flags shared by `convert` and
// `queue add`.
type convertFlags struct {
	format       string
	codec        string
	resolution   string
	fps          int
	bitrateKbps  int
	crf          int
	preset       string
	audioBitrate int
	outputDir    string
}

func addConvertFlags(cmd *cobra.Command, flags *convertFlags) {
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format (see `recast formats`)")
	cmd.Flags().StringVar(&flags.codec, "codec", "", "Override the encoder for the chosen format")
	cmd.Flags().StringVarP(&flags.resolution, "resolution", "r", "", "Target resolution, WIDTHxHEIGHT or \"original\"")
	cmd.Flags().IntVar(&flags.fps, "fps", 0, "Target frame rate, 0 keeps the source rate")
	cmd.Flags().IntVarP(&flags.bitrateKbps, "bitrate", "b", 0, "Target video bitrate in kbit/s (disables CRF mode)")
	cmd.Flags().IntVar(&flags.crf, "crf", 0, "Constant rate factor 0-51 (enables CRF mode)")
	cmd.Flags().StringVar(&flags.preset, "preset", "", "Encoder speed preset (ultrafast..veryslow)")
	cmd.Flags().IntVar(&flags.audioBitrate, "audio-bitrate", 0, "Audio bitrate in kbit/s")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for converted files")
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	flags := &convertFlags{}

	cmd := &cobra.Command{
		Use:   "convert <input> [input...]",
		Short: "Convert media files",
		Long: "Convert one or more media files with ffmpeg. Inputs are processed\n" +
			"sequentially; a failed input does not stop the remaining ones.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			settings, err := flags.settings(cmd, cfg)
			if err != nil {
				return err
			}
			jobs, err := buildConvertJobs(cfg, args, settings, flags.outputDir)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			prober := ffprobe.DurationProber(cfg.FFprobeBinary())
			for i := range jobs {
				jobs[i].KnownDurationMs = prober(cmd.Context(), jobs[i].SourcePath)
			}

			historyStore, err := history.NewStore(cfg.Paths.HistoryDir, cfg.History.MaxEntries)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer historyStore.Close()

			orchestrator := convert.NewOrchestrator(
				ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary())),
				prober,
				logger,
			)
			reporter := newConvertReporter(cmd, jobs, logger)

			results, err := convert.NewBatch(orchestrator).Run(cmd.Context(), jobs, func(index int, p convert.Progress) {
				reporter.observe(index, p)
				if p.Terminal() {
					recordHistory(cmd.Context(), historyStore, cfg, jobs[index], p, reporter.elapsedMs(index), logger)
				}
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				if !result.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d conversions did not complete", failed, len(results))
			}
			if len(results) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "All %d conversions completed\n", len(results))
			}
			return nil
		},
	}

	addConvertFlags(cmd, flags)
	return cmd
}

// settings resolves conversion settings from the configured defaults and the
// flags the user actually set.
func (f *convertFlags) settings(cmd *cobra.Command, cfg *config.Config) (convert.Settings, error) {
	format := strings.TrimSpace(f.format)
	if format == "" {
		format = cfg.Defaults.VideoFormat
	}
	resolved, ok := catalog.LookupFormat(format)
	if !ok {
		return convert.Settings{}, fmt.Errorf("unsupported output format %q", format)
	}

	settings := convert.SettingsFromConfig(cfg, resolved.Kind)
	settings.OutputFormat = resolved.Extension
	settings.Codec = resolved.Codec

	if codec := strings.TrimSpace(f.codec); codec != "" {
		settings.Codec = codec
	}
	if cmd.Flags().Changed("bitrate") && cmd.Flags().Changed("crf") {
		return convert.Settings{}, errors.New("--bitrate and --crf are mutually exclusive")
	}
	if cmd.Flags().Changed("resolution") {
		width, height, err := parseResolution(f.resolution)
		if err != nil {
			return convert.Settings{}, err
		}
		settings.TargetWidth = width
		settings.TargetHeight = height
	}
	if cmd.Flags().Changed("fps") {
		if f.fps < 0 {
			return convert.Settings{}, fmt.Errorf("invalid frame rate %d", f.fps)
		}
		settings.TargetFPS = f.fps
	}
	if cmd.Flags().Changed("bitrate") {
		if f.bitrateKbps <= 0 {
			return convert.Settings{}, fmt.Errorf("bitrate must be positive, got %d", f.bitrateKbps)
		}
		settings.AutoBitrate = false
		settings.TargetBitrateKbps = f.bitrateKbps
	}
	if cmd.Flags().Changed("crf") {
		settings.AutoBitrate = true
		settings.QualityCRF = f.crf
	}
	if preset := strings.TrimSpace(f.preset); preset != "" {
		settings.QualityPreset = preset
	}
	if cmd.Flags().Changed("audio-bitrate") {
		settings.AudioBitrateKbps = f.audioBitrate
	}

	if err := settings.Validate(); err != nil {
		return convert.Settings{}, err
	}
	return settings, nil
}

// parseResolution parses "WIDTHxHEIGHT" or the keyword "original".
func parseResolution(value string) (int, int, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || normalized == "original" {
		return 0, 0, nil
	}
	parts := strings.SplitN(normalized, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution %q (use WIDTHxHEIGHT or \"original\")", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution width %q", parts[0])
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution height %q", parts[1])
	}
	return width, height, nil
}

// buildConvertJobs validates each input and reserves a collision-free output
// path for it under the requested directory.
func buildConvertJobs(cfg *config.Config, inputs []string, settings convert.Settings, outputDir string) ([]convert.Job, error) {
	dir := strings.TrimSpace(outputDir)
	if dir == "" {
		dir = cfg.Paths.OutputDir
	}
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	used := make(map[string]struct{}, len(inputs))
	jobs := make([]convert.Job, 0, len(inputs))
	for _, input := range inputs {
		source, err := config.ExpandPath(input)
		if err != nil {
			return nil, err
		}
		if !fileutil.Exists(source) {
			return nil, fmt.Errorf("input file not found: %s", source)
		}
		stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		jobs = append(jobs, convert.Job{
			SourcePath: source,
			OutputPath: reserveOutputPath(dir, stem, settings.OutputFormat, used),
			Settings:   settings,
			ExtraArgs:  cfg.Engine.ExtraArgs,
		})
	}
	return jobs, nil
}

// reserveOutputPath picks a free output path, avoiding both files on disk and
// paths already reserved for earlier inputs of the same batch.
func reserveOutputPath(dir, stem, ext string, used map[string]struct{}) string {
	candidate := fileutil.UniquePath(filepath.Join(dir, stem+"."+ext))
	for i := 1; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fileutil.UniquePath(filepath.Join(dir, fmt.Sprintf("%s-%d.%s", stem, i, ext)))
	}
}

// recordHistory persists the outcome of one conversion, mirroring what the
// daemon records for queue jobs. Failures to record never fail the command.
func recordHistory(ctx context.Context, store *history.Store, cfg *config.Config, job convert.Job, terminal convert.Progress, elapsedMs int64, logger *slog.Logger) {
	if terminal.Status != convert.StatusCompleted && !cfg.History.KeepFailures {
		return
	}

	entry := history.Entry{
		SourcePath:       job.SourcePath,
		OutputFormat:     job.Settings.OutputFormat,
		Settings:         job.Settings,
		Status:           terminal.Status,
		SourceDurationMs: job.KnownDurationMs,
		ElapsedMs:        elapsedMs,
	}
	if terminal.Status == convert.StatusCompleted {
		entry.OutputPath = terminal.OutputPath
		entry.OutputSizeBytes = terminal.OutputSizeBytes
	} else {
		entry.ErrorMessage = terminal.Error
		if strings.TrimSpace(entry.ErrorMessage) == "" {
			entry.ErrorMessage = terminal.Message
		}
	}

	stored, err := store.Add(entry)
	if err != nil {
		logger.Warn("failed to record history entry", logging.Error(err))
		return
	}
	if terminal.Status != convert.StatusCompleted || !cfg.History.Thumbnails || job.Settings.Kind != catalog.KindVideo {
		return
	}

	thumbPath := filepath.Join(cfg.ThumbnailDir(), stored.ID+".jpg")
	opts := thumbnail.Options{Binary: cfg.FFmpegBinary()}
	if job.KnownDurationMs > 0 {
		opts.Offset = time.Duration(job.KnownDurationMs/10) * time.Millisecond
	}
	if err := thumbnail.Generate(ctx, stored.OutputPath, thumbPath, opts); err != nil {
		logger.Debug("thumbnail generation failed", logging.Error(err))
		return
	}
	if err := store.SetThumbnail(stored.ID, thumbPath); err != nil {
		logger.Warn("failed to attach thumbnail", logging.Error(err))
	}
}

// convertReporter renders batch progress: an interactive bar on terminals,
// sampled log lines otherwise. Outcome lines go to stdout in both modes.
type convertReporter struct {
	stdout  io.Writer
	errOut  io.Writer
	jobs    []convert.Job
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	tty     bool

	bar      *progressbar.ProgressBar
	barIndex int
	starts   []time.Time
}

func newConvertReporter(cmd *cobra.Command, jobs []convert.Job, logger *slog.Logger) *convertReporter {
	errOut := cmd.ErrOrStderr()
	return &convertReporter{
		stdout:   cmd.OutOrStdout(),
		errOut:   errOut,
		jobs:     jobs,
		logger:   logger,
		sampler:  logging.NewProgressSampler(5),
		tty:      shouldColorize(errOut),
		barIndex: -1,
		starts:   make([]time.Time, len(jobs)),
	}
}

func (r *convertReporter) observe(index int, p convert.Progress) {
	if r.starts[index].IsZero() {
		r.starts[index] = time.Now()
	}
	if r.tty {
		r.observeInteractive(index, p)
	} else {
		r.observeLogged(index, p)
	}
	if p.Terminal() {
		r.printOutcome(index, p)
	}
}

func (r *convertReporter) elapsedMs(index int) int64 {
	if r.starts[index].IsZero() {
		return 0
	}
	return time.Since(r.starts[index]).Milliseconds()
}

func (r *convertReporter) observeInteractive(index int, p convert.Progress) {
	if p.Terminal() {
		r.closeBar()
		return
	}
	if r.bar == nil || r.barIndex != index {
		r.closeBar()
		r.barIndex = index
		r.bar = progressbar.NewOptions(progressScale,
			progressbar.OptionSetWriter(r.errOut),
			progressbar.OptionSetDescription(filepath.Base(r.jobs[index].SourcePath)),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
		)
	}
	if p.Ratio > 0 {
		_ = r.bar.Set(int(p.Ratio * progressScale))
	}
}

func (r *convertReporter) closeBar() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Clear()
	r.bar = nil
}

func (r *convertReporter) observeLogged(index int, p convert.Progress) {
	if p.Terminal() {
		r.sampler.Reset()
		return
	}
	name := filepath.Base(r.jobs[index].SourcePath)
	percent := p.Ratio * 100
	if !r.sampler.ShouldLog(percent, name) {
		return
	}
	r.logger.Info("conversion progress",
		logging.String("source", name),
		logging.String("status", string(p.Status)),
		logging.Int("percent", int(percent)),
		logging.Float64("speed", p.Speed),
	)
}

func (r *convertReporter) printOutcome(index int, p convert.Progress) {
	name := filepath.Base(r.jobs[index].SourcePath)
	switch p.Status {
	case convert.StatusCompleted:
		fmt.Fprintf(r.stdout, "Converted %s -> %s (%s in %s)\n",
			name, p.OutputPath, logging.FormatBytes(p.OutputSizeBytes), formatDurationMs(r.elapsedMs(index)))
	case convert.StatusCancelled:
		fmt.Fprintf(r.stdout, "Cancelled %s\n", name)
	case convert.StatusFailed:
		message := strings.TrimSpace(p.Error)
		if message == "" {
			message = strings.TrimSpace(p.Message)
		}
		if message == "" {
			message = "conversion failed"
		}
		fmt.Fprintf(r.stdout, "Failed %s: %s\n", name, message)
	}
}
