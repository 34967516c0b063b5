package convertstage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"recast/internal/convert"
	"recast/internal/fileutil"
	"recast/internal/logging"
	"recast/internal/queue"
	"recast/internal/services"
	"recast/internal/stage"
)

// Prepare validates the job and reserves a collision-free output path. The
// manager persists the job after Prepare, so OutputPath survives restarts.
func (c *Converter) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)

	settings, err := stage.JobSettings(job)
	if err != nil {
		return err
	}

	source := strings.TrimSpace(job.SourcePath)
	if !fileutil.Exists(source) {
		return services.Wrap(
			services.ErrValidation,
			"convert",
			"check source",
			fmt.Sprintf("Source file %q does not exist", source),
			nil,
		)
	}

	output, err := c.resolveOutputPath(job, settings)
	if err != nil {
		return err
	}
	job.OutputPath = output
	job.ProgressPercent = 0
	job.ProgressMessage = "preparing conversion"

	logger.Debug("conversion prepared",
		logging.String("source", source),
		logging.String("output", output),
		logging.String("format", settings.OutputFormat))
	return nil
}

// resolveOutputPath derives the final destination: the job's explicit output
// path when set, otherwise the output directory plus the source stem. The
// extension always follows the requested format, and existing files are
// never overwritten ("name.ext" becomes "name-1.ext").
func (c *Converter) resolveOutputPath(job *queue.Job, settings convert.Settings) (string, error) {
	target := strings.TrimSpace(job.OutputPath)
	if target == "" {
		outputDir := strings.TrimSpace(c.cfg.Paths.OutputDir)
		if outputDir == "" {
			return "", services.Wrap(
				services.ErrConfiguration,
				"convert",
				"resolve output",
				"No output path on the job and no output_dir configured",
				nil,
			)
		}
		name := job.SourceName()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" {
			stem = "converted"
		}
		target = filepath.Join(outputDir, stem)
	}

	ext := "." + settings.OutputFormat
	if current := filepath.Ext(target); !strings.EqualFold(current, ext) {
		target = strings.TrimSuffix(target, current) + ext
	}

	if err := fileutil.EnsureDir(filepath.Dir(target)); err != nil {
		return "", services.Wrap(
			services.ErrConfiguration,
			"convert",
			"ensure output dir",
			"Failed to create the output directory; check output_dir permissions",
			err,
		)
	}
	return fileutil.UniquePath(target), nil
}
