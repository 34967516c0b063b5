package stage

import (
	"recast/internal/convert"
	"recast/internal/queue"
	"recast/internal/services"
)

// JobSettings decodes the conversion settings carried by a queue job.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func JobSettings(job *queue.Job) (convert.Settings, error) {
	settings, err := job.Settings()
	if err != nil {
		return convert.Settings{}, services.Wrap(
			services.ErrValidation, "stage", "decode settings",
			"Conversion settings missing or invalid; remove and re-add the job", err)
	}
	if err := settings.Validate(); err != nil {
		return convert.Settings{}, services.Wrap(
			services.ErrValidation, "stage", "validate settings",
			"Conversion settings rejected", err)
	}
	return settings, nil
}
