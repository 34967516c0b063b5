package stage

import (
	"testing"

	"recast/internal/catalog"
	"recast/internal/convert"
	"recast/internal/queue"
)

func TestJobSettings_Valid(t *testing.T) {
	job := &queue.Job{ID: 1}
	if err := job.SetSettings(convert.DefaultSettings(catalog.KindVideo)); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}
	settings, err := JobSettings(job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.OutputFormat != "mp4" {
		t.Fatalf("unexpected format: %q", settings.OutputFormat)
	}
}

func TestJobSettings_Missing(t *testing.T) {
	job := &queue.Job{ID: 2}
	if _, err := JobSettings(job); err == nil {
		t.Fatal("expected error for missing settings")
	}
}

func TestJobSettings_Invalid(t *testing.T) {
	job := &queue.Job{ID: 3, SettingsJSON: `{"kind":"video","outputFormat":"","codec":""}`}
	if _, err := JobSettings(job); err == nil {
		t.Fatal("expected error for invalid settings")
	}
}
