package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPipelineSettings(t *testing.T) {
	content := `
[pipeline]
min_confidence = 0.6

[logging]
level = "info"
camera = "debug"
`
	path := filepath.Join(t.TempDir(), "perceptd.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadPipelineSettings(path)
	if err != nil {
		t.Fatalf("LoadPipelineSettings failed: %v", err)
	}
	if settings.Pipeline.MinConfidence != 0.6 {
		t.Errorf("MinConfidence = %v, want 0.6", settings.Pipeline.MinConfidence)
	}
	if settings.Logging["camera"] != "debug" {
		t.Errorf("logging camera level = %q, want debug", settings.Logging["camera"])
	}
}

func TestLoadPipelineSettingsMissingFile(t *testing.T) {
	if _, err := LoadPipelineSettings("/nonexistent/perceptd.toml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPipelineSettingsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[pipeline\nbroken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPipelineSettings(path); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}
