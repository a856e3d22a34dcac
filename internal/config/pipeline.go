package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// PipelineSettings holds the settings that can change while the daemon
// is running. The config watcher reloads them from the TOML file and
// pushes them to the pipeline without a restart.
type PipelineSettings struct {
	Pipeline struct {
		MinConfidence float64 `toml:"min_confidence"`
	} `toml:"pipeline"`
	Logging map[string]string `toml:"logging"`
}

// LoadPipelineSettings parses the runtime-reloadable sections of the
// config file. Used as the loader for the config watcher.
func LoadPipelineSettings(path string) (PipelineSettings, error) {
	var settings PipelineSettings

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse config file: %w", err)
	}
	return settings, nil
}
