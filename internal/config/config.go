// Package config handles buildtool configuration loading and management.
package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/buildplate/pkg/model"
)

// Config holds all buildtool settings.
type Config struct {
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Model   ModelConfig   `yaml:"model" toml:"model"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// OutputConfig controls where and how generated files are written.
type OutputConfig struct {
	Dir     string   `yaml:"dir" toml:"dir"`
	Formats []string `yaml:"formats" toml:"formats"` // formats written by "sample"
}

// ModelConfig holds defaults applied to models the tool creates.
type ModelConfig struct {
	Unit     string            `yaml:"unit" toml:"unit"`
	Metadata map[string]string `yaml:"metadata" toml:"metadata"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:     ".",
			Formats: []string{"3mf", "stl"},
		},
		Model: ModelConfig{
			Unit:     string(model.UnitMillimeter),
			Metadata: map[string]string{"Application": "buildplate"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs error
	if !model.Unit(c.Model.Unit).Valid() {
		errs = multierr.Append(errs, fmt.Errorf("model.unit: unknown unit %q", c.Model.Unit))
	}
	if len(c.Output.Formats) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("output.formats: at least one format is required"))
	}
	if c.Output.Dir == "" {
		errs = multierr.Append(errs, fmt.Errorf("output.dir: must not be empty"))
	}
	for name := range c.Model.Metadata {
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("model.metadata: empty name"))
		}
	}
	return errs
}
