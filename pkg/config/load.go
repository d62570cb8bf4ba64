package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/harness"
	"github.com/XiaoConstantine/promptlab/pkg/optimizers"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Provider: "anthropic",
			ModelID:  "claude-3-5-haiku-latest",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite:  storage.DefaultSQLiteConfig(),
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Harness:   harness.DefaultConfig(),
		Optimizer: optimizers.DefaultGeneticConfig(),
		Fitness:   optimizers.DefaultFitnessConfig(),
	}
}

// Load reads a YAML configuration file over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "failed to parse config file")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a configuration against its struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	return nil
}
