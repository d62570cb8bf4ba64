// Package config loads and validates the engine configuration from YAML.
package config

import (
	"github.com/XiaoConstantine/promptlab/pkg/harness"
	"github.com/XiaoConstantine/promptlab/pkg/optimizers"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

// Config represents the complete configuration for the promptlab engine.
type Config struct {
	// Generation-service configuration
	Generation GenerationConfig `yaml:"generation" validate:"required"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage,omitempty" validate:"omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`

	// Harness configuration
	Harness harness.Config `yaml:"harness,omitempty" validate:"omitempty"`

	// Optimizer configuration
	Optimizer optimizers.GeneticConfig `yaml:"optimizer,omitempty" validate:"omitempty"`

	// Fitness configuration
	Fitness optimizers.FitnessConfig `yaml:"fitness,omitempty" validate:"omitempty"`
}

// GenerationConfig selects and parameterizes the generation-service client.
type GenerationConfig struct {
	// Provider name (anthropic)
	Provider string `yaml:"provider" validate:"required,oneof=anthropic"`

	// Model ID (e.g. claude-3-5-haiku-latest)
	ModelID string `yaml:"model_id" validate:"required"`

	// API key; falls back to the provider's environment variable when empty
	APIKey string `yaml:"api_key,omitempty"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend name (sqlite, memory)
	Backend string `yaml:"backend" validate:"omitempty,oneof=sqlite memory"`

	SQLite storage.SQLiteConfig `yaml:"sqlite,omitempty"`
}

// LoggingConfig controls log verbosity and destinations.
type LoggingConfig struct {
	// Severity level (DEBUG, INFO, WARN, ERROR, FATAL)
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL"`

	// Optional log file path; console output is always enabled
	File string `yaml:"file,omitempty"`
}
