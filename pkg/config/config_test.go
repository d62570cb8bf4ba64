package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promptlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "anthropic", cfg.Generation.Provider)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 0.7, cfg.Fitness.LatencyWeight)
	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
generation:
  provider: anthropic
  model_id: claude-sonnet-4-5
logging:
  level: DEBUG
harness:
  max_goroutines: 8
optimizer:
  population_size: 20
  mutation_rate: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", cfg.Generation.ModelID)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Harness.MaxGoroutines)
	assert.Equal(t, 20, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 0.5, cfg.Optimizer.MutationRate)

	// Unspecified sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 0.3, cfg.Fitness.TokenWeight)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.Code(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "generation: [not: a: mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.Code(err))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unsupported provider",
			content: `
generation:
  provider: replicate
  model_id: some-model
`,
		},
		{
			name: "missing model id",
			content: `
generation:
  provider: anthropic
  model_id: ""
`,
		},
		{
			name: "unknown storage backend",
			content: `
storage:
  backend: dynamo
`,
		},
		{
			name: "unknown log level",
			content: `
logging:
  level: TRACE
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, errors.ValidationFailed, errors.Code(err))
		})
	}
}
