package lab

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptlab/pkg/config"
	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	original := logging.GetLogger()
	t.Cleanup(func() { logging.SetLogger(original) })
}

func TestFromConfig_MemoryBackend(t *testing.T) {
	restoreLogger(t)
	ctx := context.Background()
	logFile := filepath.Join(t.TempDir(), "promptlab.log")

	cfg := config.Default()
	cfg.Generation.APIKey = "test-key"
	cfg.Storage.Backend = "memory"
	cfg.Logging.Level = "DEBUG"
	cfg.Logging.File = logFile

	l, err := FromConfig(cfg)
	require.NoError(t, err)
	defer l.Close()

	id, err := l.CreateExperiment(ctx, "Support Bot", []string{"My order is late"})
	require.NoError(t, err)
	_, err = l.AddVariant(ctx, id, "Friendly", "You are a friendly support agent.")
	require.NoError(t, err)

	exp, err := l.GetExperiment(ctx, id)
	require.NoError(t, err)
	assert.Len(t, exp.Variants, 1)

	summaries, err := l.ListExperiments(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	// The configured log level and file are in effect
	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "created experiment")
}

func TestFromConfig_SQLiteBackend(t *testing.T) {
	restoreLogger(t)
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "promptlab.db")

	cfg := config.Default()
	cfg.Generation.APIKey = "test-key"
	cfg.Storage.SQLite.Path = dbPath

	l, err := FromConfig(cfg)
	require.NoError(t, err)
	defer l.Close()

	id, err := l.CreateExperiment(ctx, "Persisted", []string{"input"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestFromConfig_InvalidConfig(t *testing.T) {
	restoreLogger(t)

	cfg := config.Default()
	cfg.Generation.Provider = "replicate"

	_, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.Code(err))
}

func TestFromConfig_MissingAPIKey(t *testing.T) {
	restoreLogger(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := config.Default()
	cfg.Storage.Backend = "memory"

	_, err := FromConfig(cfg)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.Code(err))
}
