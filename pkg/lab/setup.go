package lab

import (
	"fmt"

	"github.com/XiaoConstantine/promptlab/pkg/config"
	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/harness"
	"github.com/XiaoConstantine/promptlab/pkg/llms"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
	"github.com/XiaoConstantine/promptlab/pkg/optimizers"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

// FromConfig builds a fully wired Lab from a configuration: it installs the
// global logger, opens the storage backend, and constructs the generation
// service. The caller owns the returned Lab and must Close it.
func FromConfig(cfg *config.Config, opts ...Option) (*Lab, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if err := installLogger(cfg.Logging); err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	generator, err := llms.NewGenerator(cfg.Generation.Provider, cfg.Generation.APIKey, cfg.Generation.ModelID)
	if err != nil {
		backend.Close()
		return nil, err
	}

	options := []Option{
		WithHarnessOptions(harness.WithConfig(cfg.Harness)),
		WithGeneticOptions(optimizers.WithConfig(cfg.Optimizer)),
		WithFitnessConfig(cfg.Fitness),
	}
	options = append(options, opts...)

	return New(backend, generator, options...), nil
}

func installLogger(cfg config.LoggingConfig) error {
	outputs := []logging.Output{logging.NewConsoleOutput(true)}
	if cfg.File != "" {
		fileOutput, err := logging.NewFileOutput(cfg.File)
		if err != nil {
			return errors.Wrap(err, errors.InvalidInput, "failed to open log file")
		}
		outputs = append(outputs, fileOutput)
	}

	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.Level),
		Outputs:  outputs,
	}))
	return nil
}

func newBackend(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "", "sqlite":
		return storage.NewSQLiteStore(cfg.SQLite)
	default:
		return nil, errors.New(errors.InvalidInput, fmt.Sprintf("unsupported storage backend: %s", cfg.Backend))
	}
}
