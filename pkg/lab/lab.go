// Package lab exposes the public operation surface of the prompt
// experimentation engine: experiment lifecycle, variant management, A/B
// evaluation, genetic optimization, and reporting, all wired over injected
// storage and generation-service dependencies.
package lab

import (
	"context"

	"github.com/XiaoConstantine/promptlab/pkg/core"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
	"github.com/XiaoConstantine/promptlab/pkg/harness"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
	"github.com/XiaoConstantine/promptlab/pkg/optimizers"
	"github.com/XiaoConstantine/promptlab/pkg/report"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

// Lab orchestrates the experiment store, evaluation harness, genetic
// optimizer, and reporter behind one surface.
type Lab struct {
	backend   storage.Store
	store     *experiment.Store
	generator core.Generator
	tester    *harness.ABTester
	reporter  *report.Reporter
	logger    *logging.Logger

	harnessOpts []harness.Option
	geneticOpts []optimizers.GeneticOption
	fitnessCfg  optimizers.FitnessConfig
}

// Option defines functional options for Lab construction.
type Option func(*Lab)

// WithHarnessOptions forwards options to the A/B tester.
func WithHarnessOptions(opts ...harness.Option) Option {
	return func(l *Lab) {
		l.harnessOpts = append(l.harnessOpts, opts...)
	}
}

// WithGeneticOptions forwards options to the genetic optimizer.
func WithGeneticOptions(opts ...optimizers.GeneticOption) Option {
	return func(l *Lab) {
		l.geneticOpts = append(l.geneticOpts, opts...)
	}
}

// WithFitnessConfig overrides the fitness model used during optimization.
func WithFitnessConfig(cfg optimizers.FitnessConfig) Option {
	return func(l *Lab) {
		l.fitnessCfg = cfg
	}
}

// New wires a Lab over a key-value backend and a generation service.
func New(backend storage.Store, generator core.Generator, opts ...Option) *Lab {
	l := &Lab{
		backend:    backend,
		generator:  generator,
		logger:     logging.GetLogger(),
		fitnessCfg: optimizers.DefaultFitnessConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.store = experiment.NewStore(backend)
	l.tester = harness.NewABTester(l.store, generator, l.harnessOpts...)
	l.reporter = report.NewReporter(l.store)

	return l
}

// Close releases the storage backend.
func (l *Lab) Close() error {
	return l.backend.Close()
}

// CreateExperiment registers a new experiment with its fixed test cases.
func (l *Lab) CreateExperiment(ctx context.Context, name string, testCases []string) (string, error) {
	exp, err := l.store.Create(ctx, name, testCases)
	if err != nil {
		return "", err
	}
	return exp.ID, nil
}

// AddVariant registers a new prompt variant on an experiment.
func (l *Lab) AddVariant(ctx context.Context, experimentID, name, prompt string) (string, error) {
	variant, err := l.store.AddVariant(ctx, experimentID, name, prompt)
	if err != nil {
		return "", err
	}
	return variant.ID, nil
}

// RunABTest evaluates every variant against every test case and returns the
// comparison summary, best performer first.
func (l *Lab) RunABTest(ctx context.Context, experimentID string) (*harness.Summary, error) {
	return l.tester.Run(ctx, experimentID)
}

// GetMetrics returns the per-variant aggregate metrics of an experiment.
func (l *Lab) GetMetrics(ctx context.Context, experimentID string) (map[string]*experiment.AggregateMetrics, error) {
	return l.reporter.Metrics(ctx, experimentID)
}

// GeneticOptimize evolves a better prompt for the experiment, persists it as
// a new variant, and returns the champion prompt with the generation log.
// Non-positive sizes fall back to the defaults (population 10, generations 5).
func (l *Lab) GeneticOptimize(ctx context.Context, experimentID string, populationSize, generations int) (string, []experiment.GenerationRecord, error) {
	exp, err := l.store.Load(ctx, experimentID)
	if err != nil {
		return "", nil, err
	}

	fitness := optimizers.NewFitnessEvaluator(l.generator, l.fitnessCfg)
	optimizer := optimizers.NewGeneticOptimizer(fitness, l.geneticOpts...)

	best, log, err := optimizer.Optimize(ctx, exp, populationSize, generations)
	if err != nil {
		return "", nil, err
	}

	if err := l.store.Save(ctx, exp); err != nil {
		return "", nil, err
	}
	return best, log, nil
}

// ListExperiments returns summaries of every stored experiment.
func (l *Lab) ListExperiments(ctx context.Context) ([]experiment.Summary, error) {
	return l.store.List(ctx)
}

// GetExperiment returns the full experiment aggregate.
func (l *Lab) GetExperiment(ctx context.Context, experimentID string) (*experiment.Experiment, error) {
	return l.store.Load(ctx, experimentID)
}

// ExportResults serializes the full experiment state plus an export
// timestamp.
func (l *Lab) ExportResults(ctx context.Context, experimentID string) ([]byte, error) {
	return l.reporter.Export(ctx, experimentID)
}

// RenderMetrics formats an experiment's metrics as a plain-text table.
func (l *Lab) RenderMetrics(ctx context.Context, experimentID string) (string, error) {
	exp, err := l.store.Load(ctx, experimentID)
	if err != nil {
		return "", err
	}
	return l.reporter.Render(exp), nil
}
