// Package harness runs A/B comparisons: every variant of an experiment is
// exercised against every test case through the generation service, and the
// per-variant aggregate metrics are recomputed in full.
package harness

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/promptlab/pkg/core"
	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

// Config contains configuration options for the A/B tester.
type Config struct {
	MaxGoroutines int     `json:"max_goroutines" yaml:"max_goroutines"` // Default: 4
	Temperature   float64 `json:"temperature" yaml:"temperature"`       // Default: 0.7
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`         // Default: 1024
}

// DefaultConfig returns the default harness configuration.
func DefaultConfig() Config {
	return Config{
		MaxGoroutines: 4,
		Temperature:   0.7,
		MaxTokens:     1024,
	}
}

// VariantReport pairs a variant with its aggregate metrics.
type VariantReport struct {
	VariantID string                       `json:"variant_id"`
	Name      string                       `json:"name"`
	Metrics   *experiment.AggregateMetrics `json:"metrics"`
}

// Summary is the outcome of one A/B run. Reports are sorted by ascending
// average latency; the first entry is labeled the best performer.
type Summary struct {
	ExperimentID  string          `json:"experiment_id"`
	BestVariantID string          `json:"best_variant_id"`
	Reports       []VariantReport `json:"reports"`
}

// ABTester runs experiments through an injected generation service.
type ABTester struct {
	store     *experiment.Store
	generator core.Generator
	config    Config
	logger    *logging.Logger
}

// Option defines functional options for ABTester configuration.
type Option func(*ABTester)

// WithConfig replaces the entire tester configuration.
func WithConfig(cfg Config) Option {
	return func(t *ABTester) {
		t.config = cfg
	}
}

// WithMaxGoroutines bounds the number of variants evaluated concurrently.
func WithMaxGoroutines(n int) Option {
	return func(t *ABTester) {
		t.config.MaxGoroutines = n
	}
}

// WithGenerationParams overrides the temperature and token ceiling used for
// every generation call.
func WithGenerationParams(temperature float64, maxTokens int) Option {
	return func(t *ABTester) {
		t.config.Temperature = temperature
		t.config.MaxTokens = maxTokens
	}
}

// NewABTester creates an A/B tester bound to a store and generator.
func NewABTester(store *experiment.Store, generator core.Generator, opts ...Option) *ABTester {
	t := &ABTester{
		store:     store,
		generator: generator,
		config:    DefaultConfig(),
		logger:    logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// variantOutcome accumulates one variant's run. Each variant has its own
// accumulator, so workers never share mutable state.
type variantOutcome struct {
	results  []experiment.TestResult
	complete bool
}

// Run executes the full A/B comparison for an experiment and persists the
// recomputed results and metrics. A canceled context stops the run early;
// results recorded up to that point are saved, not rolled back.
func (t *ABTester) Run(ctx context.Context, experimentID string) (*Summary, error) {
	exp, err := t.store.Load(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if !exp.Populated() {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "experiment has no variants to test"),
			errors.Fields{"experiment_id": experimentID})
	}

	variantIDs := exp.VariantIDs()
	t.logger.Info(ctx, "running A/B test for experiment %s: %d variants x %d test cases",
		experimentID, len(variantIDs), len(exp.TestCases))

	outcomes := make([]variantOutcome, len(variantIDs))

	p := pool.New().WithMaxGoroutines(t.config.MaxGoroutines)
	for i, id := range variantIDs {
		i, variant := i, exp.Variants[id]
		p.Go(func() {
			outcomes[i] = t.evaluateVariant(ctx, variant, exp.TestCases)
		})
	}
	p.Wait()

	if exp.Results == nil {
		exp.Results = make(map[string][]experiment.TestResult)
	}
	if exp.Metrics == nil {
		exp.Metrics = make(map[string]*experiment.AggregateMetrics)
	}
	for i, id := range variantIDs {
		if len(outcomes[i].results) > 0 || outcomes[i].complete {
			exp.Results[id] = outcomes[i].results
		}
		if outcomes[i].complete {
			exp.Metrics[id] = computeMetrics(outcomes[i].results)
		}
	}

	if err := t.store.Save(ctx, exp); err != nil {
		return nil, err
	}

	if err := errors.CheckContext(ctx, "A/B test"); err != nil {
		return nil, err
	}

	return t.summarize(exp, variantIDs), nil
}

// evaluateVariant runs every test case against one variant's prompt,
// continue-on-error: a failed generation call is recorded and the loop goes
// on. Cancellation stops the loop without recording a result for the
// interrupted case.
func (t *ABTester) evaluateVariant(ctx context.Context, variant *experiment.Variant, testCases []string) variantOutcome {
	outcome := variantOutcome{results: make([]experiment.TestResult, 0, len(testCases))}

	for _, input := range testCases {
		if ctx.Err() != nil {
			return outcome
		}

		start := time.Now()
		gen, err := t.generator.Generate(ctx, variant.Prompt, input,
			core.WithTemperature(t.config.Temperature),
			core.WithMaxTokens(t.config.MaxTokens),
		)
		latency := time.Since(start)

		result := experiment.TestResult{
			Input:     input,
			Timestamp: time.Now().UTC(),
		}
		if err != nil {
			if ctx.Err() != nil {
				// Call lost to cancellation, not to the service.
				return outcome
			}
			result.Error = err.Error()
			t.logger.Warn(ctx, "generation failed for variant %s: %v", variant.ID, err)
		} else {
			result.Response = gen.Content
			result.TokenCount = gen.Tokens()
			result.Latency = latency
			t.logger.PromptCompletion(ctx, variant.Prompt, gen.Content, usageInfo(gen.Usage))
		}
		outcome.results = append(outcome.results, result)
	}

	outcome.complete = true
	return outcome
}

func usageInfo(usage *core.TokenInfo) *logging.TokenInfo {
	if usage == nil {
		return nil
	}
	return &logging.TokenInfo{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}

// computeMetrics recomputes the aggregate for one variant from scratch.
// Averages divide by the total attempted count; failed calls contribute
// zero latency and zero tokens rather than being excluded.
func computeMetrics(results []experiment.TestResult) *experiment.AggregateMetrics {
	total := len(results)
	if total == 0 {
		return &experiment.AggregateMetrics{}
	}

	var latencySum time.Duration
	var tokenSum, successes int
	for _, r := range results {
		if r.Succeeded() {
			latencySum += r.Latency
			tokenSum += r.TokenCount
			successes++
		}
	}

	return &experiment.AggregateMetrics{
		AvgTokens:   float64(tokenSum) / float64(total),
		AvgLatency:  latencySum / time.Duration(total),
		TotalTests:  total,
		SuccessRate: float64(successes) / float64(total),
	}
}

// summarize orders variant reports by ascending average latency, ties
// broken by variant iteration order.
func (t *ABTester) summarize(exp *experiment.Experiment, variantIDs []string) *Summary {
	reports := make([]VariantReport, 0, len(variantIDs))
	for _, id := range variantIDs {
		metrics, ok := exp.Metrics[id]
		if !ok {
			continue
		}
		reports = append(reports, VariantReport{
			VariantID: id,
			Name:      exp.Variants[id].Name,
			Metrics:   metrics,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Metrics.AvgLatency < reports[j].Metrics.AvgLatency
	})

	summary := &Summary{
		ExperimentID: exp.ID,
		Reports:      reports,
	}
	if len(reports) > 0 {
		summary.BestVariantID = reports[0].VariantID
	}
	return summary
}
