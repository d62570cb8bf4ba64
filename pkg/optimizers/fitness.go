package optimizers

import (
	"context"
	"math"
	"time"

	"github.com/XiaoConstantine/promptlab/pkg/core"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

// FitnessConfig contains configuration options for prompt fitness scoring.
type FitnessConfig struct {
	// Cost weighting. Latency is the dominant signal; token volume is a
	// secondary signal rescaled to the same order of magnitude.
	LatencyWeight float64 `json:"latency_weight" yaml:"latency_weight"` // Default: 0.7
	TokenWeight   float64 `json:"token_weight" yaml:"token_weight"`     // Default: 0.3
	TokenScale    float64 `json:"token_scale" yaml:"token_scale"`       // Default: 1000

	// Generation parameters for sample calls
	Temperature float64 `json:"temperature" yaml:"temperature"` // Default: 0.7
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`   // Default: 256
}

// DefaultFitnessConfig returns the default fitness configuration.
func DefaultFitnessConfig() FitnessConfig {
	return FitnessConfig{
		LatencyWeight: 0.7,
		TokenWeight:   0.3,
		TokenScale:    1000,
		Temperature:   0.7,
		MaxTokens:     256,
	}
}

// FitnessEvaluator scores a single prompt as a scalar cost, lower is
// better. It has no side effects on any experiment.
type FitnessEvaluator struct {
	generator core.Generator
	config    FitnessConfig
	logger    *logging.Logger
}

// NewFitnessEvaluator creates a fitness evaluator over a generation service.
func NewFitnessEvaluator(generator core.Generator, config FitnessConfig) *FitnessEvaluator {
	return &FitnessEvaluator{
		generator: generator,
		config:    config,
		logger:    logging.GetLogger(),
	}
}

// WorstFitness is the sentinel returned when every sample call fails. It
// lets selection deprioritize a broken individual instead of aborting the
// surrounding search.
func WorstFitness() float64 {
	return math.Inf(1)
}

// Evaluate runs the generation service once per sample test case and folds
// latency and token usage into a single cost. Failed calls are skipped;
// when every call fails the worst-fitness sentinel is returned.
func (f *FitnessEvaluator) Evaluate(ctx context.Context, prompt string, sample []string) float64 {
	var latencySum time.Duration
	var tokenSum, successes int

	for _, input := range sample {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		gen, err := f.generator.Generate(ctx, prompt, input,
			core.WithTemperature(f.config.Temperature),
			core.WithMaxTokens(f.config.MaxTokens),
		)
		if err != nil {
			f.logger.Debug(ctx, "fitness sample call failed: %v", err)
			continue
		}

		latencySum += time.Since(start)
		tokenSum += gen.Tokens()
		successes++
	}

	if successes == 0 {
		return WorstFitness()
	}

	avgLatency := latencySum.Seconds() / float64(successes)
	avgTokens := float64(tokenSum) / float64(successes)

	return f.config.LatencyWeight*avgLatency + f.config.TokenWeight*(avgTokens/f.config.TokenScale)
}
