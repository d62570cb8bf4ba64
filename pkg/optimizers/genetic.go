// Package optimizers implements the population-based genetic search that
// evolves better instruction prompts for an experiment, together with the
// fitness model that guides selection.
package optimizers

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

// OptimizationMethod is recorded on variants produced by this package.
const OptimizationMethod = "genetic_algorithm"

// GeneticConfig contains configuration options for the genetic optimizer.
type GeneticConfig struct {
	// Evolutionary parameters
	PopulationSize int     `json:"population_size" yaml:"population_size"` // Default: 10
	Generations    int     `json:"generations" yaml:"generations"`         // Default: 5
	MutationRate   float64 `json:"mutation_rate" yaml:"mutation_rate"`     // Default: 0.3
	SurvivorFloor  int     `json:"survivor_floor" yaml:"survivor_floor"`   // Default: 3

	// SampleSize bounds how many of the experiment's test cases are used
	// per fitness evaluation during search. Full A/B reporting still uses
	// the complete set, so an individual judged fit here may rank
	// differently under full evaluation.
	SampleSize int `json:"sample_size" yaml:"sample_size"` // Default: 3

	// PreviewLength truncates the best prompt recorded per generation.
	PreviewLength int `json:"preview_length" yaml:"preview_length"` // Default: 60

	// Performance parameters
	ConcurrencyLevel int `json:"concurrency_level" yaml:"concurrency_level"` // Default: 3

	// Seed for the random source. Zero or negative selects a time-based
	// seed; tests inject a fixed one for reproducible runs.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultGeneticConfig returns the default configuration for the optimizer.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize:   10,
		Generations:      5,
		MutationRate:     0.3,
		SurvivorFloor:    3,
		SampleSize:       3,
		PreviewLength:    60,
		ConcurrencyLevel: 3,
	}
}

// Evaluator scores a prompt against a sample of test cases; lower is
// better. FitnessEvaluator is the production implementation.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string, sample []string) float64
}

// GeneticOptimizer evolves a population of prompt strings across
// generations using elitist selection, sentence-level crossover, and a
// fixed mutation catalog.
type GeneticOptimizer struct {
	config  GeneticConfig
	fitness Evaluator
	rng     *rand.Rand
	logger  *logging.Logger
}

// GeneticOption defines functional options for optimizer configuration.
type GeneticOption func(*GeneticOptimizer)

// WithConfig replaces the entire optimizer configuration.
func WithConfig(cfg GeneticConfig) GeneticOption {
	return func(g *GeneticOptimizer) {
		g.config = cfg
	}
}

// WithSeed fixes the random source so runs are reproducible.
func WithSeed(seed int64) GeneticOption {
	return func(g *GeneticOptimizer) {
		g.config.Seed = seed
	}
}

// WithMutationRate sets the probability of mutating a crossover offspring.
func WithMutationRate(rate float64) GeneticOption {
	return func(g *GeneticOptimizer) {
		g.config.MutationRate = rate
	}
}

// WithSampleSize sets how many test cases each fitness evaluation samples.
func WithSampleSize(n int) GeneticOption {
	return func(g *GeneticOptimizer) {
		g.config.SampleSize = n
	}
}

// WithConcurrencyLevel bounds concurrent fitness evaluations.
func WithConcurrencyLevel(n int) GeneticOption {
	return func(g *GeneticOptimizer) {
		g.config.ConcurrencyLevel = n
	}
}

// NewGeneticOptimizer creates a genetic optimizer guided by the given
// fitness evaluator.
func NewGeneticOptimizer(fitness Evaluator, opts ...GeneticOption) *GeneticOptimizer {
	g := &GeneticOptimizer{
		config:  DefaultGeneticConfig(),
		fitness: fitness,
		logger:  logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	seed := g.config.Seed
	if seed <= 0 {
		seed = time.Now().UnixNano()
	}
	g.rng = rand.New(rand.NewSource(seed))

	return g
}

type individual struct {
	prompt  string
	fitness float64
}

// Optimize runs the genetic search for an experiment and mutates the loaded
// aggregate in place: the champion prompt becomes a new variant carrying
// optimization metadata, and the generation log replaces any prior one.
// Saving the aggregate is the caller's responsibility.
func (g *GeneticOptimizer) Optimize(ctx context.Context, exp *experiment.Experiment, populationSize, generations int) (string, []experiment.GenerationRecord, error) {
	if populationSize <= 0 {
		populationSize = g.config.PopulationSize
	}
	if generations <= 0 {
		generations = g.config.Generations
	}
	if exp == nil || !exp.Populated() {
		return "", nil, errors.New(errors.ValidationFailed, "experiment has no variants to seed the population")
	}
	if populationSize < 2 {
		return "", nil, errors.New(errors.ValidationFailed, "population size must be at least 2")
	}

	sample := g.sampleTestCases(exp)
	population := g.seedPopulation(exp, populationSize)

	g.logger.Info(ctx, "starting genetic optimization for experiment %s: population=%d generations=%d sample=%d",
		exp.ID, populationSize, generations, len(sample))

	log := make([]experiment.GenerationRecord, 0, generations)
	var best individual

	for gen := 0; gen < generations; gen++ {
		if err := errors.CheckContext(ctx, "genetic optimization"); err != nil {
			return "", nil, err
		}

		ranked := g.rankPopulation(ctx, population, sample)
		best = ranked[0]

		log = append(log, experiment.GenerationRecord{
			Generation:        gen,
			BestFitness:       best.fitness,
			BestPromptPreview: preview(best.prompt, g.config.PreviewLength),
		})
		g.logger.Debug(ctx, "generation %d: best fitness %.6f", gen, best.fitness)

		if gen == generations-1 {
			break
		}

		survivors := g.selectSurvivors(ranked, populationSize)
		population = g.rebuildPopulation(survivors, populationSize)
	}

	champion := &experiment.Variant{
		ID:        uuid.New().String(),
		Name:      "Genetic Champion",
		Prompt:    best.prompt,
		CreatedAt: time.Now().UTC(),
		Optimization: &experiment.OptimizationMeta{
			Method:         OptimizationMethod,
			Generations:    generations,
			PopulationSize: populationSize,
			FinalFitness:   best.fitness,
		},
	}
	exp.Variants[champion.ID] = champion
	exp.Generations = log

	g.logger.Info(ctx, "genetic optimization complete: champion variant %s, final fitness %.6f", champion.ID, best.fitness)
	return best.prompt, log, nil
}

// sampleTestCases takes the fixed prefix of the experiment's test cases
// used for every fitness evaluation in this run.
func (g *GeneticOptimizer) sampleTestCases(exp *experiment.Experiment) []string {
	n := g.config.SampleSize
	if n <= 0 || n > len(exp.TestCases) {
		n = len(exp.TestCases)
	}
	return exp.TestCases[:n]
}

// seedPopulation starts from every existing variant prompt and pads with
// mutated copies of random picks until the population is full. The size
// stays constant for the remainder of the run.
func (g *GeneticOptimizer) seedPopulation(exp *experiment.Experiment, populationSize int) []string {
	seeds := make([]string, 0, len(exp.Variants))
	for _, id := range exp.VariantIDs() {
		seeds = append(seeds, exp.Variants[id].Prompt)
	}

	population := make([]string, 0, populationSize)
	population = append(population, seeds...)
	if len(population) > populationSize {
		population = population[:populationSize]
	}
	for len(population) < populationSize {
		base := seeds[g.rng.Intn(len(seeds))]
		population = append(population, g.Mutate(base))
	}
	return population
}

// rankPopulation evaluates every individual against the sample and returns
// them sorted ascending by fitness.
func (g *GeneticOptimizer) rankPopulation(ctx context.Context, population []string, sample []string) []individual {
	ranked := make([]individual, len(population))

	p := pool.New().WithMaxGoroutines(g.config.ConcurrencyLevel)
	for i, prompt := range population {
		i, prompt := i, prompt
		p.Go(func() {
			ranked[i] = individual{
				prompt:  prompt,
				fitness: g.fitness.Evaluate(ctx, prompt, sample),
			}
		})
	}
	p.Wait()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness < ranked[j].fitness
	})
	return ranked
}

// selectSurvivors keeps the fittest individuals. The floor guarantees
// enough parents for crossover on small populations.
func (g *GeneticOptimizer) selectSurvivors(ranked []individual, populationSize int) []string {
	count := populationSize / 3
	if count < g.config.SurvivorFloor {
		count = g.config.SurvivorFloor
	}
	if count > len(ranked) {
		count = len(ranked)
	}

	survivors := make([]string, count)
	for i := 0; i < count; i++ {
		survivors[i] = ranked[i].prompt
	}
	return survivors
}

// rebuildPopulation carries every survivor forward verbatim, so the best
// individual is never lost between generations, then fills the remainder
// with crossover offspring (optionally mutated) or, when fewer than two
// survivors exist, plain mutations.
func (g *GeneticOptimizer) rebuildPopulation(survivors []string, populationSize int) []string {
	next := make([]string, 0, populationSize)
	next = append(next, survivors...)

	for len(next) < populationSize {
		if len(survivors) >= 2 {
			i := g.rng.Intn(len(survivors))
			j := g.rng.Intn(len(survivors) - 1)
			if j >= i {
				j++
			}
			child := g.Crossover(survivors[i], survivors[j])
			if g.rng.Float64() < g.config.MutationRate {
				child = g.Mutate(child)
			}
			next = append(next, child)
		} else {
			next = append(next, g.Mutate(survivors[0]))
		}
	}
	return next
}

// Crossover combines two parent prompts sentence by sentence. For each
// index up to the longer sentence count the child takes the sentence from
// whichever parent has one, choosing randomly when both do. The result has
// max(len(a), len(b)) sentences.
func (g *GeneticOptimizer) Crossover(parent1, parent2 string) string {
	s1 := splitSentences(parent1)
	s2 := splitSentences(parent2)

	count := len(s1)
	if len(s2) > count {
		count = len(s2)
	}

	child := make([]string, 0, count)
	for i := 0; i < count; i++ {
		switch {
		case i < len(s1) && i < len(s2):
			if g.rng.Intn(2) == 0 {
				child = append(child, s1[i])
			} else {
				child = append(child, s2[i])
			}
		case i < len(s1):
			child = append(child, s1[i])
		default:
			child = append(child, s2[i])
		}
	}

	return strings.Join(child, ". ")
}

// Mutate applies exactly one transformation drawn uniformly from the fixed
// catalog. It is total: for any input, including the empty string, it
// returns a string and never panics.
func (g *GeneticOptimizer) Mutate(prompt string) string {
	rule := mutationCatalog[g.rng.Intn(len(mutationCatalog))]
	return rule(g.rng, prompt)
}

// splitSentences breaks a prompt on sentence terminators, dropping empty
// fragments.
func splitSentences(prompt string) []string {
	parts := strings.FieldsFunc(prompt, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// preview truncates to at most limit runes, never splitting a multi-byte
// character.
func preview(prompt string, limit int) string {
	if limit <= 0 || len(prompt) <= limit {
		return prompt
	}
	runes := []rune(prompt)
	if len(runes) <= limit {
		return prompt
	}
	return string(runes[:limit]) + "..."
}
