package optimizers

import (
	"context"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptlab/internal/testutil"
	"github.com/XiaoConstantine/promptlab/pkg/core"
	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
)

// promptLengthEvaluator is a deterministic fitness stand-in: cost grows
// with prompt length, so shorter prompts win.
type promptLengthEvaluator struct{}

func (promptLengthEvaluator) Evaluate(ctx context.Context, prompt string, sample []string) float64 {
	return float64(len(prompt))
}

func testExperiment(prompts ...string) *experiment.Experiment {
	exp := &experiment.Experiment{
		ID:        "exp-1",
		Name:      "Test",
		TestCases: []string{"My order is late", "How do I reset my password?", "Where is my refund?", "Cancel my plan"},
		Variants:  make(map[string]*experiment.Variant),
	}
	for i, prompt := range prompts {
		id := string(rune('a' + i))
		exp.Variants[id] = &experiment.Variant{ID: id, Name: "V" + id, Prompt: prompt}
	}
	return exp
}

func TestGeneticOptimizer_Optimize(t *testing.T) {
	ctx := context.Background()
	exp := testExperiment(
		"You are a friendly support agent. Answer clearly.",
		"You are a formal support agent. Provide detailed answers.",
	)

	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(42))
	best, log, err := g.Optimize(ctx, exp, 6, 3)
	require.NoError(t, err)

	assert.NotEmpty(t, best)
	require.Len(t, log, 3)

	// Elitism: the per-generation minimum fitness never increases.
	for i := 1; i < len(log); i++ {
		assert.LessOrEqual(t, log[i].BestFitness, log[i-1].BestFitness,
			"generation %d regressed", i)
	}
	for i, record := range log {
		assert.Equal(t, i, record.Generation)
		assert.NotEmpty(t, record.BestPromptPreview)
	}

	// The champion is persisted as a new variant with optimization
	// metadata, leaving the two seeds untouched.
	require.Len(t, exp.Variants, 3)
	var champion *experiment.Variant
	for _, v := range exp.Variants {
		if v.Optimization != nil {
			champion = v
		}
	}
	require.NotNil(t, champion)
	assert.Equal(t, best, champion.Prompt)
	assert.Equal(t, "genetic_algorithm", champion.Optimization.Method)
	assert.Equal(t, 3, champion.Optimization.Generations)
	assert.Equal(t, 6, champion.Optimization.PopulationSize)
	assert.Equal(t, float64(len(best)), champion.Optimization.FinalFitness)
	assert.Equal(t, log, exp.Generations)
}

func TestGeneticOptimizer_SeededRunsAreReproducible(t *testing.T) {
	ctx := context.Background()

	run := func() (string, []experiment.GenerationRecord) {
		exp := testExperiment(
			"You are a friendly support agent. Answer clearly.",
			"You are a formal support agent.",
		)
		g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(7))
		best, log, err := g.Optimize(ctx, exp, 8, 4)
		require.NoError(t, err)
		return best, log
	}

	best1, log1 := run()
	best2, log2 := run()
	assert.Equal(t, best1, best2)
	assert.Equal(t, log1, log2)
}

func TestGeneticOptimizer_RequiresVariants(t *testing.T) {
	ctx := context.Background()
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(1))

	_, _, err := g.Optimize(ctx, testExperiment(), 6, 2)
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.Code(err))
}

func TestGeneticOptimizer_DefaultSizes(t *testing.T) {
	ctx := context.Background()
	exp := testExperiment("You are an assistant.")

	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(3))
	_, log, err := g.Optimize(ctx, exp, 0, 0)
	require.NoError(t, err)
	assert.Len(t, log, DefaultGeneticConfig().Generations)
}

func TestGeneticOptimizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exp := testExperiment("You are an assistant.")
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(1))

	_, _, err := g.Optimize(ctx, exp, 4, 2)
	require.Error(t, err)
	assert.Equal(t, errors.Canceled, errors.Code(err))
	assert.Len(t, exp.Variants, 1, "no champion is recorded on abort")
}

func TestGeneticOptimizer_WithConfig(t *testing.T) {
	ctx := context.Background()
	exp := testExperiment("You are an assistant.")

	cfg := DefaultGeneticConfig()
	cfg.PopulationSize = 4
	cfg.Generations = 2
	cfg.Seed = 5

	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithConfig(cfg))
	_, log, err := g.Optimize(ctx, exp, 0, 0)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

// Preview truncation must never split a multi-byte character.
func TestGenerationPreviewHandlesMultibytePrompts(t *testing.T) {
	prompt := strings.Repeat("é", 80)
	truncated := preview(prompt, 60)

	assert.True(t, utf8.ValidString(truncated))
	assert.Equal(t, strings.Repeat("é", 60)+"...", truncated)

	assert.Equal(t, "short", preview("short", 60))
	assert.Equal(t, "unlimited", preview("unlimited", 0))
}

func TestCrossover_SentenceCount(t *testing.T) {
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(11))

	tests := []struct {
		name     string
		parent1  string
		parent2  string
		expected int
	}{
		{
			name:     "equal length",
			parent1:  "Be friendly. Answer fast.",
			parent2:  "Be formal. Answer slowly.",
			expected: 2,
		},
		{
			name:     "first longer",
			parent1:  "Be friendly. Answer fast. Stay calm!",
			parent2:  "Be formal.",
			expected: 3,
		},
		{
			name:     "second longer with mixed terminators",
			parent1:  "Be kind.",
			parent2:  "Greet first! Then answer? Close politely.",
			expected: 3,
		},
		{
			name:     "one empty parent",
			parent1:  "",
			parent2:  "Answer the question.",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			child := g.Crossover(tt.parent1, tt.parent2)
			assert.Len(t, splitSentences(child), tt.expected)
		})
	}

	assert.Equal(t, "", g.Crossover("", ""))
}

func TestCrossover_SentencesComeFromParents(t *testing.T) {
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(5))

	parent1 := "Be friendly. Answer fast."
	parent2 := "Be formal. Answer slowly."
	fromParents := map[string]bool{
		"Be friendly": true, "Answer fast": true,
		"Be formal": true, "Answer slowly": true,
	}

	for i := 0; i < 20; i++ {
		child := g.Crossover(parent1, parent2)
		for _, sentence := range splitSentences(child) {
			assert.True(t, fromParents[sentence], "unexpected sentence %q", sentence)
		}
	}
}

// Mutate is total: for any input, including the empty string, it returns a
// string and never panics.
func TestMutate_Total(t *testing.T) {
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(9))

	inputs := []string{
		"",
		"You are a helpful assistant.",
		"Provide answers",
		"no terminator here",
		"!!!",
		strings.Repeat("word ", 200),
	}

	for _, input := range inputs {
		for i := 0; i < len(mutationCatalog)*4; i++ {
			assert.NotPanics(t, func() {
				_ = g.Mutate(input)
			})
		}
	}
}

func TestMutate_AppliesSingleRule(t *testing.T) {
	g := NewGeneticOptimizer(promptLengthEvaluator{}, WithSeed(13))

	// Over many draws at least one rule changes a prompt every rule
	// applies to.
	prompt := "Provide a helpful answer."
	changed := false
	for i := 0; i < 50; i++ {
		if g.Mutate(prompt) != prompt {
			changed = true
			break
		}
	}
	assert.True(t, changed, "mutation never altered an eligible prompt")
}

func TestFitnessEvaluator_Evaluate(t *testing.T) {
	ctx := context.Background()

	stub := &testutil.StubGenerator{Content: "ok", Tokens: 500}
	f := NewFitnessEvaluator(stub, DefaultFitnessConfig())

	fitness := f.Evaluate(ctx, "You are an assistant.", []string{"a", "b", "c"})
	assert.Equal(t, 3, stub.CallCount())
	// Token term dominates: 0.3 * (500/1000) = 0.15, latency is near zero.
	assert.InDelta(t, 0.15, fitness, 0.05)
}

func TestFitnessEvaluator_AllFailuresYieldSentinel(t *testing.T) {
	ctx := context.Background()

	f := NewFitnessEvaluator(testutil.FailingGenerator{}, DefaultFitnessConfig())
	fitness := f.Evaluate(ctx, "You are an assistant.", []string{"a", "b"})
	assert.True(t, math.IsInf(fitness, 1))
}

// failFirstGenerator fails its first call and succeeds afterwards. Only
// safe for single-goroutine use.
type failFirstGenerator struct {
	calls  int
	tokens int
}

func (g *failFirstGenerator) Generate(ctx context.Context, system, user string, options ...core.GenerateOption) (*core.Generation, error) {
	g.calls++
	if g.calls == 1 {
		return nil, errors.New(errors.GenerationFailed, "transient failure")
	}
	return &core.Generation{Content: "ok", Usage: &core.TokenInfo{TotalTokens: g.tokens}}, nil
}

func (g *failFirstGenerator) ProviderName() string { return "failfirst" }
func (g *failFirstGenerator) ModelID() string      { return "failfirst-model" }

// Failed sample calls are skipped: the score averages over successes only.
func TestFitnessEvaluator_PartialFailures(t *testing.T) {
	ctx := context.Background()

	f := NewFitnessEvaluator(&failFirstGenerator{tokens: 400}, DefaultFitnessConfig())

	fitness := f.Evaluate(ctx, "You are an assistant.", []string{"a", "b"})
	assert.False(t, math.IsInf(fitness, 1))
	// Token term over the single success: 0.3 * (400/1000) = 0.12.
	assert.InDelta(t, 0.12, fitness, 0.05)
}
