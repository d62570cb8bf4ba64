// Package experiment defines the experiment aggregate and its persistence
// gateway. An Experiment owns a fixed set of test-case inputs plus the
// prompt variants, per-call results, aggregate metrics, and genetic-search
// history evaluated against them.
package experiment

import (
	"sort"
	"time"
)

// Experiment is the root aggregate. It is loaded as a copy: mutations only
// take effect once the copy is saved back through the Store.
type Experiment struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`

	// TestCases is fixed at creation and never mutated afterwards.
	TestCases []string `json:"test_cases" validate:"required,min=1,dive,required"`

	Variants    map[string]*Variant          `json:"variants"`
	Results     map[string][]TestResult      `json:"results,omitempty"`
	Metrics     map[string]*AggregateMetrics `json:"metrics,omitempty"`
	Generations []GenerationRecord           `json:"generations,omitempty"`

	// Version is the storage stamp used for optimistic concurrency. It is
	// not part of the serialized document.
	Version int64 `json:"-"`
}

// Variant is one candidate system instruction under test.
type Variant struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt" validate:"required"`
	CreatedAt time.Time `json:"created_at"`

	// Optimization is set only on variants produced by the genetic
	// optimizer.
	Optimization *OptimizationMeta `json:"optimization,omitempty"`
}

// OptimizationMeta records how an optimizer-produced variant came to be.
type OptimizationMeta struct {
	Method         string  `json:"method"`
	Generations    int     `json:"generations"`
	PopulationSize int     `json:"population_size"`
	FinalFitness   float64 `json:"final_fitness"`
}

// TestResult captures one generation call for one (variant, test case)
// pair. Immutable once recorded.
type TestResult struct {
	Input      string        `json:"input"`
	Response   string        `json:"response,omitempty"`
	TokenCount int           `json:"token_count,omitempty"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Succeeded reports whether the generation call completed.
func (r TestResult) Succeeded() bool {
	return r.Error == ""
}

// AggregateMetrics summarizes one variant's full A/B run. It is recomputed
// in full on every run; a rerun replaces the prior entry.
//
// Both averages divide by the total attempted count, failed calls
// contributing zero. A variant that fails every call therefore reports zero
// latency and zero tokens rather than "no data".
type AggregateMetrics struct {
	AvgTokens   float64       `json:"avg_tokens"`
	AvgLatency  time.Duration `json:"avg_latency"`
	TotalTests  int           `json:"total_tests"`
	SuccessRate float64       `json:"success_rate"`
}

// GenerationRecord is one entry of the genetic optimizer's log.
type GenerationRecord struct {
	Generation        int     `json:"generation"`
	BestFitness       float64 `json:"best_fitness"`
	BestPromptPreview string  `json:"best_prompt_preview"`
}

// Summary is the listing projection of an Experiment.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	TestCases    int       `json:"test_cases"`
	VariantCount int       `json:"variant_count"`
}

// Summarize projects the aggregate down to its listing form.
func (e *Experiment) Summarize() Summary {
	return Summary{
		ID:           e.ID,
		Name:         e.Name,
		CreatedAt:    e.CreatedAt,
		TestCases:    len(e.TestCases),
		VariantCount: len(e.Variants),
	}
}

// Populated reports whether at least one variant exists, the precondition
// for both A/B testing and optimization.
func (e *Experiment) Populated() bool {
	return len(e.Variants) > 0
}

// VariantIDs returns variant ids sorted by variant creation time, oldest
// first, so iteration order is stable across runs.
func (e *Experiment) VariantIDs() []string {
	ids := make([]string, 0, len(e.Variants))
	for id := range e.Variants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := e.Variants[ids[i]], e.Variants[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ids
}
