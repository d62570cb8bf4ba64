package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

func setupReporter(t *testing.T) (*Reporter, *experiment.Store) {
	t.Helper()
	backend := storage.NewMemoryStore()
	t.Cleanup(func() { _ = backend.Close() })
	store := experiment.NewStore(backend)
	return NewReporter(store), store
}

func seedExperiment(t *testing.T, store *experiment.Store) *experiment.Experiment {
	t.Helper()
	ctx := context.Background()

	exp, err := store.Create(ctx, "Support Bot", []string{"My order is late", "Cancel my plan"})
	require.NoError(t, err)

	fast, err := store.AddVariant(ctx, exp.ID, "Fast", "Answer briefly.")
	require.NoError(t, err)
	slow, err := store.AddVariant(ctx, exp.ID, "Slow", "Answer with full detail.")
	require.NoError(t, err)

	exp, err = store.Load(ctx, exp.ID)
	require.NoError(t, err)

	exp.Metrics = map[string]*experiment.AggregateMetrics{
		fast.ID: {AvgTokens: 40, AvgLatency: 80 * time.Millisecond, TotalTests: 2, SuccessRate: 1.0},
		slow.ID: {AvgTokens: 200, AvgLatency: 450 * time.Millisecond, TotalTests: 2, SuccessRate: 0.5},
	}
	exp.Results = map[string][]experiment.TestResult{
		fast.ID: {
			{Input: "My order is late", Response: "Sorry, checking now.", TokenCount: 40, Latency: 80 * time.Millisecond, Timestamp: time.Now().UTC()},
		},
	}
	require.NoError(t, store.Save(ctx, exp))
	return exp
}

func TestReporter_Metrics(t *testing.T) {
	ctx := context.Background()
	reporter, store := setupReporter(t)
	exp := seedExperiment(t, store)

	metrics, err := reporter.Metrics(ctx, exp.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	for id, want := range exp.Metrics {
		require.Contains(t, metrics, id)
		assert.Equal(t, want.AvgTokens, metrics[id].AvgTokens)
		assert.Equal(t, want.SuccessRate, metrics[id].SuccessRate)
	}
}

func TestReporter_MetricsNotFound(t *testing.T) {
	ctx := context.Background()
	reporter, _ := setupReporter(t)

	_, err := reporter.Metrics(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.Code(err))
}

func TestReporter_Render(t *testing.T) {
	reporter, store := setupReporter(t)
	exp := seedExperiment(t, store)

	out := reporter.Render(exp)

	assert.Contains(t, out, "Experiment: Support Bot")
	assert.Contains(t, out, "Fast *")
	assert.Contains(t, out, "best performer")
	// Lowest average latency is listed first.
	assert.Less(t, strings.Index(out, "Fast"), strings.Index(out, "Slow"))
}

func TestReporter_RenderWithoutMetrics(t *testing.T) {
	reporter, _ := setupReporter(t)

	exp := &experiment.Experiment{ID: "e", Name: "Empty", Variants: map[string]*experiment.Variant{}}
	out := reporter.Render(exp)
	assert.Contains(t, out, "no metrics recorded")
}

func TestExport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	reporter, store := setupReporter(t)
	exp := seedExperiment(t, store)

	data, err := reporter.Export(ctx, exp.ID)
	require.NoError(t, err)

	doc, err := ParseExport(data)
	require.NoError(t, err)
	assert.False(t, doc.ExportedAt.IsZero())

	got := doc.Experiment
	assert.Equal(t, exp.ID, got.ID)
	assert.Equal(t, exp.Name, got.Name)
	assert.Equal(t, exp.TestCases, got.TestCases)
	require.Len(t, got.Variants, len(exp.Variants))
	for id, v := range exp.Variants {
		require.Contains(t, got.Variants, id)
		assert.Equal(t, v.Prompt, got.Variants[id].Prompt)
	}
	for id, m := range exp.Metrics {
		require.Contains(t, got.Metrics, id)
		assert.Equal(t, m.AvgLatency, got.Metrics[id].AvgLatency)
		assert.Equal(t, m.TotalTests, got.Metrics[id].TotalTests)
	}
	require.Len(t, got.Results, len(exp.Results))
}

func TestParseExport_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{"},
		{name: "no experiment", data: `{"exported_at": "2026-01-02T15:04:05Z"}`},
		{name: "experiment without id", data: `{"experiment": {"name": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExport([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, errors.InvalidDocument, errors.Code(err))
		})
	}
}

func TestParseExport_InitializesVariants(t *testing.T) {
	doc, err := ParseExport([]byte(`{"experiment": {"id": "e", "name": "x", "test_cases": ["a"]}}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Experiment.Variants)
}
