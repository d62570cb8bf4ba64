// Package report renders per-variant aggregate metrics and serializes full
// experiment state for export.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/XiaoConstantine/promptlab/pkg/experiment"
)

// Reporter reads experiment aggregates and produces summaries.
type Reporter struct {
	store *experiment.Store
}

// NewReporter creates a reporter over an experiment store.
func NewReporter(store *experiment.Store) *Reporter {
	return &Reporter{store: store}
}

// Metrics returns the per-variant aggregate metrics for an experiment.
func (r *Reporter) Metrics(ctx context.Context, experimentID string) (map[string]*experiment.AggregateMetrics, error) {
	exp, err := r.store.Load(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]*experiment.AggregateMetrics, len(exp.Metrics))
	for id, m := range exp.Metrics {
		metrics[id] = m
	}
	return metrics, nil
}

// Render formats the experiment's metrics as a plain-text table, variants
// sorted by ascending average latency.
func (r *Reporter) Render(exp *experiment.Experiment) string {
	type row struct {
		variant *experiment.Variant
		metrics *experiment.AggregateMetrics
	}

	rows := make([]row, 0, len(exp.Metrics))
	for _, id := range exp.VariantIDs() {
		if m, ok := exp.Metrics[id]; ok {
			rows = append(rows, row{variant: exp.Variants[id], metrics: m})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].metrics.AvgLatency < rows[j].metrics.AvgLatency
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s (%s)\n", exp.Name, exp.ID)
	if len(rows) == 0 {
		b.WriteString("no metrics recorded\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-24s %12s %12s %10s %8s\n", "VARIANT", "AVG LATENCY", "AVG TOKENS", "SUCCESS", "TESTS")
	for i, row := range rows {
		name := row.variant.Name
		if name == "" {
			name = row.variant.ID
		}
		if i == 0 {
			name += " *"
		}
		fmt.Fprintf(&b, "%-24s %12s %12.1f %9.0f%% %8d\n",
			name,
			row.metrics.AvgLatency,
			row.metrics.AvgTokens,
			row.metrics.SuccessRate*100,
			row.metrics.TotalTests,
		)
	}
	b.WriteString("* best performer (lowest average latency)\n")

	return b.String()
}
