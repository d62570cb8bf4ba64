package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/experiment"
)

// ExportDocument wraps a full experiment aggregate with an export timestamp.
type ExportDocument struct {
	ExportedAt time.Time              `json:"exported_at"`
	Experiment *experiment.Experiment `json:"experiment"`
}

// Export serializes the complete experiment state as indented JSON.
func (r *Reporter) Export(ctx context.Context, experimentID string) ([]byte, error) {
	exp, err := r.store.Load(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	doc := ExportDocument{
		ExportedAt: time.Now().UTC(),
		Experiment: exp,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to encode export document")
	}
	return data, nil
}

// ParseExport round-trips an exported document back into an experiment
// aggregate equivalent to the original, modulo the export timestamp.
func ParseExport(data []byte) (*ExportDocument, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.InvalidDocument, "export document is not valid JSON")
	}
	if doc.Experiment == nil {
		return nil, errors.New(errors.InvalidDocument, "export document has no experiment")
	}
	if doc.Experiment.ID == "" {
		return nil, errors.New(errors.InvalidDocument, "exported experiment has no id")
	}
	if err := validator.New().Struct(doc.Experiment); err != nil {
		return nil, errors.Wrap(err, errors.InvalidDocument, "exported experiment failed schema validation")
	}
	if doc.Experiment.Variants == nil {
		doc.Experiment.Variants = make(map[string]*experiment.Variant)
	}
	return &doc, nil
}
