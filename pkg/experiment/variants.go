package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
)

// AddVariant appends a new prompt variant to an experiment and persists it.
// Variant ids are unique within the experiment and never reused.
func (s *Store) AddVariant(ctx context.Context, experimentID, name, prompt string) (*Variant, error) {
	if prompt == "" {
		return nil, errors.New(errors.ValidationFailed, "variant prompt is required")
	}

	exp, err := s.Load(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	variant := &Variant{
		ID:        uuid.New().String(),
		Name:      name,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
	}
	exp.Variants[variant.ID] = variant

	if err := s.Save(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "added variant %s (%q) to experiment %s", variant.ID, variant.Name, experimentID)
	return variant, nil
}
