package experiment

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
	"github.com/XiaoConstantine/promptlab/pkg/storage"
)

// Namespace under which experiment documents are stored, one record per
// experiment id.
const Namespace = "experiments"

// Store is the only component that owns Experiment persistence. Everything
// else mutates a loaded copy and saves it back explicitly.
type Store struct {
	backend  storage.Store
	validate *validator.Validate
	logger   *logging.Logger
}

// NewStore creates an experiment store on top of a key-value backend.
func NewStore(backend storage.Store) *Store {
	return &Store{
		backend:  backend,
		validate: validator.New(),
		logger:   logging.GetLogger(),
	}
}

// Create persists a new experiment with its fixed test cases.
func (s *Store) Create(ctx context.Context, name string, testCases []string) (*Experiment, error) {
	if name == "" {
		return nil, errors.New(errors.ValidationFailed, "experiment name is required")
	}
	if len(testCases) == 0 {
		return nil, errors.New(errors.ValidationFailed, "at least one test case is required")
	}
	for _, tc := range testCases {
		if tc == "" {
			return nil, errors.New(errors.ValidationFailed, "test cases must be non-empty")
		}
	}

	exp := &Experiment{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		TestCases: append([]string(nil), testCases...),
		Variants:  make(map[string]*Variant),
	}

	doc, err := json.Marshal(exp)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to encode experiment")
	}

	version, err := s.backend.Put(ctx, Namespace, exp.ID, doc, storage.VersionNew)
	if err != nil {
		return nil, err
	}
	exp.Version = version

	s.logger.Info(ctx, "created experiment %s (%q) with %d test cases", exp.ID, exp.Name, len(exp.TestCases))
	return exp, nil
}

// Load reads and validates one experiment document.
func (s *Store) Load(ctx context.Context, id string) (*Experiment, error) {
	if id == "" {
		return nil, errors.New(errors.ValidationFailed, "experiment id is required")
	}

	doc, version, found, err := s.backend.Get(ctx, Namespace, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "experiment not found"),
			errors.Fields{"experiment_id": id})
	}

	exp, err := s.decode(doc)
	if err != nil {
		return nil, err
	}
	exp.Version = version

	return exp, nil
}

// Save writes the aggregate back conditionally on the version it was loaded
// with, so two concurrent savers cannot silently overwrite each other.
func (s *Store) Save(ctx context.Context, exp *Experiment) error {
	if exp == nil || exp.ID == "" {
		return errors.New(errors.ValidationFailed, "experiment id is required")
	}

	doc, err := json.Marshal(exp)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to encode experiment")
	}

	version, err := s.backend.Put(ctx, Namespace, exp.ID, doc, exp.Version)
	if err != nil {
		return err
	}
	exp.Version = version

	return nil
}

// List returns summaries of every stored experiment, oldest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	docs, err := s.backend.List(ctx, Namespace)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(docs))
	for _, doc := range docs {
		exp, err := s.decode(doc)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, exp.Summarize())
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})

	return summaries, nil
}

// decode parses and validates a stored document, failing fast on schema
// mismatch instead of returning defaults.
func (s *Store) decode(doc []byte) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(doc, &exp); err != nil {
		return nil, errors.Wrap(err, errors.InvalidDocument, "stored experiment is not valid JSON")
	}
	if err := s.validate.Struct(&exp); err != nil {
		return nil, errors.Wrap(err, errors.InvalidDocument, "stored experiment failed schema validation")
	}
	if exp.Variants == nil {
		exp.Variants = make(map[string]*Variant)
	}
	return &exp, nil
}
