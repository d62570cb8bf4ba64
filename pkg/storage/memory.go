package storage

import (
	"context"
	"sync"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
)

type memoryRecord struct {
	value   []byte
	version int64
}

// MemoryStore is an in-memory Store implementation, primarily for tests and
// ephemeral runs. It honors the same optimistic-versioning contract as the
// SQLite store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]memoryRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]memoryRecord),
	}
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[namespace][key]
	if !ok {
		return nil, 0, false, nil
	}

	value := make([]byte, len(rec.value))
	copy(value, rec.value)
	return value, rec.version, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, namespace, key string, value []byte, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.records[namespace]
	if !ok {
		ns = make(map[string]memoryRecord)
		s.records[namespace] = ns
	}

	rec, exists := ns[key]
	if expectedVersion == VersionNew {
		if exists {
			return 0, errors.WithFields(
				errors.New(errors.VersionConflict, "record already exists"),
				errors.Fields{"namespace": namespace, "key": key})
		}
	} else if !exists || rec.version != expectedVersion {
		return 0, errors.WithFields(
			errors.New(errors.VersionConflict, "stored version does not match expected version"),
			errors.Fields{"namespace": namespace, "key": key, "expected": expectedVersion})
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	ns[key] = memoryRecord{value: stored, version: expectedVersion + 1}

	return expectedVersion + 1, nil
}

func (s *MemoryStore) List(ctx context.Context, namespace string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string][]byte, len(s.records[namespace]))
	for key, rec := range s.records[namespace] {
		value := make([]byte, len(rec.value))
		copy(value, rec.value)
		values[key] = value
	}
	return values, nil
}

func (s *MemoryStore) Delete(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[namespace], key)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
