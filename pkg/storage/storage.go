// Package storage provides the key-value persistence boundary used by the
// experiment store. Records are keyed per experiment and carry a version
// stamp so concurrent savers fail fast instead of silently overwriting each
// other.
package storage

import (
	"context"
)

// VersionNew is passed as the expected version when inserting a record that
// must not already exist.
const VersionNew int64 = 0

// Store is a namespaced key-value store with optimistic concurrency.
type Store interface {
	// Get returns the value and current version for a key. The boolean
	// reports whether the key exists.
	Get(ctx context.Context, namespace, key string) ([]byte, int64, bool, error)

	// Put writes a value conditionally. expectedVersion must match the
	// stored version (or be VersionNew for an insert); on mismatch the
	// write is rejected with a VersionConflict error. Returns the new
	// version stamp.
	Put(ctx context.Context, namespace, key string, value []byte, expectedVersion int64) (int64, error)

	// List returns every value in a namespace, keyed by record key.
	List(ctx context.Context, namespace string) (map[string][]byte, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	Close() error
}
