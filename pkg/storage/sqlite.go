package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/promptlab/pkg/errors"
	"github.com/XiaoConstantine/promptlab/pkg/logging"
)

// SQLiteConfig holds settings for the SQLite-backed store.
type SQLiteConfig struct {
	Path           string `json:"path" yaml:"path"`
	MaxConnections int    `json:"max_connections" yaml:"max_connections"` // Default: 10
	EnableWAL      bool   `json:"enable_wal" yaml:"enable_wal"`           // Default: true
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:           "promptlab.db",
		MaxConnections: 10,
		EnableWAL:      true,
	}
}

// SQLiteStore implements Store using SQLite as storage.
type SQLiteStore struct {
	db     *sql.DB
	config SQLiteConfig
}

// NewSQLiteStore creates a new SQLite-backed store.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	if config.Path == "" {
		config.Path = "promptlab.db"
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to open sqlite database")
	}

	// Set connection pool settings
	if config.MaxConnections > 0 {
		db.SetMaxOpenConns(config.MaxConnections)
	} else {
		db.SetMaxOpenConns(10)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:     db,
		config: config,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to initialize schema")
	}

	// Enable WAL mode for better concurrent performance
	if config.EnableWAL {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to enable WAL mode")
		}
	}

	// Set other pragmas for performance
	logger := logging.GetLogger()
	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// Log warning but don't fail
			logger.Warn(context.Background(), "failed to set pragma %s: %v", pragma, err)
		}
	}

	return store, nil
}

func (s *SQLiteStore) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);

	CREATE INDEX IF NOT EXISTS idx_records_namespace ON records(namespace);
	`

	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, int64, bool, error) {
	query := `SELECT value, version FROM records WHERE namespace = ? AND key = ?`

	var value []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(&value, &version)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, errors.Wrap(err, errors.StorageFailed, "failed to read record")
	}

	return value, version, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value []byte, expectedVersion int64) (int64, error) {
	now := time.Now().UnixNano()

	if expectedVersion == VersionNew {
		query := `
		INSERT INTO records (namespace, key, value, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (namespace, key) DO NOTHING
		`
		result, err := s.db.ExecContext(ctx, query, namespace, key, value, now)
		if err != nil {
			return 0, errors.Wrap(err, errors.StorageFailed, "failed to insert record")
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return 0, errors.WithFields(
				errors.New(errors.VersionConflict, "record already exists"),
				errors.Fields{"namespace": namespace, "key": key})
		}
		return 1, nil
	}

	query := `
	UPDATE records SET value = ?, version = version + 1, updated_at = ?
	WHERE namespace = ? AND key = ? AND version = ?
	`
	result, err := s.db.ExecContext(ctx, query, value, now, namespace, key, expectedVersion)
	if err != nil {
		return 0, errors.Wrap(err, errors.StorageFailed, "failed to update record")
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return 0, errors.WithFields(
			errors.New(errors.VersionConflict, "stored version does not match expected version"),
			errors.Fields{"namespace": namespace, "key": key, "expected": expectedVersion})
	}

	return expectedVersion + 1, nil
}

func (s *SQLiteStore) List(ctx context.Context, namespace string) (map[string][]byte, error) {
	query := `SELECT key, value FROM records WHERE namespace = ?`
	rows, err := s.db.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to list records")
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to scan record")
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to iterate records")
	}

	return values, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	query := `DELETE FROM records WHERE namespace = ? AND key = ?`
	if _, err := s.db.ExecContext(ctx, query, namespace, key); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to delete record")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
