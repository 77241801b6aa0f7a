// Package sqlite implements the local durable store: the embedded SQLite
// tier of last resort. Every table is keyed by entity id and stores the
// entity as a JSON body next to the indexed columns used for scans.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// TierName is the name the local store reports to the orchestrator.
const TierName = "local"

var _ types.Tier = (*Store)(nil)

// Store implements types.Tier on an embedded SQLite database.
// Writes take the exclusive lock; reads share it.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.StoreConfig
	db       *sql.DB
}

// NewStore creates a detached store. Call Attach before use.
func NewStore() *Store {
	return &Store{}
}

// Open creates a store and attaches it in one step.
func Open(config types.StoreConfig) (*Store, error) {
	s := NewStore()
	if err := s.Attach(config); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach opens (or creates) the database in DataDir and applies pending
// schema migrations. Existing data is kept.
// Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(config types.StoreConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(filepath.Join(config.DataDir, config.FileName())))
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("opening local store: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.config = config
	s.attached = true
	return nil
}

// Detach closes the database. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	s.attached = false
	err := s.db.Close()
	s.db = nil
	return err
}

// Name implements types.Tier.
func (s *Store) Name() string { return TierName }

// Available implements types.Tier. The local store is available whenever it
// is attached.
func (s *Store) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

// DataDir returns the directory the store was attached with.
func (s *Store) DataDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.DataDir
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// read runs fn under the shared lock with an attached database.
func (s *Store) read(fn func(db *sql.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return types.ErrStoreDetached
	}
	return fn(s.db)
}

// write runs fn in a transaction under the exclusive lock.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// newUUID generates a UUID v7 string, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
