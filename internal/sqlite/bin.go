package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// ListBin returns every bin entry, newest first.
func (s *Store) ListBin(ctx context.Context) ([]*types.RecycleBinEntry, error) {
	var out []*types.RecycleBinEntry
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT body FROM recycle_bin")
		if err != nil {
			return fmt.Errorf("listing recycle bin: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanBinEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	types.SortBinEntries(out)
	return out, err
}

// GetBinEntry returns ErrNotFound when id does not exist.
func (s *Store) GetBinEntry(ctx context.Context, id string) (*types.RecycleBinEntry, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var e *types.RecycleBinEntry
	err := s.read(func(db *sql.DB) error {
		var err error
		e, err = scanBinEntry(db.QueryRowContext(ctx, "SELECT body FROM recycle_bin WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		return err
	})
	return e, err
}

// PutBinEntry stores e. An empty id is replaced with a new UUID v7.
func (s *Store) PutBinEntry(ctx context.Context, e *types.RecycleBinEntry) error {
	if e.ID == "" {
		e.ID = newUUID()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding bin entry %s: %w", e.ID, err)
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO recycle_bin (id, entity_type, entity_id, source_module, parent_id, deleted_at, body)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET entity_type = excluded.entity_type, entity_id = excluded.entity_id,
source_module = excluded.source_module, parent_id = excluded.parent_id, deleted_at = excluded.deleted_at, body = excluded.body`,
			e.ID, string(e.EntityType), e.EntityID, e.SourceModule, e.ParentID, e.DeletedAt.UTC().Format(time.RFC3339Nano), string(body))
		if err != nil {
			return fmt.Errorf("writing bin entry %s: %w", e.ID, err)
		}
		return nil
	})
}

// DeleteBinEntry removes one entry. Missing ids are ignored.
func (s *Store) DeleteBinEntry(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM recycle_bin WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting bin entry %s: %w", id, err)
		}
		return nil
	})
}

// EmptyBin removes every entry and returns how many were removed.
func (s *Store) EmptyBin(ctx context.Context) (int, error) {
	var n int64
	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM recycle_bin")
		if err != nil {
			return fmt.Errorf("emptying recycle bin: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func scanBinEntry(row scanner) (*types.RecycleBinEntry, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning bin entry: %w", err)
	}
	var e types.RecycleBinEntry
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, fmt.Errorf("decoding bin entry: %w", err)
	}
	return &e, nil
}
