package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// ListDatasets returns the datasets of module ordered by id.
func (s *Store) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	var out []*types.Dataset
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT body FROM files WHERE module = ? ORDER BY id", module)
		if err != nil {
			return fmt.Errorf("listing datasets: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDataset(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

// GetDataset returns ErrNotFound when id does not exist.
func (s *Store) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var d *types.Dataset
	err := s.read(func(db *sql.DB) error {
		var err error
		d, err = scanDataset(db.QueryRowContext(ctx, "SELECT body FROM files WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		return err
	})
	return d, err
}

// PutDataset upserts d.
func (s *Store) PutDataset(ctx context.Context, d *types.Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding dataset %s: %w", d.ID, err)
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO files (id, module, body) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET module = excluded.module, body = excluded.body`, d.ID, d.Module, string(body))
		if err != nil {
			return fmt.Errorf("writing dataset %s: %w", d.ID, err)
		}
		return nil
	})
}

// DeleteDataset removes the dataset row only; records are the caller's
// concern. Missing ids are ignored.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting dataset %s: %w", id, err)
		}
		return nil
	})
}

func scanDataset(row scanner) (*types.Dataset, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning dataset: %w", err)
	}
	var d types.Dataset
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return &d, nil
}
