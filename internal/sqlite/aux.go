package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// auxTable maps a kind to its table. The kinds double as table names.
func auxTable(kind types.AuxKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	return string(kind), nil
}

// ListAux returns the entities of kind matching filter, ordered by id.
// Attendance scans use the user_id and date indexes; the map-overlay tables
// filter on module.
func (s *Store) ListAux(ctx context.Context, kind types.AuxKind, filter types.AuxFilter) ([]*types.AuxEntity, error) {
	table, err := auxTable(kind)
	if err != nil {
		return nil, err
	}
	var where []string
	var args []any
	if filter.Module != "" {
		where = append(where, "module = ?")
		args = append(args, filter.Module)
	}
	if kind == types.AuxAttendance {
		if filter.UserID != "" {
			where = append(where, "user_id = ?")
			args = append(args, filter.UserID)
		}
		if filter.Date != "" {
			where = append(where, "date = ?")
			args = append(args, filter.Date)
		}
	}
	query := "SELECT body FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	var out []*types.AuxEntity
	err = s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("listing %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanAux(rows)
			if err != nil {
				return err
			}
			// Non-indexed filter fields are checked here.
			if filter.Match(e) {
				out = append(out, e)
			}
		}
		return rows.Err()
	})
	return out, err
}

// GetAux returns ErrNotFound when id does not exist.
func (s *Store) GetAux(ctx context.Context, kind types.AuxKind, id string) (*types.AuxEntity, error) {
	table, err := auxTable(kind)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var e *types.AuxEntity
	err = s.read(func(db *sql.DB) error {
		var err error
		e, err = scanAux(db.QueryRowContext(ctx, "SELECT body FROM "+table+" WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		return err
	})
	return e, err
}

// PutAux upserts e. An empty id is replaced with a new UUID v7.
func (s *Store) PutAux(ctx context.Context, e *types.AuxEntity) error {
	table, err := auxTable(e.Kind)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = newUUID()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", table, e.ID, err)
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		var err error
		if e.Kind == types.AuxAttendance {
			_, err = tx.ExecContext(ctx, `INSERT INTO attendance (id, user_id, date, module, body) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, date = excluded.date, module = excluded.module, body = excluded.body`,
				e.ID, e.UserID, e.Date, e.Module, string(body))
		} else {
			_, err = tx.ExecContext(ctx, "INSERT INTO "+table+` (id, module, body) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET module = excluded.module, body = excluded.body`, e.ID, e.Module, string(body))
		}
		if err != nil {
			return fmt.Errorf("writing %s %s: %w", table, e.ID, err)
		}
		return nil
	})
}

// DeleteAux removes one entity. Missing ids are ignored.
func (s *Store) DeleteAux(ctx context.Context, kind types.AuxKind, id string) error {
	table, err := auxTable(kind)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting %s %s: %w", table, id, err)
		}
		return nil
	})
}

func scanAux(row scanner) (*types.AuxEntity, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning aux entity: %w", err)
	}
	var e types.AuxEntity
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, fmt.Errorf("decoding aux entity: %w", err)
	}
	return &e, nil
}
