package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

var recordTables = []string{types.TableRecords, types.TableSummaries}

// ListRecords returns the records of module in id order, scoped to one
// dataset when datasetID is set. Uses the module or file_id index.
func (s *Store) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	query := "SELECT body FROM " + types.RecordTable(module) + " WHERE module = ?"
	args := []any{module}
	if datasetID != "" {
		query += " AND file_id = ?"
		args = append(args, datasetID)
	}
	query += " ORDER BY id"

	var out []*types.Record
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// GetRecord looks the id up in every record table.
func (s *Store) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	var rec *types.Record
	err := s.read(func(db *sql.DB) error {
		for _, table := range recordTables {
			row := db.QueryRowContext(ctx, "SELECT body FROM "+table+" WHERE id = ?", id)
			r, err := scanRecord(row)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			rec = r
			return nil
		}
		return types.ErrNotFound
	})
	return rec, err
}

// PutRecords upserts recs in one transaction. Every record must belong to
// module.
func (s *Store) PutRecords(ctx context.Context, module string, recs []*types.Record) error {
	if err := types.ValidateModule(module); err != nil {
		return err
	}
	table := types.RecordTable(module)
	stmtSQL := "INSERT INTO " + table + ` (id, file_id, module, body) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET file_id = excluded.file_id, module = excluded.module, body = excluded.body`

	return s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, stmtSQL)
		if err != nil {
			return fmt.Errorf("preparing record upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range recs {
			if err := r.Validate(); err != nil {
				return err
			}
			if r.Module != module {
				return fmt.Errorf("%w: record %s belongs to %s, not %s", types.ErrInvalidData, r.ID, r.Module, module)
			}
			body, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.FileID, r.Module, string(body)); err != nil {
				return fmt.Errorf("writing record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// DeleteRecords removes the given ids. Missing ids are ignored.
func (s *Store) DeleteRecords(ctx context.Context, ids []string) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		for _, table := range recordTables {
			stmt, err := tx.PrepareContext(ctx, "DELETE FROM "+table+" WHERE id = ?")
			if err != nil {
				return fmt.Errorf("preparing record delete: %w", err)
			}
			for _, id := range ids {
				if _, err := stmt.ExecContext(ctx, id); err != nil {
					stmt.Close()
					return fmt.Errorf("deleting record %s: %w", id, err)
				}
			}
			stmt.Close()
		}
		return nil
	})
}

// ClearModified resets the review flags of every record of module with a
// single UPDATE. Rows already clear are not touched, so a second call
// reports zero.
func (s *Store) ClearModified(ctx context.Context, module string) (int, error) {
	table := types.RecordTable(module)
	var n int64
	err := s.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE "+table+`
SET body = json_set(body, '$.isModified', json('false'), '$.isHighlighted', json('false'))
WHERE module = ? AND (json_extract(body, '$.isModified') = 1 OR json_extract(body, '$.isHighlighted') = 1)`, module)
		if err != nil {
			return fmt.Errorf("clearing modified flags: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.Record, error) {
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	var r types.Record
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &r, nil
}
