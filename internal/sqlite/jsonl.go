package sqlite

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Snapshot is a directory of JSONL files, one per local table, each line the
// JSON body of one entity. It is the portable form of the local store.

// SnapshotFile returns the file name holding table in a snapshot directory.
func SnapshotFile(table string) string {
	return table + ".jsonl"
}

// Export writes every table to dir as JSONL, one file per table, and returns
// the number of entities written per table. Files are replaced atomically.
func (s *Store) Export(ctx context.Context, dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	counts := make(map[string]int, len(types.StandardTableNames))
	for _, table := range types.StandardTableNames {
		var lines []json.RawMessage
		err := s.read(func(db *sql.DB) error {
			rows, err := db.QueryContext(ctx, "SELECT body FROM "+table+" ORDER BY id")
			if err != nil {
				return fmt.Errorf("exporting %s: %w", table, err)
			}
			defer rows.Close()
			for rows.Next() {
				var body string
				if err := rows.Scan(&body); err != nil {
					return fmt.Errorf("exporting %s: %w", table, err)
				}
				lines = append(lines, json.RawMessage(body))
			}
			return rows.Err()
		})
		if err != nil {
			return counts, err
		}
		if err := writeJSONL(filepath.Join(dir, SnapshotFile(table)), lines); err != nil {
			return counts, err
		}
		counts[table] = len(lines)
	}
	return counts, nil
}

// Import upserts every entity found in the snapshot files under dir and
// returns the number imported per table. Missing files are skipped, as are
// malformed lines.
func (s *Store) Import(ctx context.Context, dir string) (map[string]int, error) {
	counts := make(map[string]int, len(types.StandardTableNames))
	for _, table := range types.StandardTableNames {
		lines, err := readJSONL(filepath.Join(dir, SnapshotFile(table)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return counts, err
		}
		n, err := s.importTable(ctx, table, lines)
		counts[table] = n
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}

func (s *Store) importTable(ctx context.Context, table string, lines []json.RawMessage) (int, error) {
	switch table {
	case types.TableFiles:
		n := 0
		for _, line := range lines {
			var d types.Dataset
			if err := json.Unmarshal(line, &d); err != nil {
				continue
			}
			if err := s.PutDataset(ctx, &d); err != nil {
				return n, err
			}
			n++
		}
		return n, nil

	case types.TableRecords, types.TableSummaries:
		byModule := make(map[string][]*types.Record)
		var modules []string
		for _, line := range lines {
			var r types.Record
			if err := json.Unmarshal(line, &r); err != nil {
				continue
			}
			if _, ok := byModule[r.Module]; !ok {
				modules = append(modules, r.Module)
			}
			byModule[r.Module] = append(byModule[r.Module], &r)
		}
		n := 0
		for _, m := range modules {
			if err := s.PutRecords(ctx, m, byModule[m]); err != nil {
				return n, err
			}
			n += len(byModule[m])
		}
		return n, nil

	case types.TableRecycleBin:
		n := 0
		for _, line := range lines {
			var e types.RecycleBinEntry
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			if err := s.PutBinEntry(ctx, &e); err != nil {
				return n, err
			}
			n++
		}
		return n, nil

	default:
		n := 0
		for _, line := range lines {
			var e types.AuxEntity
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			if e.Kind == "" {
				e.Kind = types.AuxKind(table)
			}
			if err := s.PutAux(ctx, &e); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line.
// Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		lines = append(lines, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, nil
}

// writeJSONL writes lines to path via a synced temp file and a rename, so
// readers see either the old file or the new one.
func writeJSONL(path string, lines []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fail(fmt.Errorf("writing line: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
