package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Detach() })
	return s
}

func TestStoreConformance(t *testing.T) {
	tiertest.Run(t, func(t *testing.T) types.Tier { return openTestStore(t) })
}

func TestStoreAttach(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	assert.False(t, s.Available())

	require.NoError(t, s.Attach(types.StoreConfig{DataDir: dir}))
	assert.True(t, s.Available())
	assert.Equal(t, TierName, s.Name())
	assert.Equal(t, dir, s.DataDir())

	_, err := os.Stat(filepath.Join(dir, types.DefaultDBName))
	assert.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, s.Attach(types.StoreConfig{DataDir: dir}), types.ErrAlreadyAttached)

	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach(), "detach is idempotent")
	assert.False(t, s.Available())

	_, err = s.ListRecords(context.Background(), types.ModuleAdangal, "")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestStoreAttachInvalidConfig(t *testing.T) {
	_, err := Open(types.StoreConfig{})
	assert.ErrorIs(t, err, types.ErrDataDirEmpty)
}

func TestStoreMigrations(t *testing.T) {
	s := openTestStore(t)
	var version int
	err := s.read(func(db *sql.DB) error {
		var err error
		version, err = schemaVersion(db)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestStoreDataSurvivesReattach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(types.StoreConfig{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.PutRecords(ctx, types.ModuleChitta, []*types.Record{
		tiertest.Record("chitta_row_1_000001", types.ModuleChitta, "c1", "Patta", "7"),
	}))
	require.NoError(t, s.Detach())

	s, err = Open(types.StoreConfig{DataDir: dir})
	require.NoError(t, err)
	defer s.Detach()
	got, err := s.GetRecord(ctx, "chitta_row_1_000001")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Columns.Value("Patta"))
}

func TestStoreExportImport(t *testing.T) {
	ctx := context.Background()
	src := openTestStore(t)
	require.NoError(t, src.PutDataset(ctx, tiertest.Dataset("adangal_file_1", types.ModuleAdangal, "Owner", "Area")))
	require.NoError(t, src.PutRecords(ctx, types.ModuleAdangal, []*types.Record{
		tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "adangal_file_1", "Owner", "Ravi", "Area", "2"),
		tiertest.Record("adangal_row_1_000002", types.ModuleAdangal, "adangal_file_1", "Owner", "Mala", "Area", "3"),
	}))
	require.NoError(t, src.PutRecords(ctx, types.ModuleLandSummary, []*types.Record{
		tiertest.Record("land_register_summary_row_1_000001", types.ModuleLandSummary, "s1", "Dry", "4"),
	}))
	require.NoError(t, src.PutAux(ctx, &types.AuxEntity{ID: "att-1", Kind: types.AuxAttendance, UserID: "u1", Date: "2026-03-14"}))

	dir := filepath.Join(t.TempDir(), "snapshot")
	counts, err := src.Export(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.TableFiles])
	assert.Equal(t, 2, counts[types.TableRecords])
	assert.Equal(t, 1, counts[types.TableSummaries])
	assert.Equal(t, 1, counts[types.TableAttendance])
	assert.Equal(t, 0, counts[types.TableRecycleBin])
	for _, table := range types.StandardTableNames {
		assert.FileExists(t, filepath.Join(dir, SnapshotFile(table)))
	}

	// A malformed line is skipped on import.
	f, err := os.OpenFile(filepath.Join(dir, SnapshotFile(types.TableRecords)), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	dst := openTestStore(t)
	counts, err = dst.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.TableRecords])

	got, err := dst.GetRecord(ctx, "adangal_row_1_000002")
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "Area"}, got.Columns.Keys())
	summary, err := dst.ListRecords(ctx, types.ModuleLandSummary, "")
	require.NoError(t, err)
	assert.Len(t, summary, 1)
	att, err := dst.GetAux(ctx, types.AuxAttendance, "att-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", att.UserID)
}

func TestImportMissingDirectory(t *testing.T) {
	s := openTestStore(t)
	counts, err := s.Import(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, counts)
}
