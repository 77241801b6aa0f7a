// Package tiertest holds the conformance tests every writable tier must
// pass. Tier packages call Run from their own tests with a constructor for a
// fresh, empty tier.
package tiertest

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Base is the reference time used by fixtures.
var Base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// Run executes the conformance suite. open must return an empty, available
// tier; cleanup is the caller's job (t.Cleanup).
func Run(t *testing.T, open func(t *testing.T) types.Tier) {
	t.Run("Datasets", func(t *testing.T) { testDatasets(t, open(t)) })
	t.Run("Records", func(t *testing.T) { testRecords(t, open(t)) })
	t.Run("RecordsUpsert", func(t *testing.T) { testRecordsUpsert(t, open(t)) })
	t.Run("RecordsModuleMismatch", func(t *testing.T) { testRecordsModuleMismatch(t, open(t)) })
	t.Run("SummaryRecords", func(t *testing.T) { testSummaryRecords(t, open(t)) })
	t.Run("ClearModified", func(t *testing.T) { testClearModified(t, open(t)) })
	t.Run("Aux", func(t *testing.T) { testAux(t, open(t)) })
	t.Run("Attendance", func(t *testing.T) { testAttendance(t, open(t)) })
	t.Run("RecycleBin", func(t *testing.T) { testRecycleBin(t, open(t)) })
}

// Dataset builds a dataset fixture.
func Dataset(id, module string, columns ...string) *types.Dataset {
	return &types.Dataset{
		ID:         id,
		FileName:   id + ".xlsx",
		Module:     module,
		UploadDate: Base,
		UploadedBy: "clerk",
		RowCount:   2,
		Columns:    columns,
		Metadata: types.DatasetMetadata{
			HeaderRow:   1,
			MergedCells: []types.MergeRange{{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 0}},
		},
	}
}

// Record builds an imported record fixture with the given column pairs.
func Record(id, module, fileID string, pairs ...string) *types.Record {
	return types.NewImportedRecord(id, module, fileID, types.NewColumns(pairs...), "clerk", Base)
}

func sortRecords(recs []*types.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

func recordIDs(recs []*types.Record) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

func testDatasets(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	require.True(t, tier.Available())

	require.NoError(t, tier.PutDataset(ctx, Dataset("adangal_file_1", types.ModuleAdangal, "Survey No", "Owner")))
	require.NoError(t, tier.PutDataset(ctx, Dataset("adangal_file_2", types.ModuleAdangal, "Survey No")))
	require.NoError(t, tier.PutDataset(ctx, Dataset("chitta_file_1", types.ModuleChitta, "Patta")))

	got, err := tier.GetDataset(ctx, "adangal_file_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Survey No", "Owner"}, got.Columns)
	assert.Equal(t, "adangal_file_1.xlsx", got.FileName)
	assert.Equal(t, 1, got.Metadata.HeaderRow)
	assert.Len(t, got.Metadata.MergedCells, 1)
	assert.True(t, got.UploadDate.Equal(Base))

	list, err := tier.ListDatasets(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = tier.GetDataset(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, tier.DeleteDataset(ctx, "adangal_file_2"))
	require.NoError(t, tier.DeleteDataset(ctx, "adangal_file_2"))
	list, err = tier.ListDatasets(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "adangal_file_1", list[0].ID)
}

func testRecords(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	recs := []*types.Record{
		Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Survey No", "12", "Owner", "Ravi", "Area", "1.5"),
		Record("adangal_row_1_000002", types.ModuleAdangal, "f1", "Survey No", "13", "Owner", "Mala", "Area", "2"),
		Record("adangal_row_2_000001", types.ModuleAdangal, "f2", "Survey No", "99"),
	}
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, recs))
	require.NoError(t, tier.PutRecords(ctx, types.ModuleChitta, []*types.Record{
		Record("chitta_row_1_000001", types.ModuleChitta, "c1", "Patta", "7"),
	}))

	all, err := tier.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"adangal_row_1_000001", "adangal_row_1_000002", "adangal_row_2_000001"}, recordIDs(all))

	scoped, err := tier.ListRecords(ctx, types.ModuleAdangal, "f1")
	require.NoError(t, err)
	assert.Equal(t, []string{"adangal_row_1_000001", "adangal_row_1_000002"}, recordIDs(scoped))

	got, err := tier.GetRecord(ctx, "adangal_row_1_000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"Survey No", "Owner", "Area"}, got.Columns.Keys())
	assert.Equal(t, "Ravi", got.Columns.Value("Owner"))
	assert.True(t, got.IsNew)
	assert.False(t, got.IsModified)
	assert.True(t, got.CreatedDate.Equal(Base))
	assert.Nil(t, got.UpdatedDate)

	_, err = tier.GetRecord(ctx, "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, tier.DeleteRecords(ctx, []string{"adangal_row_1_000002", "nope"}))
	all, err = tier.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"adangal_row_1_000001", "adangal_row_2_000001"}, recordIDs(all))

	chitta, err := tier.ListRecords(ctx, types.ModuleChitta, "")
	require.NoError(t, err)
	assert.Len(t, chitta, 1)
}

func testRecordsUpsert(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	r := Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi")
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{r}))

	edited := r.Clone()
	edited.ApplyEdit(types.NewColumns("Owner", "Kumar", "Remarks", "checked"), "vao", Base.Add(time.Hour))
	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{edited}))

	got, err := tier.GetRecord(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kumar", got.Columns.Value("Owner"))
	assert.Equal(t, []string{"Owner", "Remarks"}, got.Columns.Keys())
	assert.True(t, got.IsUpdated)
	assert.True(t, got.IsModified)
	assert.True(t, got.IsHighlighted)
	assert.Equal(t, "vao", got.UpdatedBy)
	require.NotNil(t, got.UpdatedDate)
	assert.True(t, got.UpdatedDate.Equal(Base.Add(time.Hour)))

	all, err := tier.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testRecordsModuleMismatch(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	err := tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{
		Record("chitta_row_1_000001", types.ModuleChitta, "c1"),
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	err = tier.PutRecords(ctx, "Bad Module", nil)
	assert.ErrorIs(t, err, types.ErrInvalidModule)
}

func testSummaryRecords(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	require.NoError(t, tier.PutRecords(ctx, types.ModuleLandSummary, []*types.Record{
		Record("land_register_summary_row_1_000001", types.ModuleLandSummary, "s1", "Village", "Melur", "Dry", "10"),
	}))

	got, err := tier.ListRecords(ctx, types.ModuleLandSummary, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10", got[0].Columns.Value("Dry"))

	r, err := tier.GetRecord(ctx, "land_register_summary_row_1_000001")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleLandSummary, r.Module)

	other, err := tier.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testClearModified(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	plain := Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "a", "1")
	manual := types.NewManualRecord("adangal_row_1_000002", types.ModuleAdangal, "f1", types.NewColumns("a", "2"), "clerk", Base)
	edited := Record("adangal_row_1_000003", types.ModuleAdangal, "f1", "a", "3")
	edited.ApplyEdit(types.NewColumns("a", "33"), "vao", Base)
	other := types.NewManualRecord("chitta_row_1_000001", types.ModuleChitta, "c1", types.NewColumns("b", "1"), "clerk", Base)

	require.NoError(t, tier.PutRecords(ctx, types.ModuleAdangal, []*types.Record{plain, manual, edited}))
	require.NoError(t, tier.PutRecords(ctx, types.ModuleChitta, []*types.Record{other}))

	n, err := tier.ClearModified(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = tier.ClearModified(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := tier.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	sortRecords(all)
	require.Len(t, all, 3)
	for _, r := range all {
		assert.False(t, r.IsModified, r.ID)
		assert.False(t, r.IsHighlighted, r.ID)
		assert.True(t, r.IsNew, r.ID)
	}
	assert.True(t, all[2].IsUpdated)
	assert.Equal(t, "33", all[2].Columns.Value("a"))

	untouched, err := tier.GetRecord(ctx, "chitta_row_1_000001")
	require.NoError(t, err)
	assert.True(t, untouched.IsModified)
}

func testAux(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	sketch := &types.AuxEntity{
		Kind:      types.AuxFMB,
		Module:    types.ModuleFMB,
		FileName:  "sketch-12.pdf",
		CreatedAt: Base,
		Body:      json.RawMessage(`{"surveyNo":"12"}`),
	}
	require.NoError(t, tier.PutAux(ctx, sketch))
	require.NotEmpty(t, sketch.ID)

	overlay := &types.AuxEntity{ID: "kml-1", Kind: types.AuxKML, Module: "village_map", CreatedAt: Base}
	require.NoError(t, tier.PutAux(ctx, overlay))

	got, err := tier.GetAux(ctx, types.AuxFMB, sketch.ID)
	require.NoError(t, err)
	assert.Equal(t, "sketch-12.pdf", got.FileName)
	assert.JSONEq(t, `{"surveyNo":"12"}`, string(got.Body))

	fmbs, err := tier.ListAux(ctx, types.AuxFMB, types.AuxFilter{})
	require.NoError(t, err)
	assert.Len(t, fmbs, 1)

	kmls, err := tier.ListAux(ctx, types.AuxKML, types.AuxFilter{Module: "other"})
	require.NoError(t, err)
	assert.Empty(t, kmls)

	_, err = tier.GetAux(ctx, types.AuxKML, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = tier.ListAux(ctx, types.AuxKind("photos"), types.AuxFilter{})
	assert.ErrorIs(t, err, types.ErrInvalidKind)

	require.NoError(t, tier.DeleteAux(ctx, types.AuxKML, "kml-1"))
	_, err = tier.GetAux(ctx, types.AuxKML, "kml-1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func testAttendance(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	entries := []*types.AuxEntity{
		{ID: "att-1", Kind: types.AuxAttendance, UserID: "u1", Date: "2026-03-14", CreatedAt: Base},
		{ID: "att-2", Kind: types.AuxAttendance, UserID: "u1", Date: "2026-03-15", CreatedAt: Base},
		{ID: "att-3", Kind: types.AuxAttendance, UserID: "u2", Date: "2026-03-14", CreatedAt: Base},
	}
	for _, e := range entries {
		require.NoError(t, tier.PutAux(ctx, e))
	}

	byUser, err := tier.ListAux(ctx, types.AuxAttendance, types.AuxFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byDate, err := tier.ListAux(ctx, types.AuxAttendance, types.AuxFilter{Date: "2026-03-14"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	both, err := tier.ListAux(ctx, types.AuxAttendance, types.AuxFilter{UserID: "u2", Date: "2026-03-14"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "att-3", both[0].ID)
}

func testRecycleBin(t *testing.T, tier types.Tier) {
	ctx := context.Background()
	rec := Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "a", "1")
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	older := &types.RecycleBinEntry{
		EntityType:   types.EntityRecord,
		EntityID:     rec.ID,
		SourceModule: types.ModuleAdangal,
		DeletedBy:    "clerk",
		DeletedAt:    Base,
		OriginalData: data,
	}
	newer := &types.RecycleBinEntry{
		ID:           "bin-2",
		EntityType:   types.EntityDataset,
		EntityID:     "f1",
		SourceModule: types.ModuleAdangal,
		DeletedBy:    "clerk",
		DeletedAt:    Base.Add(time.Minute),
		OriginalData: json.RawMessage(`{"id":"f1","module":"adangal"}`),
	}
	require.NoError(t, tier.PutBinEntry(ctx, older))
	require.NotEmpty(t, older.ID)
	require.NoError(t, tier.PutBinEntry(ctx, newer))

	list, err := tier.ListBin(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bin-2", list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	got, err := tier.GetBinEntry(ctx, older.ID)
	require.NoError(t, err)
	snapshot, err := got.Record()
	require.NoError(t, err)
	assert.Equal(t, rec.ID, snapshot.ID)
	assert.Equal(t, []string{"a"}, snapshot.Columns.Keys())

	require.NoError(t, tier.DeleteBinEntry(ctx, "bin-2"))
	_, err = tier.GetBinEntry(ctx, "bin-2")
	assert.ErrorIs(t, err, types.ErrNotFound)

	n, err := tier.EmptyBin(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err = tier.ListBin(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
