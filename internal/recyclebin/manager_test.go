package recyclebin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/clock"
	"github.com/mesh-intelligence/landrecords/internal/sqlite"
	"github.com/mesh-intelligence/landrecords/internal/tiertest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func newManager(t *testing.T) (*Manager, *sqlite.Store, *clock.Fake) {
	t.Helper()
	s, err := sqlite.Open(types.StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Detach() })
	clk := clock.NewFake(tiertest.Base.Add(24 * time.Hour))
	return New(s, clk, zap.NewNop()), s, clk
}

// editedRecord has every audit field set so a lossy round trip shows up.
func editedRecord(id, fileID string) *types.Record {
	r := tiertest.Record(id, types.ModuleAdangal, fileID, "Survey No", "12", "Owner", "Ravi", "Extent", "2.5 Ac")
	r.ImageURL = "https://files.example.org/fmb/12.png"
	r.ApplyEdit(types.NewColumns("Owner", "Ravi Kumar", "Remarks", "corrected"), "vao", tiertest.Base.Add(time.Hour))
	return r
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestRecordRoundTripIsVerbatim(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()
	r := editedRecord("adangal_row_1_000001", "f1")
	require.NoError(t, s.PutRecords(ctx, types.ModuleAdangal, []*types.Record{r}))
	before, err := s.GetRecord(ctx, r.ID)
	require.NoError(t, err)

	e, err := m.SoftDelete(ctx, types.EntityRecord, r.ID, "clerk")
	require.NoError(t, err)
	assert.Equal(t, types.EntityRecord, e.EntityType)
	assert.Equal(t, types.ModuleAdangal, e.SourceModule)
	assert.Equal(t, "clerk", e.DeletedBy)

	_, err = s.GetRecord(ctx, r.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	ok, err := m.Restore(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := s.GetRecord(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, mustJSON(t, before), mustJSON(t, after))

	bin, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, bin)
}

func TestRestoreMissingEntry(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()
	r := tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi")
	require.NoError(t, s.PutRecords(ctx, types.ModuleAdangal, []*types.Record{r}))
	e, err := m.DeleteRecord(ctx, r.ID, "clerk")
	require.NoError(t, err)

	ok, err := m.Restore(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Restore(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already restored")

	ok, err = m.Restore(ctx, "no-such-entry")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatasetDeleteCascades(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()
	ds := tiertest.Dataset("adangal_file_1", types.ModuleAdangal, "Survey No", "Owner")
	require.NoError(t, s.PutDataset(ctx, ds))
	recs := []*types.Record{
		editedRecord("adangal_row_1_000001", ds.ID),
		tiertest.Record("adangal_row_1_000002", types.ModuleAdangal, ds.ID, "Survey No", "13"),
	}
	other := tiertest.Record("adangal_row_2_000001", types.ModuleAdangal, "adangal_file_2", "Survey No", "99")
	require.NoError(t, s.PutRecords(ctx, types.ModuleAdangal, append(recs, other)))
	beforeDS, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	beforeRec, err := s.GetRecord(ctx, recs[0].ID)
	require.NoError(t, err)

	parent, err := m.SoftDelete(ctx, types.EntityDataset, ds.ID, "clerk")
	require.NoError(t, err)

	_, err = s.GetDataset(ctx, ds.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	left, err := s.ListRecords(ctx, types.ModuleAdangal, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].ID)

	bin, err := m.List(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	require.Len(t, bin, 3)
	children := 0
	for _, e := range bin {
		assert.Equal(t, types.ModuleAdangal, e.SourceModule)
		if e.EntityType == types.EntityRecord {
			assert.Equal(t, parent.ID, e.ParentID)
			children++
		}
	}
	assert.Equal(t, 2, children)

	ok, err := m.Restore(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	afterDS, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, mustJSON(t, beforeDS), mustJSON(t, afterDS))
	afterRec, err := s.GetRecord(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, mustJSON(t, beforeRec), mustJSON(t, afterRec))

	all, err := s.ListRecords(ctx, types.ModuleAdangal, ds.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	bin, err = m.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, bin)
}

func TestAuxRoundTrip(t *testing.T) {
	m, s, _ := newManager(t)
	ctx := context.Background()
	a := &types.AuxEntity{
		ID:        "kml-1",
		Kind:      types.AuxKML,
		Module:    types.ModuleFMB,
		FileName:  "melur.kml",
		CreatedAt: tiertest.Base,
		Body:      json.RawMessage(`{"layers":["survey","roads"]}`),
	}
	require.NoError(t, s.PutAux(ctx, a))

	e, err := m.SoftDelete(ctx, types.EntityKML, a.ID, "surveyor")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleFMB, e.SourceModule)
	_, err = s.GetAux(ctx, types.AuxKML, a.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	ok, err := m.Restore(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.GetAux(ctx, types.AuxKML, a.ID)
	require.NoError(t, err)
	assert.Equal(t, mustJSON(t, a), mustJSON(t, got))
}

func TestSoftDeleteErrors(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.SoftDelete(ctx, types.EntityRecord, "missing", "clerk")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = m.SoftDelete(ctx, types.EntityDataset, "missing", "clerk")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = m.SoftDelete(ctx, types.EntityType("users"), "u1", "clerk")
	assert.ErrorIs(t, err, types.ErrInvalidKind)
}

func TestPurgeAndEmpty(t *testing.T) {
	m, s, clk := newManager(t)
	ctx := context.Background()
	ds := tiertest.Dataset("chitta_file_1", types.ModuleChitta, "Patta")
	require.NoError(t, s.PutDataset(ctx, ds))
	require.NoError(t, s.PutRecords(ctx, types.ModuleChitta, []*types.Record{
		tiertest.Record("chitta_row_1_000001", types.ModuleChitta, ds.ID, "Patta", "7"),
	}))
	require.NoError(t, s.PutRecords(ctx, types.ModuleAdangal, []*types.Record{
		tiertest.Record("adangal_row_1_000001", types.ModuleAdangal, "f1", "Owner", "Ravi"),
		tiertest.Record("adangal_row_1_000002", types.ModuleAdangal, "f1", "Owner", "Mala"),
	}))

	parent, err := m.DeleteDataset(ctx, ds.ID, "clerk")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	first, err := m.DeleteRecord(ctx, "adangal_row_1_000001", "clerk")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, err := m.DeleteRecord(ctx, "adangal_row_1_000002", "clerk")
	require.NoError(t, err)

	bin, err := m.List(ctx, types.ModuleAdangal)
	require.NoError(t, err)
	require.Len(t, bin, 2)
	assert.Equal(t, second.ID, bin[0].ID, "newest first")
	assert.Equal(t, first.ID, bin[1].ID)

	require.NoError(t, m.Purge(ctx, parent.ID))
	bin, err = m.List(ctx, types.ModuleChitta)
	require.NoError(t, err)
	assert.Empty(t, bin, "purging a dataset entry takes its records")
	ok, err := m.Restore(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, m.Purge(ctx, parent.ID), "purging twice is fine")

	n, err := m.EmptyBin(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	bin, err = m.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, bin)
}
