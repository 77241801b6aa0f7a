package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestRecordLifecycleTransitions(t *testing.T) {
	tests := []struct {
		name         string
		build        func() *Record
		wantNew      bool
		wantUpdated  bool
		wantModified bool
	}{
		{
			name: "import creates new unmodified row",
			build: func() *Record {
				return NewImportedRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1"), "clerk", testTime)
			},
			wantNew: true,
		},
		{
			name: "manual insert creates new modified row",
			build: func() *Record {
				return NewManualRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1"), "clerk", testTime)
			},
			wantNew:      true,
			wantModified: true,
		},
		{
			name: "edit marks updated and modified and keeps new",
			build: func() *Record {
				r := NewImportedRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1"), "clerk", testTime)
				r.ApplyEdit(NewColumns("a", "2"), "vao", testTime.Add(time.Hour))
				return r
			},
			wantNew:      true,
			wantUpdated:  true,
			wantModified: true,
		},
		{
			name: "acknowledge clears modified only",
			build: func() *Record {
				r := NewManualRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1"), "clerk", testTime)
				r.ApplyEdit(NewColumns("a", "2"), "vao", testTime)
				r.Acknowledge()
				return r
			},
			wantNew:     true,
			wantUpdated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.build()
			assert.Equal(t, tt.wantNew, r.IsNew, "IsNew")
			assert.Equal(t, tt.wantUpdated, r.IsUpdated, "IsUpdated")
			assert.Equal(t, tt.wantModified, r.IsModified, "IsModified")
			assert.Equal(t, r.IsModified, r.IsHighlighted, "IsHighlighted mirrors IsModified")
		})
	}
}

func TestRecordApplyEditStampsAudit(t *testing.T) {
	r := NewImportedRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1", "b", "x"), "clerk", testTime)
	at := testTime.Add(2 * time.Hour)
	r.ApplyEdit(NewColumns("b", "y", "c", "new"), "vao", at)

	assert.Equal(t, []string{"a", "b", "c"}, r.Columns.Keys())
	assert.Equal(t, "y", r.Columns.Value("b"))
	assert.Equal(t, "vao", r.UpdatedBy)
	require.NotNil(t, r.UpdatedDate)
	assert.True(t, r.UpdatedDate.Equal(at))
	assert.Equal(t, "clerk", r.CreatedBy)
}

func TestRecordKeepNew(t *testing.T) {
	stored := &Record{ID: "r1", IsNew: true}
	incoming := &Record{ID: "r1"}
	incoming.KeepNew(stored)
	assert.True(t, incoming.IsNew)

	incoming = &Record{ID: "r1"}
	incoming.KeepNew(nil)
	assert.False(t, incoming.IsNew)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	r := NewManualRecord("r1", ModuleChitta, "f1", NewColumns("Survey No", "12/3", "Owner", "Muthu"), "clerk", testTime)
	r.ApplyEdit(NewColumns("Owner", "Muthu K"), "vao", testTime.Add(time.Minute))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, string(data), string(again))
}

func TestRecordCloneIsDeep(t *testing.T) {
	r := NewImportedRecord("r1", ModuleAdangal, "f1", NewColumns("a", "1"), "clerk", testTime)
	r.ApplyEdit(NewColumns("a", "2"), "vao", testTime)
	cp := r.Clone()
	cp.Columns.Set("a", "3")
	*cp.UpdatedDate = testTime.Add(time.Hour)

	assert.Equal(t, "2", r.Columns.Value("a"))
	assert.True(t, r.UpdatedDate.Equal(testTime))
}

func TestRecordIDSortsByBatchThenOrdinal(t *testing.T) {
	early := RecordID(ModuleAdangal, RecordKindRow, testTime, 9)
	later := RecordID(ModuleAdangal, RecordKindRow, testTime, 10)
	nextBatch := RecordID(ModuleAdangal, RecordKindRow, testTime.Add(time.Millisecond), 1)

	assert.Less(t, early, later)
	assert.Less(t, later, nextBatch)
	assert.Equal(t, "adangal_row_1773480600000_000009", early)
}

func TestValidateModule(t *testing.T) {
	assert.NoError(t, ValidateModule("a_register"))
	assert.NoError(t, ValidateModule("adangal2"))
	for _, bad := range []string{"", "Adangal", "a-register", "_x", "a b"} {
		err := ValidateModule(bad)
		assert.True(t, errors.Is(err, ErrInvalidModule), "module %q", bad)
	}
}

func TestBatchErrorMatchesPartialBatch(t *testing.T) {
	cause := errors.New("boom")
	var err error = &BatchError{Chunks: 3, Committed: 200, Failed: []ChunkError{{Index: 1, Size: 100, Err: cause}}}

	assert.True(t, errors.Is(err, ErrPartialBatch))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "1 of 3 chunks failed")
}

func TestRecordOrdinal(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{RecordID(ModuleChitta, RecordKindRow, testTime, 42), 42},
		{RecordID(ModuleLandSummary, RecordKindRow, testTime, 1), 1},
		{"manual", 0},
		{"chitta_row_x", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecordOrdinal(tt.id), tt.id)
	}
}
