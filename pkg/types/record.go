package types

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record kinds used in generated record IDs.
const (
	RecordKindRow = "row"
)

// Record is one schema-less row: fixed system attributes plus dynamic
// columns named after spreadsheet headers. Every dynamic value is a string.
//
// Flag semantics:
//   - IsNew marks a row that was never part of the original upload state. It
//     is set on creation and never cleared.
//   - IsUpdated marks a row whose fields changed after creation.
//   - IsModified is the "needs review" marker, set only by manual inserts and
//     manual edits and cleared only by a bulk acknowledge.
type Record struct {
	ID     string `json:"id"`
	FileID string `json:"fileId"`
	Module string `json:"module"`

	IsNew      bool `json:"isNew"`
	IsUpdated  bool `json:"isUpdated"`
	IsModified bool `json:"isModified"`
	// IsHighlighted is the legacy spelling of IsModified kept by older
	// stores; it always mirrors IsModified.
	IsHighlighted bool `json:"isHighlighted"`

	ImageURL string `json:"imageUrl,omitempty"`

	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedDate time.Time  `json:"createdDate"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
	UpdatedDate *time.Time `json:"updatedDate,omitempty"`

	Columns Columns `json:"columns"`
}

// NewImportedRecord creates a row produced by a bulk import. Bulk imports
// never set IsModified.
func NewImportedRecord(id, module, fileID string, cols Columns, by string, at time.Time) *Record {
	return &Record{
		ID:          id,
		FileID:      fileID,
		Module:      module,
		IsNew:       true,
		CreatedBy:   by,
		CreatedDate: at,
		Columns:     cols,
	}
}

// NewManualRecord creates a row inserted by hand; it starts flagged for review.
func NewManualRecord(id, module, fileID string, cols Columns, by string, at time.Time) *Record {
	r := NewImportedRecord(id, module, fileID, cols, by, at)
	r.IsModified = true
	r.IsHighlighted = true
	return r
}

// ApplyEdit sets the given column values as a manual edit and stamps the
// audit attributes. Columns not present in changes are untouched.
func (r *Record) ApplyEdit(changes Columns, by string, at time.Time) {
	changes.Range(func(name, value string) bool {
		r.Columns.Set(name, value)
		return true
	})
	r.IsUpdated = true
	r.IsModified = true
	r.IsHighlighted = true
	r.UpdatedBy = by
	stamp := at
	r.UpdatedDate = &stamp
}

// Acknowledge clears the review marker. IsNew and IsUpdated are untouched.
func (r *Record) Acknowledge() {
	r.IsModified = false
	r.IsHighlighted = false
}

// KeepNew carries a stored IsNew forward so no write can reset it.
func (r *Record) KeepNew(stored *Record) {
	if stored != nil && stored.IsNew {
		r.IsNew = true
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Columns = r.Columns.Clone()
	if r.UpdatedDate != nil {
		t := *r.UpdatedDate
		cp.UpdatedDate = &t
	}
	return &cp
}

// Validate checks the system attributes that every tier relies on.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrInvalidID
	}
	return ValidateModule(r.Module)
}

// RecordID formats a record ID as module_kind_batchMillis_ordinal. The
// ordinal is zero-padded so lexical ID order equals row order within a batch
// and batches order by creation time.
func RecordID(module, kind string, batch time.Time, ordinal int) string {
	return fmt.Sprintf("%s_%s_%013d_%06d", module, kind, batch.UnixMilli(), ordinal)
}

// RecordOrdinal returns the row ordinal at the end of a generated record
// ID, or 0 when id has no numeric suffix.
func RecordOrdinal(id string) int {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DatasetID formats a dataset ID as module_file_batchMillis.
func DatasetID(module string, batch time.Time) string {
	return fmt.Sprintf("%s_file_%013d", module, batch.UnixMilli())
}

var modulePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// ValidateModule checks a module name: lowercase letters, digits and
// underscores, starting with a letter or digit.
func ValidateModule(module string) error {
	if !modulePattern.MatchString(module) {
		return fmt.Errorf("%w: %q", ErrInvalidModule, module)
	}
	return nil
}

// SortRecords orders recs by id, which is creation order.
func SortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
