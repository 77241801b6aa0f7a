package sqltier

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// recordRow is one row of the records table. Data holds the dynamic columns
// as an opaque JSON object; ColumnOrder keeps their display order since
// jsonb does not.
type recordRow struct {
	ID            string         `gorm:"primaryKey;size:191"`
	FileID        string         `gorm:"column:file_id;size:191;index"`
	Module        string         `gorm:"size:64;index"`
	Data          datatypes.JSON `gorm:"column:data"`
	ColumnOrder   datatypes.JSON `gorm:"column:column_order"`
	CreatedBy     string         `gorm:"column:created_by"`
	UpdatedBy     string         `gorm:"column:updated_by"`
	CreatedDate   time.Time      `gorm:"column:created_at"`
	UpdatedDate   *time.Time     `gorm:"column:updated_at"`
	IsNew         bool           `gorm:"column:is_new"`
	IsUpdated     bool           `gorm:"column:is_updated"`
	IsModified    bool           `gorm:"column:is_modified"`
	IsHighlighted bool           `gorm:"column:is_highlighted"`
	ImageURL      string         `gorm:"column:image_url"`
}

func (recordRow) TableName() string { return "records" }

type fileRow struct {
	ID         string         `gorm:"primaryKey;size:191"`
	FileName   string         `gorm:"column:file_name"`
	Module     string         `gorm:"size:64;index"`
	UploadDate time.Time      `gorm:"column:upload_date"`
	UploadedBy string         `gorm:"column:uploaded_by"`
	RowCount   int            `gorm:"column:row_count"`
	Columns    datatypes.JSON `gorm:"column:columns"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
}

func (fileRow) TableName() string { return "files" }

// auxRow holds every auxiliary kind in one table keyed by (kind, id).
type auxRow struct {
	Kind      string    `gorm:"primaryKey;size:32"`
	ID        string    `gorm:"primaryKey;size:191"`
	Module    string    `gorm:"size:64;index"`
	UserID    string    `gorm:"column:user_id;size:191;index"`
	Date      string    `gorm:"size:32;index"`
	FileName  string    `gorm:"column:file_name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
	Body      string    `gorm:"type:text"`
}

func (auxRow) TableName() string { return "aux_entities" }

// binRow keeps OriginalData as text so a restore gets back the exact bytes.
type binRow struct {
	ID           string    `gorm:"primaryKey;size:191"`
	EntityType   string    `gorm:"column:entity_type;size:32"`
	EntityID     string    `gorm:"column:entity_id;size:191"`
	SourceModule string    `gorm:"column:source_module;size:64;index"`
	ParentID     string    `gorm:"column:parent_id;size:191;index"`
	DeletedBy    string    `gorm:"column:deleted_by"`
	DeletedAt    time.Time `gorm:"column:deleted_at"`
	OriginalData string    `gorm:"column:original_data;type:text"`
}

func (binRow) TableName() string { return "recycle_bin" }

func toRecordRow(r *types.Record) (recordRow, error) {
	data, err := json.Marshal(r.Columns)
	if err != nil {
		return recordRow{}, fmt.Errorf("encoding columns of %s: %w", r.ID, err)
	}
	order, err := json.Marshal(r.Columns.Keys())
	if err != nil {
		return recordRow{}, fmt.Errorf("encoding column order of %s: %w", r.ID, err)
	}
	row := recordRow{
		ID:            r.ID,
		FileID:        r.FileID,
		Module:        r.Module,
		Data:          datatypes.JSON(data),
		ColumnOrder:   datatypes.JSON(order),
		CreatedBy:     r.CreatedBy,
		UpdatedBy:     r.UpdatedBy,
		CreatedDate:   r.CreatedDate.UTC(),
		IsNew:         r.IsNew,
		IsUpdated:     r.IsUpdated,
		IsModified:    r.IsModified,
		IsHighlighted: r.IsHighlighted,
		ImageURL:      r.ImageURL,
	}
	if r.UpdatedDate != nil {
		at := r.UpdatedDate.UTC()
		row.UpdatedDate = &at
	}
	return row, nil
}

func (row recordRow) record() (*types.Record, error) {
	var cols types.Columns
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &cols); err != nil {
			return nil, fmt.Errorf("decoding columns of %s: %w", row.ID, err)
		}
	}
	var order []string
	if len(row.ColumnOrder) > 0 {
		if err := json.Unmarshal(row.ColumnOrder, &order); err != nil {
			return nil, fmt.Errorf("decoding column order of %s: %w", row.ID, err)
		}
	}
	r := &types.Record{
		ID:            row.ID,
		FileID:        row.FileID,
		Module:        row.Module,
		IsNew:         row.IsNew,
		IsUpdated:     row.IsUpdated,
		IsModified:    row.IsModified,
		IsHighlighted: row.IsHighlighted,
		ImageURL:      row.ImageURL,
		CreatedBy:     row.CreatedBy,
		CreatedDate:   row.CreatedDate.UTC(),
		UpdatedBy:     row.UpdatedBy,
		Columns:       reorder(cols, order),
	}
	if row.UpdatedDate != nil {
		at := row.UpdatedDate.UTC()
		r.UpdatedDate = &at
	}
	return r, nil
}

// reorder returns cols laid out in order. Keys missing from order follow in
// sorted order.
func reorder(cols types.Columns, order []string) types.Columns {
	var out types.Columns
	for _, k := range order {
		if v, ok := cols.Get(k); ok {
			out.Set(k, v)
		}
	}
	var rest []string
	for _, k := range cols.Keys() {
		if !out.Has(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out.Set(k, cols.Value(k))
	}
	return out
}

func toFileRow(d *types.Dataset) (fileRow, error) {
	cols, err := json.Marshal(append([]string{}, d.Columns...))
	if err != nil {
		return fileRow{}, fmt.Errorf("encoding columns of %s: %w", d.ID, err)
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fileRow{}, fmt.Errorf("encoding metadata of %s: %w", d.ID, err)
	}
	return fileRow{
		ID:         d.ID,
		FileName:   d.FileName,
		Module:     d.Module,
		UploadDate: d.UploadDate.UTC(),
		UploadedBy: d.UploadedBy,
		RowCount:   d.RowCount,
		Columns:    datatypes.JSON(cols),
		Metadata:   datatypes.JSON(meta),
	}, nil
}

func (row fileRow) dataset() (*types.Dataset, error) {
	d := &types.Dataset{
		ID:         row.ID,
		FileName:   row.FileName,
		Module:     row.Module,
		UploadDate: row.UploadDate.UTC(),
		UploadedBy: row.UploadedBy,
		RowCount:   row.RowCount,
	}
	if len(row.Columns) > 0 {
		if err := json.Unmarshal(row.Columns, &d.Columns); err != nil {
			return nil, fmt.Errorf("decoding columns of %s: %w", row.ID, err)
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", row.ID, err)
		}
	}
	return d, nil
}

func toAuxRow(e *types.AuxEntity) auxRow {
	return auxRow{
		Kind:      string(e.Kind),
		ID:        e.ID,
		Module:    e.Module,
		UserID:    e.UserID,
		Date:      e.Date,
		FileName:  e.FileName,
		CreatedAt: e.CreatedAt.UTC(),
		Body:      string(e.Body),
	}
}

func (row auxRow) entity() *types.AuxEntity {
	e := &types.AuxEntity{
		ID:        row.ID,
		Kind:      types.AuxKind(row.Kind),
		Module:    row.Module,
		UserID:    row.UserID,
		Date:      row.Date,
		FileName:  row.FileName,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.Body != "" {
		e.Body = json.RawMessage(row.Body)
	}
	return e
}

func toBinRow(e *types.RecycleBinEntry) binRow {
	return binRow{
		ID:           e.ID,
		EntityType:   string(e.EntityType),
		EntityID:     e.EntityID,
		SourceModule: e.SourceModule,
		ParentID:     e.ParentID,
		DeletedBy:    e.DeletedBy,
		DeletedAt:    e.DeletedAt.UTC(),
		OriginalData: string(e.OriginalData),
	}
}

func (row binRow) entry() *types.RecycleBinEntry {
	return &types.RecycleBinEntry{
		ID:           row.ID,
		EntityType:   types.EntityType(row.EntityType),
		EntityID:     row.EntityID,
		SourceModule: row.SourceModule,
		ParentID:     row.ParentID,
		DeletedBy:    row.DeletedBy,
		DeletedAt:    row.DeletedAt.UTC(),
		OriginalData: json.RawMessage(row.OriginalData),
	}
}
