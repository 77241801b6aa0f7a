package types

import "time"

// MergeRange is a rectangular span of cells that renders as one logical
// cell. Coordinates are zero-based and inclusive, relative to the dataset
// grid (row 0 is the first data row, column i is Columns[i]).
type MergeRange struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

// DatasetMetadata carries optional import details.
type DatasetMetadata struct {
	MergedCells           []MergeRange `json:"mergedCells,omitempty"`
	HeaderRow             int          `json:"headerRow"`
	HadUnsupportedContent bool         `json:"hadUnsupportedContent,omitempty"`
}

// Dataset is one completed import. It owns its records: deleting a dataset
// soft-deletes every record whose FileID references it.
type Dataset struct {
	ID         string          `json:"id"`
	FileName   string          `json:"fileName"`
	Module     string          `json:"module"`
	UploadDate time.Time       `json:"uploadDate"`
	UploadedBy string          `json:"uploadedBy,omitempty"`
	RowCount   int             `json:"rowCount"`
	Columns    []string        `json:"columns"`
	Metadata   DatasetMetadata `json:"metadata"`
}

// HasColumn reports whether name is already part of the schema.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the schema. It returns false when the column
// already exists.
func (d *Dataset) AddColumn(name string) bool {
	if d.HasColumn(name) {
		return false
	}
	d.Columns = append(d.Columns, name)
	return true
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	cp := *d
	cp.Columns = append([]string(nil), d.Columns...)
	cp.Metadata.MergedCells = append([]MergeRange(nil), d.Metadata.MergedCells...)
	return &cp
}

// Validate checks the fields every tier relies on.
func (d *Dataset) Validate() error {
	if d.ID == "" {
		return ErrInvalidID
	}
	return ValidateModule(d.Module)
}
