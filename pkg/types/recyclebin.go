package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EntityType identifies what a recycle-bin entry holds.
type EntityType string

// Entity types accepted by the recycle bin.
const (
	EntityRecord     EntityType = "record"
	EntityDataset    EntityType = "dataset"
	EntityFMB        EntityType = EntityType(AuxFMB)
	EntityKML        EntityType = EntityType(AuxKML)
	EntityAttendance EntityType = EntityType(AuxAttendance)
)

// AuxKind returns the auxiliary kind for aux entity types.
func (t EntityType) AuxKind() (AuxKind, bool) {
	k := AuxKind(t)
	return k, k.Valid()
}

// RecycleBinEntry is an immutable snapshot of a deleted entity. OriginalData
// holds the full pre-delete JSON so a restore reproduces it exactly.
type RecycleBinEntry struct {
	ID           string          `json:"id"`
	EntityType   EntityType      `json:"entityType"`
	EntityID     string          `json:"entityId"`
	SourceModule string          `json:"sourceModule"`
	ParentID     string          `json:"parentId,omitempty"`
	DeletedBy    string          `json:"deletedBy"`
	DeletedAt    time.Time       `json:"deletedAt"`
	OriginalData json.RawMessage `json:"originalData"`
}

// Record decodes OriginalData as a record.
func (e *RecycleBinEntry) Record() (*Record, error) {
	if e.EntityType != EntityRecord {
		return nil, fmt.Errorf("%w: entry %s holds %s", ErrInvalidData, e.ID, e.EntityType)
	}
	var r Record
	if err := json.Unmarshal(e.OriginalData, &r); err != nil {
		return nil, fmt.Errorf("decoding record snapshot: %w", err)
	}
	return &r, nil
}

// Dataset decodes OriginalData as a dataset.
func (e *RecycleBinEntry) Dataset() (*Dataset, error) {
	if e.EntityType != EntityDataset {
		return nil, fmt.Errorf("%w: entry %s holds %s", ErrInvalidData, e.ID, e.EntityType)
	}
	var d Dataset
	if err := json.Unmarshal(e.OriginalData, &d); err != nil {
		return nil, fmt.Errorf("decoding dataset snapshot: %w", err)
	}
	return &d, nil
}

// Aux decodes OriginalData as an auxiliary entity.
func (e *RecycleBinEntry) Aux() (*AuxEntity, error) {
	if _, ok := e.EntityType.AuxKind(); !ok {
		return nil, fmt.Errorf("%w: entry %s holds %s", ErrInvalidData, e.ID, e.EntityType)
	}
	var a AuxEntity
	if err := json.Unmarshal(e.OriginalData, &a); err != nil {
		return nil, fmt.Errorf("decoding aux snapshot: %w", err)
	}
	return &a, nil
}

// SortBinEntries orders entries newest first, ties broken by id descending.
func SortBinEntries(entries []*RecycleBinEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.DeletedAt.Equal(b.DeletedAt) {
			return a.DeletedAt.After(b.DeletedAt)
		}
		return a.ID > b.ID
	})
}
