package types

import (
	"encoding/json"
	"time"
)

// AuxKind names an auxiliary entity table.
type AuxKind string

// Auxiliary entity kinds.
const (
	AuxFMB        AuxKind = "fmb"        // field measurement book sketch
	AuxKML        AuxKind = "kml"        // map overlay file
	AuxAttendance AuxKind = "attendance" // staff attendance entry
)

// AuxKinds lists every auxiliary kind.
var AuxKinds = []AuxKind{AuxFMB, AuxKML, AuxAttendance}

// Valid reports whether k is a known kind.
func (k AuxKind) Valid() bool {
	for _, known := range AuxKinds {
		if k == known {
			return true
		}
	}
	return false
}

// AuxEntity is an auxiliary document stored next to the records: map
// overlays and attendance entries. Body is opaque to the core.
type AuxEntity struct {
	ID        string          `json:"id"`
	Kind      AuxKind         `json:"kind"`
	Module    string          `json:"module,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Date      string          `json:"date,omitempty"`
	FileName  string          `json:"fileName,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// AuxFilter narrows ListAux. Empty fields match everything.
type AuxFilter struct {
	Module string
	UserID string
	Date   string
}

// Match reports whether e satisfies the filter.
func (f AuxFilter) Match(e *AuxEntity) bool {
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Date != "" && e.Date != f.Date {
		return false
	}
	return true
}

// Clone returns a deep copy.
func (e *AuxEntity) Clone() *AuxEntity {
	cp := *e
	cp.Body = append(json.RawMessage(nil), e.Body...)
	return &cp
}
