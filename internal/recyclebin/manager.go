// Package recyclebin moves deleted entities into a quarantine store from
// which they can be restored verbatim or purged for good.
package recyclebin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/clock"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Manager implements soft delete and restore on top of a backend.
//
// Soft deletes write the bin entries before removing the live entity, so an
// interrupted delete leaves a duplicate rather than a loss.
type Manager struct {
	backend types.Backend
	clock   clock.Clock
	log     *zap.Logger
}

// New builds a Manager.
func New(backend types.Backend, clk clock.Clock, log *zap.Logger) *Manager {
	return &Manager{backend: backend, clock: clk, log: log}
}

// SoftDelete moves the entity of the given type into the bin. Datasets take
// their records with them.
func (m *Manager) SoftDelete(ctx context.Context, entityType types.EntityType, id, deletedBy string) (*types.RecycleBinEntry, error) {
	switch entityType {
	case types.EntityRecord:
		return m.DeleteRecord(ctx, id, deletedBy)
	case types.EntityDataset:
		return m.DeleteDataset(ctx, id, deletedBy)
	}
	if kind, ok := entityType.AuxKind(); ok {
		return m.DeleteAux(ctx, kind, id, deletedBy)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, entityType)
}

// DeleteRecord moves one record into the bin.
func (m *Manager) DeleteRecord(ctx context.Context, id, deletedBy string) (*types.RecycleBinEntry, error) {
	rec, err := m.backend.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := m.entry(types.EntityRecord, rec.ID, rec.Module, "", deletedBy, rec)
	if err != nil {
		return nil, err
	}
	if err := m.backend.PutBinEntry(ctx, e); err != nil {
		return nil, err
	}
	if err := m.backend.DeleteRecords(ctx, []string{rec.ID}); err != nil {
		return nil, err
	}
	m.log.Info("record moved to bin", zap.String("record", rec.ID), zap.String("entry", e.ID), zap.String("by", deletedBy))
	return e, nil
}

// DeleteDataset moves a dataset and every record that references it into
// the bin. Record entries carry the dataset's module and point at the
// dataset entry through ParentID.
func (m *Manager) DeleteDataset(ctx context.Context, id, deletedBy string) (*types.RecycleBinEntry, error) {
	ds, err := m.backend.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := m.backend.ListRecords(ctx, ds.Module, ds.ID)
	if err != nil {
		return nil, err
	}

	parent, err := m.entry(types.EntityDataset, ds.ID, ds.Module, "", deletedBy, ds)
	if err != nil {
		return nil, err
	}
	if err := m.backend.PutBinEntry(ctx, parent); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		child, err := m.entry(types.EntityRecord, r.ID, ds.Module, parent.ID, deletedBy, r)
		if err != nil {
			return nil, err
		}
		if err := m.backend.PutBinEntry(ctx, child); err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
	}

	if len(ids) > 0 {
		if err := m.backend.DeleteRecords(ctx, ids); err != nil {
			return nil, err
		}
	}
	if err := m.backend.DeleteDataset(ctx, ds.ID); err != nil {
		return nil, err
	}
	m.log.Info("dataset moved to bin",
		zap.String("dataset", ds.ID),
		zap.Int("records", len(ids)),
		zap.String("entry", parent.ID),
		zap.String("by", deletedBy))
	return parent, nil
}

// DeleteAux moves an auxiliary entity into the bin.
func (m *Manager) DeleteAux(ctx context.Context, kind types.AuxKind, id, deletedBy string) (*types.RecycleBinEntry, error) {
	a, err := m.backend.GetAux(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	e, err := m.entry(types.EntityType(kind), a.ID, a.Module, "", deletedBy, a)
	if err != nil {
		return nil, err
	}
	if err := m.backend.PutBinEntry(ctx, e); err != nil {
		return nil, err
	}
	if err := m.backend.DeleteAux(ctx, kind, a.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (m *Manager) entry(t types.EntityType, entityID, module, parentID, deletedBy string, v any) (*types.RecycleBinEntry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s: %w", t, entityID, err)
	}
	return &types.RecycleBinEntry{
		ID:           newID(),
		EntityType:   t,
		EntityID:     entityID,
		SourceModule: module,
		ParentID:     parentID,
		DeletedBy:    deletedBy,
		DeletedAt:    m.clock.Now(),
		OriginalData: data,
	}, nil
}

// Restore puts the entry's entity back exactly as it was and removes the
// entry. Restoring a dataset also restores the records still in the bin
// under it. It returns false when the entry no longer exists.
func (m *Manager) Restore(ctx context.Context, entryID string) (bool, error) {
	e, err := m.backend.GetBinEntry(ctx, entryID)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch e.EntityType {
	case types.EntityRecord:
		err = m.restoreRecord(ctx, e)
	case types.EntityDataset:
		err = m.restoreDataset(ctx, e)
	default:
		err = m.restoreAux(ctx, e)
	}
	if err != nil {
		return false, err
	}
	if err := m.backend.DeleteBinEntry(ctx, e.ID); err != nil {
		return false, err
	}
	m.log.Info("entry restored", zap.String("entry", e.ID), zap.String("type", string(e.EntityType)), zap.String("entity", e.EntityID))
	return true, nil
}

// restoreRecord writes the snapshot straight to the backend so no flag or
// stamp is touched on the way back.
func (m *Manager) restoreRecord(ctx context.Context, e *types.RecycleBinEntry) error {
	rec, err := e.Record()
	if err != nil {
		return err
	}
	return m.backend.PutRecords(ctx, rec.Module, []*types.Record{rec})
}

func (m *Manager) restoreDataset(ctx context.Context, e *types.RecycleBinEntry) error {
	ds, err := e.Dataset()
	if err != nil {
		return err
	}
	children, err := m.children(ctx, e.ID)
	if err != nil {
		return err
	}
	recs := make([]*types.Record, 0, len(children))
	for _, c := range children {
		r, err := c.Record()
		if err != nil {
			return err
		}
		recs = append(recs, r)
	}
	if len(recs) > 0 {
		if err := m.backend.PutRecords(ctx, ds.Module, recs); err != nil {
			return err
		}
	}
	if err := m.backend.PutDataset(ctx, ds); err != nil {
		return err
	}
	for _, c := range children {
		if err := m.backend.DeleteBinEntry(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) restoreAux(ctx context.Context, e *types.RecycleBinEntry) error {
	a, err := e.Aux()
	if err != nil {
		return err
	}
	return m.backend.PutAux(ctx, a)
}

func (m *Manager) children(ctx context.Context, parentID string) ([]*types.RecycleBinEntry, error) {
	all, err := m.backend.ListBin(ctx)
	if err != nil {
		return nil, err
	}
	var out []*types.RecycleBinEntry
	for _, e := range all {
		if e.ParentID == parentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Purge removes one entry for good, with any child entries. A missing entry
// is not an error.
func (m *Manager) Purge(ctx context.Context, entryID string) error {
	children, err := m.children(ctx, entryID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := m.backend.DeleteBinEntry(ctx, c.ID); err != nil {
			return err
		}
	}
	return m.backend.DeleteBinEntry(ctx, entryID)
}

// EmptyBin purges every entry and returns how many were removed.
func (m *Manager) EmptyBin(ctx context.Context) (int, error) {
	n, err := m.backend.EmptyBin(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Info("recycle bin emptied", zap.Int("entries", n))
	return n, nil
}

// List returns bin entries newest first, only those from module when it is
// set.
func (m *Manager) List(ctx context.Context, module string) ([]*types.RecycleBinEntry, error) {
	all, err := m.backend.ListBin(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if module == "" || e.SourceModule == module {
			out = append(out, e)
		}
	}
	types.SortBinEntries(out)
	return out, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
