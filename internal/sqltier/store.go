package sqltier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrNotFound
	}
	return err
}

// ListDatasets implements types.Backend.
func (t *Tier) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	var rows []fileRow
	if err := db.WithContext(ctx).Where("module = ?", module).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	out := make([]*types.Dataset, 0, len(rows))
	for _, row := range rows {
		d, err := row.dataset()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetDataset implements types.Backend.
func (t *Tier) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	var row fileRow
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.dataset()
}

// PutDataset implements types.Backend.
func (t *Tier) PutDataset(ctx context.Context, d *types.Dataset) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	row, err := toFileRow(d)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("writing dataset %s: %w", d.ID, err)
	}
	return nil
}

// DeleteDataset implements types.Backend.
func (t *Tier) DeleteDataset(ctx context.Context, id string) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&fileRow{}).Error; err != nil {
		return fmt.Errorf("deleting dataset %s: %w", id, err)
	}
	return nil
}

// ListRecords implements types.Backend.
func (t *Tier) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	q := db.WithContext(ctx).Where("module = ?", module)
	if datasetID != "" {
		q = q.Where("file_id = ?", datasetID)
	}
	var rows []recordRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	out := make([]*types.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRecord implements types.Backend.
func (t *Tier) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	var row recordRow
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.record()
}

// PutRecords upserts recs in one transaction.
func (t *Tier) PutRecords(ctx context.Context, module string, recs []*types.Record) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if err := types.ValidateModule(module); err != nil {
		return err
	}
	rows := make([]recordRow, 0, len(recs))
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.Module != module {
			return fmt.Errorf("%w: record %s belongs to %s, not %s", types.ErrInvalidData, r.ID, r.Module, module)
		}
		row, err := toRecordRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

// DeleteRecords implements types.Backend.
func (t *Tier) DeleteRecords(ctx context.Context, ids []string) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Delete(&recordRow{}).Error; err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// ClearModified resets the review flags with one bulk UPDATE predicated on
// the flags being set.
func (t *Tier) ClearModified(ctx context.Context, module string) (int, error) {
	db, err := t.conn()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Model(&recordRow{}).
		Where("module = ? AND (is_modified = ? OR is_highlighted = ?)", module, true, true).
		Updates(map[string]any{"is_modified": false, "is_highlighted": false})
	if res.Error != nil {
		return 0, fmt.Errorf("clearing modified flags: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListAux implements types.Backend.
func (t *Tier) ListAux(ctx context.Context, kind types.AuxKind, filter types.AuxFilter) ([]*types.AuxEntity, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	q := db.WithContext(ctx).Where("kind = ?", string(kind))
	if filter.Module != "" {
		q = q.Where("module = ?", filter.Module)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Date != "" {
		q = q.Where("date = ?", filter.Date)
	}
	var rows []auxRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	out := make([]*types.AuxEntity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entity())
	}
	return out, nil
}

// GetAux implements types.Backend.
func (t *Tier) GetAux(ctx context.Context, kind types.AuxKind, id string) (*types.AuxEntity, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	var row auxRow
	if err := db.WithContext(ctx).Where("kind = ? AND id = ?", string(kind), id).Take(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.entity(), nil
}

// PutAux implements types.Backend. An empty id is replaced with a UUID v7.
func (t *Tier) PutAux(ctx context.Context, e *types.AuxEntity) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidKind, e.Kind)
	}
	if e.ID == "" {
		e.ID = newID()
	}
	row := toAuxRow(e)
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("writing %s %s: %w", e.Kind, e.ID, err)
	}
	return nil
}

// DeleteAux implements types.Backend.
func (t *Tier) DeleteAux(ctx context.Context, kind types.AuxKind, id string) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("kind = ? AND id = ?", string(kind), id).Delete(&auxRow{}).Error; err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	return nil
}

// ListBin implements types.Backend.
func (t *Tier) ListBin(ctx context.Context) ([]*types.RecycleBinEntry, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	var rows []binRow
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing recycle bin: %w", err)
	}
	out := make([]*types.RecycleBinEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	types.SortBinEntries(out)
	return out, nil
}

// GetBinEntry implements types.Backend.
func (t *Tier) GetBinEntry(ctx context.Context, id string) (*types.RecycleBinEntry, error) {
	db, err := t.conn()
	if err != nil {
		return nil, err
	}
	var row binRow
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.entry(), nil
}

// PutBinEntry implements types.Backend. An empty id is replaced with a
// UUID v7.
func (t *Tier) PutBinEntry(ctx context.Context, e *types.RecycleBinEntry) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	row := toBinRow(e)
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("writing bin entry %s: %w", e.ID, err)
	}
	return nil
}

// DeleteBinEntry implements types.Backend.
func (t *Tier) DeleteBinEntry(ctx context.Context, id string) error {
	db, err := t.conn()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&binRow{}).Error; err != nil {
		return fmt.Errorf("deleting bin entry %s: %w", id, err)
	}
	return nil
}

// EmptyBin implements types.Backend.
func (t *Tier) EmptyBin(ctx context.Context) (int, error) {
	db, err := t.conn()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Where("1 = 1").Delete(&binRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("emptying recycle bin: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
