// Package records is the dynamic record store: the module-level record
// operations built on a types.Backend. It owns the audit-flag transitions,
// chunked batch writes and the derived totalExtent column.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/landrecords/internal/clock"
	"github.com/mesh-intelligence/landrecords/internal/metrics"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Batch defaults.
const (
	DefaultChunkSize   = 200
	DefaultConcurrency = 4
)

// Store applies record semantics on top of a backend, usually the
// orchestrator.
type Store struct {
	backend     types.Backend
	clock       clock.Clock
	log         *zap.Logger
	chunkSize   int
	concurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithChunkSize sets how many records go into one backend write.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithConcurrency sets how many chunks are written at once.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New builds a Store over backend.
func New(backend types.Backend, clk clock.Clock, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		clock:       clk,
		log:         log,
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDatasets returns the datasets of module, oldest upload first.
func (s *Store) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	if err := types.ValidateModule(module); err != nil {
		return nil, err
	}
	ds, err := s.backend.ListDatasets(ctx, module)
	if err != nil {
		return nil, err
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
	return ds, nil
}

// ListRecords returns the records of module in id order, scoped to one
// dataset when datasetID is set. Land register summary rows carry a freshly
// computed totalExtent.
func (s *Store) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	if err := types.ValidateModule(module); err != nil {
		return nil, err
	}
	recs, err := s.backend.ListRecords(ctx, module, datasetID)
	if err != nil {
		return nil, err
	}
	types.SortRecords(recs)
	for _, r := range recs {
		withExtent(r)
	}
	return recs, nil
}

// GetRecord returns one record, with totalExtent computed for summary rows.
func (s *Store) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	r, err := s.backend.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	withExtent(r)
	return r, nil
}

func withExtent(r *types.Record) {
	if r.Module == types.ModuleLandSummary {
		r.Columns.Set(types.TotalExtentColumn, TotalExtent(r.Columns))
	}
}

// UpsertRecords writes recs in chunks. Chunks commit independently and run
// concurrently up to the configured limit. When some chunks fail the rest
// stay committed and the failures are returned as a *types.BatchError.
//
// A stored IsNew is never cleared, and totalExtent is never stored.
func (s *Store) UpsertRecords(ctx context.Context, module string, recs []*types.Record) error {
	if err := types.ValidateModule(module); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.Module != module {
			return fmt.Errorf("%w: record %s belongs to %s, not %s", types.ErrInvalidData, r.ID, r.Module, module)
		}
	}

	stored, err := s.backend.ListRecords(ctx, module, "")
	if err != nil {
		return fmt.Errorf("loading stored records: %w", err)
	}
	byID := make(map[string]*types.Record, len(stored))
	for _, r := range stored {
		byID[r.ID] = r
	}

	out := make([]*types.Record, len(recs))
	for i, r := range recs {
		cp := r.Clone()
		cp.KeepNew(byID[r.ID])
		cp.Columns.Delete(types.TotalExtentColumn)
		out[i] = cp
	}
	return s.writeChunks(ctx, module, out)
}

func (s *Store) writeChunks(ctx context.Context, module string, recs []*types.Record) error {
	chunks := chunk(recs, s.chunkSize)

	var (
		mu     sync.Mutex
		failed []types.ChunkError
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			err := s.backend.PutRecords(ctx, module, c)
			if err == nil {
				metrics.BatchChunks.WithLabelValues(metrics.ChunkCommitted).Inc()
				return nil
			}
			metrics.BatchChunks.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.log.Warn("record chunk failed",
				zap.String("module", module),
				zap.Int("chunk", i),
				zap.Int("records", len(c)),
				zap.Error(err))
			mu.Lock()
			failed = append(failed, types.ChunkError{Index: i, Size: len(c), Err: err})
			mu.Unlock()
			// Other chunks keep going; the failure is reported below.
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return nil
	}
	committed := len(recs)
	for _, f := range failed {
		committed -= f.Size
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
	return &types.BatchError{Chunks: len(chunks), Committed: committed, Failed: failed}
}

func chunk(recs []*types.Record, size int) [][]*types.Record {
	var out [][]*types.Record
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		out = append(out, recs[start:end])
	}
	return out
}

// ClearModifiedFlags acknowledges every pending manual change of module in
// one bulk update and returns how many records changed.
func (s *Store) ClearModifiedFlags(ctx context.Context, module string) (int, error) {
	if err := types.ValidateModule(module); err != nil {
		return 0, err
	}
	return s.backend.ClearModified(ctx, module)
}

// InsertManual adds one hand-entered row to a dataset. Schema columns not
// given in values are blank. The row starts flagged for review.
func (s *Store) InsertManual(ctx context.Context, datasetID string, values types.Columns, by string) (*types.Record, error) {
	ds, err := s.backend.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	cols, err := fillSchema(ds, values)
	if err != nil {
		return nil, err
	}
	existing, err := s.backend.ListRecords(ctx, ds.Module, ds.ID)
	if err != nil {
		return nil, err
	}

	// Ordinals continue past the highest existing row so a deleted row
	// never frees an ID that a row of the same batch still holds.
	ordinal := 0
	for _, r := range existing {
		ordinal = max(ordinal, types.RecordOrdinal(r.ID))
	}
	now := s.clock.Now()
	id := types.RecordID(ds.Module, types.RecordKindRow, now, ordinal+1)
	rec := types.NewManualRecord(id, ds.Module, ds.ID, cols, by, now)
	if err := s.backend.PutRecords(ctx, ds.Module, []*types.Record{rec}); err != nil {
		return nil, err
	}

	ds.RowCount = len(existing) + 1
	if err := s.backend.PutDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("updating row count: %w", err)
	}
	s.log.Info("record inserted", zap.String("id", id), zap.String("dataset", ds.ID), zap.String("by", by))
	return rec, nil
}

func fillSchema(ds *types.Dataset, values types.Columns) (types.Columns, error) {
	if err := checkSchema(ds, values); err != nil {
		return types.Columns{}, err
	}
	var cols types.Columns
	for _, name := range ds.Columns {
		cols.Set(name, values.Value(name))
	}
	return cols, nil
}

// checkSchema rejects column names the dataset does not declare.
func checkSchema(ds *types.Dataset, values types.Columns) error {
	var unknown []string
	values.Range(func(name, _ string) bool {
		if !ds.HasColumn(name) {
			unknown = append(unknown, name)
		}
		return true
	})
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s not in dataset %s", types.ErrInvalidColumn, strings.Join(unknown, ", "), ds.ID)
	}
	return nil
}

// EditRecord applies a manual edit to the named columns of record id.
func (s *Store) EditRecord(ctx context.Context, id string, changes types.Columns, by string) (*types.Record, error) {
	if changes.Len() == 0 {
		return nil, fmt.Errorf("%w: no columns to change", types.ErrInvalidData)
	}
	rec, err := s.backend.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	changes = changes.Clone()
	changes.Delete(types.TotalExtentColumn)
	ds, err := s.backend.GetDataset(ctx, rec.FileID)
	if err != nil {
		return nil, fmt.Errorf("loading dataset %s: %w", rec.FileID, err)
	}
	if err := checkSchema(ds, changes); err != nil {
		return nil, err
	}
	rec.Columns.Delete(types.TotalExtentColumn)
	rec.ApplyEdit(changes, by, s.clock.Now())
	if err := s.backend.PutRecords(ctx, rec.Module, []*types.Record{rec}); err != nil {
		return nil, err
	}
	withExtent(rec)
	return rec, nil
}

// ImportDataset commits an ingested dataset: records first, then the
// dataset itself, so a listed dataset never points at missing rows. Every
// record must belong to d. When some record chunks fail the dataset is
// still written so the committed rows stay reachable, and the
// *types.BatchError is returned.
func (s *Store) ImportDataset(ctx context.Context, d *types.Dataset, recs []*types.Record) error {
	if err := d.Validate(); err != nil {
		return err
	}
	for _, r := range recs {
		if r.FileID != d.ID || r.Module != d.Module {
			return fmt.Errorf("%w: record %s does not belong to dataset %s", types.ErrInvalidData, r.ID, d.ID)
		}
	}
	d.RowCount = len(recs)

	err := s.UpsertRecords(ctx, d.Module, recs)
	if err != nil && !errors.Is(err, types.ErrPartialBatch) {
		return err
	}
	if perr := s.backend.PutDataset(ctx, d); perr != nil {
		return perr
	}
	s.log.Info("dataset imported",
		zap.String("dataset", d.ID),
		zap.String("module", d.Module),
		zap.Int("records", len(recs)))
	return err
}

// AddColumn appends name to the dataset schema and gives every existing
// record of the dataset an empty value for it. Audit flags are untouched.
func (s *Store) AddColumn(ctx context.Context, datasetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == types.TotalExtentColumn {
		return fmt.Errorf("%w: %q", types.ErrInvalidColumn, name)
	}
	ds, err := s.backend.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	if !ds.AddColumn(name) {
		return fmt.Errorf("%w: %q already exists in %s", types.ErrInvalidColumn, name, ds.ID)
	}
	recs, err := s.backend.ListRecords(ctx, ds.Module, ds.ID)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if !r.Columns.Has(name) {
			r.Columns.Set(name, "")
		}
	}
	if err := s.UpsertRecords(ctx, ds.Module, recs); err != nil {
		return err
	}
	return s.backend.PutDataset(ctx, ds)
}
