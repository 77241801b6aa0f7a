// Package orchestrator routes every persistence call through an ordered list
// of tiers, falling through to the next tier when one is unavailable or
// fails. The last tier is the local store and its failure is terminal.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/metrics"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// DefaultPollInterval is the change-poll period for tiers without push.
const DefaultPollInterval = 5 * time.Second

// ErrNoTiers is returned by New when no tier is given.
var ErrNoTiers = errors.New("orchestrator needs at least one tier")

var _ types.Backend = (*Orchestrator)(nil)

// TierStatus is the startup state of one tier.
type TierStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Status is computed once when the orchestrator is built. Offline is true
// when no remote tier initialized.
type Status struct {
	Offline bool         `json:"offline"`
	Tiers   []TierStatus `json:"tiers"`
}

// Orchestrator implements types.Backend over an immutable tier list. It
// holds no mutable state between calls and is safe for concurrent use.
type Orchestrator struct {
	tiers        []types.Tier
	log          *zap.Logger
	status       Status
	pollInterval time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets the change-poll period used by Subscribe.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// New builds an orchestrator over tiers in priority order. The last tier is
// terminal.
func New(tiers []types.Tier, log *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}
	o := &Orchestrator{
		tiers:        append([]types.Tier(nil), tiers...),
		log:          log,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.status.Offline = true
	for i, t := range o.tiers {
		avail := t.Available()
		o.status.Tiers = append(o.status.Tiers, TierStatus{Name: t.Name(), Available: avail})
		if avail && i < len(o.tiers)-1 {
			o.status.Offline = false
		}
	}
	if o.status.Offline {
		log.Warn("no remote tier available, running offline")
	}
	return o, nil
}

// Status returns the startup status.
func (o *Orchestrator) Status() Status {
	st := o.status
	st.Tiers = append([]TierStatus(nil), o.status.Tiers...)
	return st
}

// Offline reports whether no remote tier initialized at startup.
func (o *Orchestrator) Offline() bool { return o.status.Offline }

// definitive reports errors that every tier would answer the same way, so
// falling through cannot help.
func definitive(err error) bool {
	return errors.Is(err, types.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, types.ErrInvalidID) ||
		errors.Is(err, types.ErrInvalidData) ||
		errors.Is(err, types.ErrInvalidModule) ||
		errors.Is(err, types.ErrInvalidKind)
}

// Execute runs fn against each available tier in order until one succeeds.
// A tier is tried at most once per call. Definitive errors are returned as
// is; a failure of the last tier is wrapped in ErrLocalStore.
func Execute[T any](ctx context.Context, o *Orchestrator, op string, fn func(ctx context.Context, t types.Tier) (T, error)) (T, error) {
	v, _, err := execute(ctx, o, op, fn)
	return v, err
}

// execute is Execute that also reports the index of the answering tier.
func execute[T any](ctx context.Context, o *Orchestrator, op string, fn func(ctx context.Context, t types.Tier) (T, error)) (T, int, error) {
	var zero T
	last := len(o.tiers) - 1
	for i, t := range o.tiers {
		name := t.Name()
		if !t.Available() {
			metrics.TierOperations.WithLabelValues(name, metrics.OutcomeSkipped).Inc()
			if i == last {
				return zero, i, fmt.Errorf("%w: %s: %s tier not available", types.ErrLocalStore, op, name)
			}
			continue
		}

		v, err := fn(ctx, t)
		if err == nil {
			metrics.TierOperations.WithLabelValues(name, metrics.OutcomeOK).Inc()
			return v, i, nil
		}
		if errors.Is(err, types.ErrNotFound) {
			metrics.TierOperations.WithLabelValues(name, metrics.OutcomeNotFound).Inc()
			return zero, i, err
		}
		if definitive(err) {
			metrics.TierOperations.WithLabelValues(name, metrics.OutcomeFailed).Inc()
			return zero, i, err
		}
		if i == last {
			o.localFailed(op, name, err)
			return zero, i, fmt.Errorf("%w: %s: %w", types.ErrLocalStore, op, err)
		}
		metrics.TierOperations.WithLabelValues(name, metrics.OutcomeFallback).Inc()
		o.log.Warn("tier failed, falling back",
			zap.String("tier", name),
			zap.String("op", op),
			zap.Error(err))
	}
	return zero, last, fmt.Errorf("%w: %s", types.ErrLocalStore, op)
}

func (o *Orchestrator) localFailed(op, name string, err error) {
	metrics.TierOperations.WithLabelValues(name, metrics.OutcomeFailed).Inc()
	o.log.Error("local store failed", zap.String("tier", name), zap.String("op", op), zap.Error(err))
}

func readOnly(t types.Tier) bool {
	ro, ok := t.(types.ReadOnlyTier)
	return ok && ro.ReadOnly()
}

// listOverlay runs a list read. When a read-only tier answers, writes made
// since have landed further down, so the terminal tier's rows are merged
// in by key, terminal rows winning, and the result is sorted by key.
func listOverlay[T any](ctx context.Context, o *Orchestrator, op string, key func(T) string, fn func(ctx context.Context, t types.Tier) ([]T, error)) ([]T, error) {
	got, i, err := execute(ctx, o, op, fn)
	last := len(o.tiers) - 1
	if err != nil || i == last || !readOnly(o.tiers[i]) {
		return got, err
	}
	local := o.tiers[last]
	if !local.Available() {
		return got, nil
	}
	own, err := fn(ctx, local)
	if err != nil {
		if definitive(err) {
			return nil, err
		}
		o.localFailed(op, local.Name(), err)
		return nil, fmt.Errorf("%w: %s: %w", types.ErrLocalStore, op, err)
	}
	if len(own) == 0 {
		return got, nil
	}

	byKey := make(map[string]T, len(got)+len(own))
	for _, v := range got {
		byKey[key(v)] = v
	}
	for _, v := range own {
		byKey[key(v)] = v
	}
	merged := make([]T, 0, len(byKey))
	for _, v := range byKey {
		merged = append(merged, v)
	}
	sort.Slice(merged, func(a, b int) bool { return key(merged[a]) < key(merged[b]) })
	return merged, nil
}

// do adapts operations without a result to Execute.
func (o *Orchestrator) do(ctx context.Context, op string, fn func(ctx context.Context, t types.Tier) error) error {
	_, err := Execute(ctx, o, op, func(ctx context.Context, t types.Tier) (struct{}, error) {
		return struct{}{}, fn(ctx, t)
	})
	return err
}

func datasetKey(d *types.Dataset) string { return d.ID }

func recordKey(r *types.Record) string { return r.ID }

// ListDatasets implements types.Backend.
func (o *Orchestrator) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	return listOverlay(ctx, o, "list_datasets", datasetKey, func(ctx context.Context, t types.Tier) ([]*types.Dataset, error) {
		return t.ListDatasets(ctx, module)
	})
}

// GetDataset implements types.Backend.
func (o *Orchestrator) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	return Execute(ctx, o, "get_dataset", func(ctx context.Context, t types.Tier) (*types.Dataset, error) {
		return t.GetDataset(ctx, id)
	})
}

// PutDataset implements types.Backend.
func (o *Orchestrator) PutDataset(ctx context.Context, d *types.Dataset) error {
	return o.do(ctx, "put_dataset", func(ctx context.Context, t types.Tier) error {
		return t.PutDataset(ctx, d)
	})
}

// DeleteDataset implements types.Backend.
func (o *Orchestrator) DeleteDataset(ctx context.Context, id string) error {
	return o.do(ctx, "delete_dataset", func(ctx context.Context, t types.Tier) error {
		return t.DeleteDataset(ctx, id)
	})
}

// ListRecords implements types.Backend.
func (o *Orchestrator) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	return listOverlay(ctx, o, "list_records", recordKey, func(ctx context.Context, t types.Tier) ([]*types.Record, error) {
		return t.ListRecords(ctx, module, datasetID)
	})
}

// GetRecord implements types.Backend.
func (o *Orchestrator) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	return Execute(ctx, o, "get_record", func(ctx context.Context, t types.Tier) (*types.Record, error) {
		return t.GetRecord(ctx, id)
	})
}

// PutRecords implements types.Backend.
func (o *Orchestrator) PutRecords(ctx context.Context, module string, recs []*types.Record) error {
	return o.do(ctx, "put_records", func(ctx context.Context, t types.Tier) error {
		return t.PutRecords(ctx, module, recs)
	})
}

// DeleteRecords implements types.Backend.
func (o *Orchestrator) DeleteRecords(ctx context.Context, ids []string) error {
	return o.do(ctx, "delete_records", func(ctx context.Context, t types.Tier) error {
		return t.DeleteRecords(ctx, ids)
	})
}

// ClearModified implements types.Backend.
func (o *Orchestrator) ClearModified(ctx context.Context, module string) (int, error) {
	return Execute(ctx, o, "clear_modified", func(ctx context.Context, t types.Tier) (int, error) {
		return t.ClearModified(ctx, module)
	})
}

// ListAux implements types.Backend.
func (o *Orchestrator) ListAux(ctx context.Context, kind types.AuxKind, filter types.AuxFilter) ([]*types.AuxEntity, error) {
	return Execute(ctx, o, "list_aux", func(ctx context.Context, t types.Tier) ([]*types.AuxEntity, error) {
		return t.ListAux(ctx, kind, filter)
	})
}

// GetAux implements types.Backend.
func (o *Orchestrator) GetAux(ctx context.Context, kind types.AuxKind, id string) (*types.AuxEntity, error) {
	return Execute(ctx, o, "get_aux", func(ctx context.Context, t types.Tier) (*types.AuxEntity, error) {
		return t.GetAux(ctx, kind, id)
	})
}

// PutAux implements types.Backend.
func (o *Orchestrator) PutAux(ctx context.Context, e *types.AuxEntity) error {
	return o.do(ctx, "put_aux", func(ctx context.Context, t types.Tier) error {
		return t.PutAux(ctx, e)
	})
}

// DeleteAux implements types.Backend.
func (o *Orchestrator) DeleteAux(ctx context.Context, kind types.AuxKind, id string) error {
	return o.do(ctx, "delete_aux", func(ctx context.Context, t types.Tier) error {
		return t.DeleteAux(ctx, kind, id)
	})
}

// ListBin implements types.Backend.
func (o *Orchestrator) ListBin(ctx context.Context) ([]*types.RecycleBinEntry, error) {
	return Execute(ctx, o, "list_bin", func(ctx context.Context, t types.Tier) ([]*types.RecycleBinEntry, error) {
		return t.ListBin(ctx)
	})
}

// GetBinEntry implements types.Backend.
func (o *Orchestrator) GetBinEntry(ctx context.Context, id string) (*types.RecycleBinEntry, error) {
	return Execute(ctx, o, "get_bin_entry", func(ctx context.Context, t types.Tier) (*types.RecycleBinEntry, error) {
		return t.GetBinEntry(ctx, id)
	})
}

// PutBinEntry implements types.Backend.
func (o *Orchestrator) PutBinEntry(ctx context.Context, e *types.RecycleBinEntry) error {
	return o.do(ctx, "put_bin_entry", func(ctx context.Context, t types.Tier) error {
		return t.PutBinEntry(ctx, e)
	})
}

// DeleteBinEntry implements types.Backend.
func (o *Orchestrator) DeleteBinEntry(ctx context.Context, id string) error {
	return o.do(ctx, "delete_bin_entry", func(ctx context.Context, t types.Tier) error {
		return t.DeleteBinEntry(ctx, id)
	})
}

// EmptyBin implements types.Backend.
func (o *Orchestrator) EmptyBin(ctx context.Context) (int, error) {
	return Execute(ctx, o, "empty_bin", func(ctx context.Context, t types.Tier) (int, error) {
		return t.EmptyBin(ctx)
	})
}
