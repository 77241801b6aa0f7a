package tiertest

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Faulty wraps a tier and injects failures. After Fail(err) every call
// fails with err; PutRecordsHook can fail individual record writes by call
// number, starting at 1.
type Faulty struct {
	Inner    types.Tier
	TierName string
	Down     bool

	mu             sync.Mutex
	err            error
	calls          map[string]int
	putRecordsCall int
	PutRecordsHook func(call int, module string, recs []*types.Record) error
}

// NewFaulty wraps inner under name.
func NewFaulty(name string, inner types.Tier) *Faulty {
	return &Faulty{Inner: inner, TierName: name, calls: make(map[string]int)}
}

// Fail makes every following call return err; nil heals the tier.
func (f *Faulty) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times op was invoked.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *Faulty) Name() string { return f.TierName }
func (f *Faulty) Available() bool { return !f.Down && f.Inner.Available() }

// ReadOnly reports whether the wrapped tier is read-only.
func (f *Faulty) ReadOnly() bool {
	ro, ok := f.Inner.(types.ReadOnlyTier)
	return ok && ro.ReadOnly()
}

func (f *Faulty) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	if err := f.enter("ListDatasets"); err != nil {
		return nil, err
	}
	return f.Inner.ListDatasets(ctx, module)
}

func (f *Faulty) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	if err := f.enter("GetDataset"); err != nil {
		return nil, err
	}
	return f.Inner.GetDataset(ctx, id)
}

func (f *Faulty) PutDataset(ctx context.Context, d *types.Dataset) error {
	if err := f.enter("PutDataset"); err != nil {
		return err
	}
	return f.Inner.PutDataset(ctx, d)
}

func (f *Faulty) DeleteDataset(ctx context.Context, id string) error {
	if err := f.enter("DeleteDataset"); err != nil {
		return err
	}
	return f.Inner.DeleteDataset(ctx, id)
}

func (f *Faulty) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	if err := f.enter("ListRecords"); err != nil {
		return nil, err
	}
	return f.Inner.ListRecords(ctx, module, datasetID)
}

func (f *Faulty) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	if err := f.enter("GetRecord"); err != nil {
		return nil, err
	}
	return f.Inner.GetRecord(ctx, id)
}

func (f *Faulty) PutRecords(ctx context.Context, module string, recs []*types.Record) error {
	if err := f.enter("PutRecords"); err != nil {
		return err
	}
	f.mu.Lock()
	f.putRecordsCall++
	call := f.putRecordsCall
	hook := f.PutRecordsHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(call, module, recs); err != nil {
			return err
		}
	}
	return f.Inner.PutRecords(ctx, module, recs)
}

func (f *Faulty) DeleteRecords(ctx context.Context, ids []string) error {
	if err := f.enter("DeleteRecords"); err != nil {
		return err
	}
	return f.Inner.DeleteRecords(ctx, ids)
}

func (f *Faulty) ClearModified(ctx context.Context, module string) (int, error) {
	if err := f.enter("ClearModified"); err != nil {
		return 0, err
	}
	return f.Inner.ClearModified(ctx, module)
}

func (f *Faulty) ListAux(ctx context.Context, kind types.AuxKind, filter types.AuxFilter) ([]*types.AuxEntity, error) {
	if err := f.enter("ListAux"); err != nil {
		return nil, err
	}
	return f.Inner.ListAux(ctx, kind, filter)
}

func (f *Faulty) GetAux(ctx context.Context, kind types.AuxKind, id string) (*types.AuxEntity, error) {
	if err := f.enter("GetAux"); err != nil {
		return nil, err
	}
	return f.Inner.GetAux(ctx, kind, id)
}

func (f *Faulty) PutAux(ctx context.Context, e *types.AuxEntity) error {
	if err := f.enter("PutAux"); err != nil {
		return err
	}
	return f.Inner.PutAux(ctx, e)
}

func (f *Faulty) DeleteAux(ctx context.Context, kind types.AuxKind, id string) error {
	if err := f.enter("DeleteAux"); err != nil {
		return err
	}
	return f.Inner.DeleteAux(ctx, kind, id)
}

func (f *Faulty) ListBin(ctx context.Context) ([]*types.RecycleBinEntry, error) {
	if err := f.enter("ListBin"); err != nil {
		return nil, err
	}
	return f.Inner.ListBin(ctx)
}

func (f *Faulty) GetBinEntry(ctx context.Context, id string) (*types.RecycleBinEntry, error) {
	if err := f.enter("GetBinEntry"); err != nil {
		return nil, err
	}
	return f.Inner.GetBinEntry(ctx, id)
}

func (f *Faulty) PutBinEntry(ctx context.Context, e *types.RecycleBinEntry) error {
	if err := f.enter("PutBinEntry"); err != nil {
		return err
	}
	return f.Inner.PutBinEntry(ctx, e)
}

func (f *Faulty) DeleteBinEntry(ctx context.Context, id string) error {
	if err := f.enter("DeleteBinEntry"); err != nil {
		return err
	}
	return f.Inner.DeleteBinEntry(ctx, id)
}

func (f *Faulty) EmptyBin(ctx context.Context) (int, error) {
	if err := f.enter("EmptyBin"); err != nil {
		return 0, err
	}
	return f.Inner.EmptyBin(ctx)
}
