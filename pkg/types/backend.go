package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend is the read/write contract every persistence tier implements.
// The orchestrator also implements it, routing each call through the tiers.
//
// Get methods return ErrNotFound when the entity does not exist. Writes are
// upserts keyed by ID: last write wins.
type Backend interface {
	ListDatasets(ctx context.Context, module string) ([]*Dataset, error)
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	PutDataset(ctx context.Context, d *Dataset) error
	DeleteDataset(ctx context.Context, id string) error

	// ListRecords returns the records of module, optionally scoped to one
	// dataset when datasetID is non-empty. Order is unspecified.
	ListRecords(ctx context.Context, module, datasetID string) ([]*Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	PutRecords(ctx context.Context, module string, recs []*Record) error
	DeleteRecords(ctx context.Context, ids []string) error
	// ClearModified resets IsModified and IsHighlighted on every record of
	// module in one bulk operation and returns how many rows changed.
	ClearModified(ctx context.Context, module string) (int, error)

	ListAux(ctx context.Context, kind AuxKind, filter AuxFilter) ([]*AuxEntity, error)
	GetAux(ctx context.Context, kind AuxKind, id string) (*AuxEntity, error)
	PutAux(ctx context.Context, e *AuxEntity) error
	DeleteAux(ctx context.Context, kind AuxKind, id string) error

	ListBin(ctx context.Context) ([]*RecycleBinEntry, error)
	GetBinEntry(ctx context.Context, id string) (*RecycleBinEntry, error)
	PutBinEntry(ctx context.Context, e *RecycleBinEntry) error
	DeleteBinEntry(ctx context.Context, id string) error
	EmptyBin(ctx context.Context) (int, error)
}

// Tier is one candidate backing store in the fallback order.
type Tier interface {
	Backend

	// Name identifies the tier in logs and metrics.
	Name() string

	// Available is a static, cheap check that the tier is configured and
	// initialized. It never touches the network.
	Available() bool
}

// ReadOnlyTier is implemented by tiers that serve reads but reject every
// write. Writes pass them by, so their list results are overlaid with the
// terminal tier's rows.
type ReadOnlyTier interface {
	ReadOnly() bool
}

// Change describes a change notification for one module.
type Change struct {
	Module string
	Tier   string
}

// Subscription is a handle to a running change listener.
type Subscription interface {
	// Cancel stops the listener. No callback runs after Cancel returns.
	// Idempotent. Must not be called synchronously from the callback.
	Cancel()
}

// Watcher is implemented by tiers with native change push.
type Watcher interface {
	Watch(ctx context.Context, module string, fn func(Change)) (Subscription, error)
}

// Tier errors. ErrTierUnavailable, ErrReadOnly and ErrUnsupported make the
// orchestrator fall through to the next tier; ErrLocalStore is terminal.
var (
	ErrTierUnavailable = errors.New("tier unavailable")
	ErrReadOnly        = errors.New("tier is read-only")
	ErrUnsupported     = errors.New("operation not supported by tier")
	ErrLocalStore      = errors.New("local store failure")
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Entity errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidModule = errors.New("invalid module")
	ErrInvalidKind   = errors.New("invalid entity kind")
	ErrInvalidColumn = errors.New("invalid column name")
)

// Ingestion errors.
var (
	ErrEmptySheet        = errors.New("sheet is empty")
	ErrNoHeaders         = errors.New("no usable header row")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ErrPartialBatch is matched by *BatchError.
var ErrPartialBatch = errors.New("partial batch failure")

// ChunkError is one failed chunk of a batched write.
type ChunkError struct {
	Index int // zero-based chunk index
	Size  int // records in the chunk
	Err   error
}

// BatchError reports the chunks of a batched write that failed. Chunks not
// listed were committed and stay committed.
type BatchError struct {
	Chunks    int
	Committed int // records committed
	Failed    []ChunkError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("chunk %d (%d records): %v", f.Index, f.Size, f.Err))
	}
	return fmt.Sprintf("%d of %d chunks failed: %s", len(e.Failed), e.Chunks, strings.Join(parts, "; "))
}

// Is matches ErrPartialBatch.
func (e *BatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

// Unwrap exposes the chunk causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}
