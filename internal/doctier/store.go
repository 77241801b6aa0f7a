package doctier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// emptyBinScript deletes every bin document and the index atomically and
// returns how many entries were removed.
const emptyBinScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
for _, id in ipairs(ids) do
  redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return #ids
`

// getDoc returns ErrNotFound for a missing key.
func getDoc(ctx context.Context, c *redis.Client, key string) (string, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", types.ErrNotFound
	}
	return raw, err
}

// loadDocs fetches keys in one MGET, skipping entries that vanished between
// the index read and the fetch.
func loadDocs(ctx context.Context, c *redis.Client, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListDatasets implements types.Backend.
func (t *Tier) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	ids, err := c.SMembers(ctx, t.keys.moduleDatasets(module)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.keys.dataset(id)
	}
	docs, err := loadDocs(ctx, c, keys)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	out := make([]*types.Dataset, 0, len(docs))
	for _, raw := range docs {
		d, err := decode[types.Dataset](raw, "dataset")
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetDataset implements types.Backend.
func (t *Tier) GetDataset(ctx context.Context, id string) (*types.Dataset, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	raw, err := getDoc(ctx, c, t.keys.dataset(id))
	if err != nil {
		return nil, err
	}
	return decode[types.Dataset](raw, "dataset")
}

// PutDataset implements types.Backend.
func (t *Tier) PutDataset(ctx context.Context, d *types.Dataset) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding dataset %s: %w", d.ID, err)
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, t.keys.dataset(d.ID), body, 0)
		p.SAdd(ctx, t.keys.moduleDatasets(d.Module), d.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing dataset %s: %w", d.ID, err)
	}
	t.publish(ctx, d.Module)
	return nil
}

// DeleteDataset implements types.Backend.
func (t *Tier) DeleteDataset(ctx context.Context, id string) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	d, err := t.GetDataset(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, t.keys.dataset(id))
		p.SRem(ctx, t.keys.moduleDatasets(d.Module), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting dataset %s: %w", id, err)
	}
	t.publish(ctx, d.Module)
	return nil
}

// ListRecords implements types.Backend.
func (t *Tier) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	index := t.keys.moduleRecords(module)
	if datasetID != "" {
		index = t.keys.fileRecords(module, datasetID)
	}
	ids, err := c.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.keys.record(id)
	}
	docs, err := loadDocs(ctx, c, keys)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	out := make([]*types.Record, 0, len(docs))
	for _, raw := range docs {
		r, err := decode[types.Record](raw, "record")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRecord implements types.Backend.
func (t *Tier) GetRecord(ctx context.Context, id string) (*types.Record, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	raw, err := getDoc(ctx, c, t.keys.record(id))
	if err != nil {
		return nil, err
	}
	return decode[types.Record](raw, "record")
}

// PutRecords writes every document and its index entries in one MULTI. A
// record that moved to another dataset is dropped from its old index.
func (t *Tier) PutRecords(ctx context.Context, module string, recs []*types.Record) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	if err := types.ValidateModule(module); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	bodies := make([][]byte, len(recs))
	keys := make([]string, len(recs))
	for i, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.Module != module {
			return fmt.Errorf("%w: record %s belongs to %s, not %s", types.ErrInvalidData, r.ID, r.Module, module)
		}
		if bodies[i], err = json.Marshal(r); err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		keys[i] = t.keys.record(r.ID)
	}

	prev, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("reading stored records: %w", err)
	}

	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, r := range recs {
			if s, ok := prev[i].(string); ok {
				if old, err := decode[types.Record](s, "record"); err == nil && old.FileID != r.FileID {
					p.SRem(ctx, t.keys.fileRecords(old.Module, old.FileID), r.ID)
				}
			}
			p.Set(ctx, keys[i], bodies[i], 0)
			p.SAdd(ctx, t.keys.moduleRecords(module), r.ID)
			p.SAdd(ctx, t.keys.fileRecords(module, r.FileID), r.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	t.publish(ctx, module)
	return nil
}

// DeleteRecords implements types.Backend.
func (t *Tier) DeleteRecords(ctx context.Context, ids []string) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.keys.record(id)
	}
	docs, err := loadDocs(ctx, c, keys)
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}
	modules := make(map[string]bool)
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, raw := range docs {
			r, err := decode[types.Record](raw, "record")
			if err != nil {
				return err
			}
			p.Del(ctx, t.keys.record(r.ID))
			p.SRem(ctx, t.keys.moduleRecords(r.Module), r.ID)
			p.SRem(ctx, t.keys.fileRecords(r.Module, r.FileID), r.ID)
			modules[r.Module] = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	for m := range modules {
		t.publish(ctx, m)
	}
	return nil
}

// ClearModified fetches the module's documents in one MGET and rewrites only
// the flagged ones in one pipeline.
func (t *Tier) ClearModified(ctx context.Context, module string) (int, error) {
	recs, err := t.ListRecords(ctx, module, "")
	if err != nil {
		return 0, err
	}
	var changed []*types.Record
	for _, r := range recs {
		if r.IsModified || r.IsHighlighted {
			r.Acknowledge()
			changed = append(changed, r)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, r := range changed {
			body, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", r.ID, err)
			}
			p.Set(ctx, t.keys.record(r.ID), body, 0)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clearing modified flags: %w", err)
	}
	t.publish(ctx, module)
	return len(changed), nil
}

// ListAux implements types.Backend. Filters are applied after the fetch.
func (t *Tier) ListAux(ctx context.Context, kind types.AuxKind, filter types.AuxFilter) ([]*types.AuxEntity, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	ids, err := c.SMembers(ctx, t.keys.auxIndex(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.keys.aux(kind, id)
	}
	docs, err := loadDocs(ctx, c, keys)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	var out []*types.AuxEntity
	for _, raw := range docs {
		e, err := decode[types.AuxEntity](raw, string(kind))
		if err != nil {
			return nil, err
		}
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAux implements types.Backend.
func (t *Tier) GetAux(ctx context.Context, kind types.AuxKind, id string) (*types.AuxEntity, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidKind, kind)
	}
	raw, err := getDoc(ctx, c, t.keys.aux(kind, id))
	if err != nil {
		return nil, err
	}
	return decode[types.AuxEntity](raw, string(kind))
}

// PutAux implements types.Backend. An empty id is replaced with a UUID v7.
func (t *Tier) PutAux(ctx context.Context, e *types.AuxEntity) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidKind, e.Kind)
	}
	if e.ID == "" {
		e.ID = newID()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", e.Kind, e.ID, err)
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, t.keys.aux(e.Kind, e.ID), body, 0)
		p.SAdd(ctx, t.keys.auxIndex(e.Kind), e.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s %s: %w", e.Kind, e.ID, err)
	}
	t.publish(ctx, e.Module)
	return nil
}

// DeleteAux implements types.Backend.
func (t *Tier) DeleteAux(ctx context.Context, kind types.AuxKind, id string) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, t.keys.aux(kind, id))
		p.SRem(ctx, t.keys.auxIndex(kind), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	return nil
}

// ListBin implements types.Backend.
func (t *Tier) ListBin(ctx context.Context) ([]*types.RecycleBinEntry, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	ids, err := c.SMembers(ctx, t.keys.binIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recycle bin: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.keys.bin(id)
	}
	docs, err := loadDocs(ctx, c, keys)
	if err != nil {
		return nil, fmt.Errorf("listing recycle bin: %w", err)
	}
	out := make([]*types.RecycleBinEntry, 0, len(docs))
	for _, raw := range docs {
		e, err := decode[types.RecycleBinEntry](raw, "bin entry")
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	types.SortBinEntries(out)
	return out, nil
}

// GetBinEntry implements types.Backend.
func (t *Tier) GetBinEntry(ctx context.Context, id string) (*types.RecycleBinEntry, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	raw, err := getDoc(ctx, c, t.keys.bin(id))
	if err != nil {
		return nil, err
	}
	return decode[types.RecycleBinEntry](raw, "bin entry")
}

// PutBinEntry implements types.Backend. An empty id is replaced with a
// UUID v7.
func (t *Tier) PutBinEntry(ctx context.Context, e *types.RecycleBinEntry) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding bin entry %s: %w", e.ID, err)
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, t.keys.bin(e.ID), body, 0)
		p.SAdd(ctx, t.keys.binIndex(), e.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing bin entry %s: %w", e.ID, err)
	}
	return nil
}

// DeleteBinEntry implements types.Backend.
func (t *Tier) DeleteBinEntry(ctx context.Context, id string) error {
	c, err := t.conn()
	if err != nil {
		return err
	}
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, t.keys.bin(id))
		p.SRem(ctx, t.keys.binIndex(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting bin entry %s: %w", id, err)
	}
	return nil
}

// EmptyBin implements types.Backend.
func (t *Tier) EmptyBin(ctx context.Context) (int, error) {
	c, err := t.conn()
	if err != nil {
		return 0, err
	}
	n, err := t.emptyBin.Run(ctx, c, []string{t.keys.binIndex()}, t.keys.bin("")).Int()
	if err != nil {
		return 0, fmt.Errorf("emptying recycle bin: %w", err)
	}
	return n, nil
}
