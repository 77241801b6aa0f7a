package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// PollTier is the Change.Tier value reported by polled subscriptions.
const PollTier = "poll"

// Subscribe calls fn whenever module changes. The first available tier is
// watched natively when it supports push; otherwise the orchestrator polls
// the module's datasets and records every poll interval and reports a
// change when their content fingerprint moves.
//
// fn runs on the subscription goroutine. Cancel must not be called from fn.
func (o *Orchestrator) Subscribe(ctx context.Context, module string, fn func(types.Change)) (types.Subscription, error) {
	if err := types.ValidateModule(module); err != nil {
		return nil, err
	}
	for _, t := range o.tiers {
		if !t.Available() {
			continue
		}
		if w, ok := t.(types.Watcher); ok {
			sub, err := w.Watch(ctx, module, fn)
			if err == nil {
				return sub, nil
			}
			o.log.Warn("native watch failed, polling instead",
				zap.String("tier", t.Name()), zap.String("module", module), zap.Error(err))
		}
		break
	}
	return o.poll(ctx, module, fn), nil
}

type pollSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the poll loop and waits for it to exit.
func (s *pollSubscription) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

func (o *Orchestrator) poll(ctx context.Context, module string, fn func(types.Change)) *pollSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		last, _ := o.fingerprint(ctx, module)
		ticker := time.NewTicker(o.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			fp, err := o.fingerprint(ctx, module)
			if err != nil {
				if ctx.Err() == nil {
					o.log.Warn("change poll failed", zap.String("module", module), zap.Error(err))
				}
				continue
			}
			if fp == last {
				continue
			}
			last = fp
			if ctx.Err() != nil {
				return
			}
			fn(types.Change{Module: module, Tier: PollTier})
		}
	}()
	return sub
}

// fingerprint hashes the module's datasets and records as read through the
// fallback chain.
func (o *Orchestrator) fingerprint(ctx context.Context, module string) ([sha256.Size]byte, error) {
	datasets, err := o.ListDatasets(ctx, module)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	recs, err := o.ListRecords(ctx, module, "")
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })
	types.SortRecords(recs)
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(datasets); err != nil {
		return [sha256.Size]byte{}, err
	}
	if err := enc.Encode(recs); err != nil {
		return [sha256.Size]byte{}, err
	}
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
