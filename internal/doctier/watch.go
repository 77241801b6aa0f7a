package doctier

import (
	"context"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Watch subscribes to change notifications for module. fn runs on the
// subscription's goroutine, one call per published change.
func (t *Tier) Watch(ctx context.Context, module string, fn func(types.Change)) (types.Subscription, error) {
	c, err := t.conn()
	if err != nil {
		return nil, err
	}
	ps := c.Subscribe(ctx, t.keys.changes(module))
	// Wait for the confirmation so no change published after Watch returns
	// is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", module, err)
	}
	sub := &subscription{ps: ps, done: make(chan struct{})}
	go sub.run(module, fn)
	return sub, nil
}

type subscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

func (s *subscription) run(module string, fn func(types.Change)) {
	defer close(s.done)
	for msg := range s.ps.Channel() {
		if msg == nil {
			continue
		}
		fn(types.Change{Module: module, Tier: msg.Payload})
	}
}

// Cancel closes the pub/sub connection and waits for the listener to exit.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.ps.Close()
	})
	<-s.done
}
