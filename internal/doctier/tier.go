// Package doctier implements the remote document tier on Redis: one JSON
// document per entity keyed by id, set indexes for the scans the core needs,
// and change notifications over pub/sub.
package doctier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// TierName is the name the document tier reports to the orchestrator.
const TierName = "document"

// DefaultPrefix namespaces every key when Options.Prefix is empty.
const DefaultPrefix = "landrecords"

var (
	_ types.Tier    = (*Tier)(nil)
	_ types.Watcher = (*Tier)(nil)
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Tier is a types.Tier and types.Watcher on Redis.
type Tier struct {
	client *redis.Client
	keys   keyspace
	log    *zap.Logger

	emptyBin *redis.Script
}

// New wraps an existing client. A nil client yields an unavailable tier.
func New(client *redis.Client, prefix string, log *zap.Logger) *Tier {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Tier{
		client:   client,
		keys:     keyspace(prefix),
		log:      log,
		emptyBin: redis.NewScript(emptyBinScript),
	}
}

// Connect dials opts.Addr and pings once. An empty address means not
// configured; a failed ping is logged. In both cases the tier is unavailable.
func Connect(ctx context.Context, opts Options, log *zap.Logger) *Tier {
	if opts.Addr == "" {
		return New(nil, opts.Prefix, log)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("document tier unavailable", zap.String("tier", TierName), zap.String("addr", opts.Addr), zap.Error(err))
		client.Close()
		return New(nil, opts.Prefix, log)
	}
	return New(client, opts.Prefix, log)
}

// Name implements types.Tier.
func (t *Tier) Name() string { return TierName }

// Available implements types.Tier.
func (t *Tier) Available() bool { return t.client != nil }

// Close closes the client.
func (t *Tier) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *Tier) conn() (*redis.Client, error) {
	if t.client == nil {
		return nil, types.ErrTierUnavailable
	}
	return t.client, nil
}

// keyspace builds every key from one prefix.
type keyspace string

func (k keyspace) record(id string) string { return string(k) + ":record:" + id }
func (k keyspace) moduleRecords(module string) string { return string(k) + ":records:" + module }
func (k keyspace) fileRecords(module, fileID string) string {
	return string(k) + ":records:" + module + ":file:" + fileID
}
func (k keyspace) dataset(id string) string { return string(k) + ":dataset:" + id }
func (k keyspace) moduleDatasets(module string) string { return string(k) + ":datasets:" + module }
func (k keyspace) aux(kind types.AuxKind, id string) string {
	return string(k) + ":aux:" + string(kind) + ":" + id
}
func (k keyspace) auxIndex(kind types.AuxKind) string { return string(k) + ":aux:" + string(kind) }
func (k keyspace) bin(id string) string { return string(k) + ":bin:" + id }
func (k keyspace) binIndex() string { return string(k) + ":bin" }
func (k keyspace) changes(module string) string { return string(k) + ":changes:" + module }

// publish announces a change to module. Notification failures are logged
// and never fail the write.
func (t *Tier) publish(ctx context.Context, module string) {
	if module == "" {
		return
	}
	if err := t.client.Publish(ctx, t.keys.changes(module), TierName).Err(); err != nil {
		t.log.Warn("publishing change", zap.String("module", module), zap.Error(err))
	}
}

func decode[T any](raw string, what string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", what, err)
	}
	return &v, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
