// Package gateway implements the REST gateway tier: a read-only HTTP client
// with a response cache, and the chi server that exposes the same read
// contract over any record source.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/metrics"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// TierName is the name the gateway client reports to the orchestrator.
const TierName = "gateway"

// Defaults for ClientConfig zero values.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Second
)

// maxResponseBytes bounds a single response body.
const maxResponseBytes = 64 << 20

var (
	_ types.Tier         = (*Client)(nil)
	_ types.ReadOnlyTier = (*Client)(nil)
)

// ClientConfig configures the gateway client. An empty BaseURL means not
// configured.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Client is a read-only types.Tier over the gateway's REST contract. Writes
// fail with ErrReadOnly and reads the contract lacks fail with
// ErrUnsupported, so the orchestrator falls through to the next tier.
type Client struct {
	base  *url.URL
	http  *http.Client
	cache *expirable.LRU[string, []byte]
	log   *zap.Logger
}

// NewClient builds a client for cfg. An empty or invalid BaseURL yields an
// unavailable client.
func NewClient(cfg ClientConfig, log *zap.Logger) *Client {
	c := &Client{log: log}
	if cfg.BaseURL == "" {
		return c
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		log.Warn("gateway tier unavailable", zap.String("tier", TierName), zap.String("base_url", cfg.BaseURL), zap.Error(err))
		return c
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	c.base = base
	c.http = &http.Client{Timeout: cfg.Timeout}
	c.cache = expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL)
	return c
}

// Name implements types.Tier.
func (c *Client) Name() string { return TierName }

// Available implements types.Tier.
func (c *Client) Available() bool { return c.base != nil }

// ReadOnly marks the client as a read-only tier.
func (c *Client) ReadOnly() bool { return true }

// ListDatasets fetches GET /files?module=X.
func (c *Client) ListDatasets(ctx context.Context, module string) ([]*types.Dataset, error) {
	var out []*types.Dataset
	if err := c.get(ctx, "/files", url.Values{"module": {module}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecords fetches GET /records?module=X&fileId=Y.
func (c *Client) ListRecords(ctx context.Context, module, datasetID string) ([]*types.Record, error) {
	q := url.Values{"module": {module}}
	if datasetID != "" {
		q.Set("fileId", datasetID)
	}
	var out []*types.Record
	if err := c.get(ctx, "/records", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached response.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if c.base == nil {
		return types.ErrTierUnavailable
	}
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()
	key := u.String()

	body, ok := c.cache.Get(key)
	if ok {
		metrics.GatewayCache.WithLabelValues(metrics.CacheHit).Inc()
	} else {
		metrics.GatewayCache.WithLabelValues(metrics.CacheMiss).Inc()
		var err error
		if body, err = c.fetch(ctx, key); err != nil {
			return err
		}
		c.cache.Add(key, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", types.ErrTierUnavailable, path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTierUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", types.ErrTierUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", types.ErrTierUnavailable, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// Reads outside the REST contract.

func (c *Client) GetDataset(context.Context, string) (*types.Dataset, error) {
	return nil, types.ErrUnsupported
}

func (c *Client) GetRecord(context.Context, string) (*types.Record, error) {
	return nil, types.ErrUnsupported
}

func (c *Client) ListAux(context.Context, types.AuxKind, types.AuxFilter) ([]*types.AuxEntity, error) {
	return nil, types.ErrUnsupported
}

func (c *Client) GetAux(context.Context, types.AuxKind, string) (*types.AuxEntity, error) {
	return nil, types.ErrUnsupported
}

func (c *Client) ListBin(context.Context) ([]*types.RecycleBinEntry, error) {
	return nil, types.ErrUnsupported
}

func (c *Client) GetBinEntry(context.Context, string) (*types.RecycleBinEntry, error) {
	return nil, types.ErrUnsupported
}

// Writes.

func (c *Client) PutDataset(context.Context, *types.Dataset) error { return types.ErrReadOnly }

func (c *Client) DeleteDataset(context.Context, string) error { return types.ErrReadOnly }

func (c *Client) PutRecords(context.Context, string, []*types.Record) error {
	return types.ErrReadOnly
}

func (c *Client) DeleteRecords(context.Context, []string) error { return types.ErrReadOnly }

func (c *Client) ClearModified(context.Context, string) (int, error) { return 0, types.ErrReadOnly }

func (c *Client) PutAux(context.Context, *types.AuxEntity) error { return types.ErrReadOnly }

func (c *Client) DeleteAux(context.Context, types.AuxKind, string) error { return types.ErrReadOnly }

func (c *Client) PutBinEntry(context.Context, *types.RecycleBinEntry) error { return types.ErrReadOnly }

func (c *Client) DeleteBinEntry(context.Context, string) error { return types.ErrReadOnly }

func (c *Client) EmptyBin(context.Context) (int, error) { return 0, types.ErrReadOnly }
