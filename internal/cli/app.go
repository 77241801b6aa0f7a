package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/clock"
	"github.com/mesh-intelligence/landrecords/internal/doctier"
	"github.com/mesh-intelligence/landrecords/internal/gateway"
	"github.com/mesh-intelligence/landrecords/internal/orchestrator"
	"github.com/mesh-intelligence/landrecords/internal/records"
	"github.com/mesh-intelligence/landrecords/internal/recyclebin"
	"github.com/mesh-intelligence/landrecords/internal/sqlite"
	"github.com/mesh-intelligence/landrecords/internal/sqltier"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// app is the wired persistence stack for one command.
type app struct {
	log     *zap.Logger
	clock   clock.Clock
	local   *sqlite.Store
	sql     *sqltier.Tier
	doc     *doctier.Tier
	gateway *gateway.Client
	orch    *orchestrator.Orchestrator
	records *records.Store
	bin     *recyclebin.Manager
}

// openLocal attaches only the local store.
func (e *env) openLocal() (*sqlite.Store, error) {
	dataDir, err := e.resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	s, err := sqlite.Open(types.StoreConfig{DataDir: dataDir})
	if err != nil {
		return nil, fmt.Errorf("attaching local store: %w", err)
	}
	return s, nil
}

// openApp connects every configured tier in priority order: SQL, document,
// gateway, local. Unreachable remote tiers are logged and skipped.
func (e *env) openApp(ctx context.Context) (*app, error) {
	local, err := e.openLocal()
	if err != nil {
		return nil, err
	}
	cfg := e.cfg
	a := &app{
		log:   e.log,
		clock: clock.System{},
		local: local,
		sql:   sqltier.Connect(cfg.SQL.DSN, e.log),
		doc: doctier.Connect(ctx, doctier.Options{
			Addr:     cfg.Document.Addr,
			Password: cfg.Document.Password,
			DB:       cfg.Document.DB,
			Prefix:   cfg.Document.Prefix,
		}, e.log),
		gateway: gateway.NewClient(gateway.ClientConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			Timeout:   cfg.Gateway.Timeout,
			CacheSize: cfg.Gateway.CacheSize,
			CacheTTL:  cfg.Gateway.CacheTTL,
		}, e.log),
	}

	tiers := []types.Tier{a.sql, a.doc, a.gateway, a.local}
	a.orch, err = orchestrator.New(tiers, e.log, orchestrator.WithPollInterval(cfg.Watch.PollInterval))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.records = records.New(a.orch, a.clock, e.log,
		records.WithChunkSize(cfg.Batch.ChunkSize),
		records.WithConcurrency(cfg.Batch.Concurrency))
	a.bin = recyclebin.New(a.orch, a.clock, e.log)
	return a, nil
}

// Close releases every tier connection.
func (a *app) Close() error {
	return errors.Join(a.sql.Close(), a.doc.Close(), a.local.Detach())
}
