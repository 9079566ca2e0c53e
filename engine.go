package griot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Options configure an Engine.
type Options struct {
	// AppenderFor builds the history appender bound to one transaction, so
	// records commit and roll back with the mutations that produced them.
	// Required; store/postgres provides the production implementation.
	AppenderFor func(tx pgx.Tx) Appender
	// Clock defaults to RealClock.
	Clock Clock
	// Observer receives capture outcomes; nil disables instrumentation.
	Observer Observer
}

// Engine holds the instrumented-table catalog and wraps transactions for
// capture. The catalog is a startup-time snapshot of the registry's active
// wiring, not runtime name guessing. Call Reload after changing enablement.
type Engine struct {
	registry    Registry
	appenderFor func(tx pgx.Tx) Appender
	clock       Clock
	obs         Observer

	mu      sync.RWMutex
	catalog map[string]*InstrumentedTable
}

// NewEngine loads the active wiring snapshot and returns an engine.
func NewEngine(ctx context.Context, registry Registry, opts Options) (*Engine, error) {
	if opts.AppenderFor == nil {
		return nil, errors.New("griot: Options.AppenderFor is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	e := &Engine{
		registry:    registry,
		appenderFor: opts.AppenderFor,
		clock:       clock,
		obs:         opts.Observer,
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload replaces the catalog snapshot with the registry's current active
// wiring.
func (e *Engine) Reload(ctx context.Context) error {
	tables, err := e.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("engine.Reload: %w", err)
	}
	catalog := make(map[string]*InstrumentedTable, len(tables))
	for _, tbl := range tables {
		catalog[tbl.Qualified()] = tbl
	}
	e.mu.Lock()
	e.catalog = catalog
	e.mu.Unlock()
	return nil
}

// lookup resolves a parsed statement target against the catalog. Unqualified
// names resolve against public, matching the common search_path; deployments
// with exotic search paths should qualify their statements.
func (e *Engine) lookup(schema, table string) *InstrumentedTable {
	if schema == "" {
		schema = "public"
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog[schema+"."+table]
}

const sessionMetaSQL = `SELECT txid_current(),
       session_user,
       coalesce(current_setting('application_name', true), ''),
       coalesce(inet_client_addr()::text, ''),
       coalesce(inet_client_port(), 0)`

// WrapTx returns tx wrapped for capture. Every recognized mutation of an
// instrumented table through the wrapper is recorded in the same transaction.
// Wrap immediately after Begin: the wrap time is recorded as the transaction
// time of every captured record.
func (e *Engine) WrapTx(ctx context.Context, tx pgx.Tx) (pgx.Tx, error) {
	var (
		txid        int64
		sessionUser string
		client      ClientContext
	)
	err := tx.QueryRow(ctx, sessionMetaSQL).Scan(
		&txid, &sessionUser, &client.ApplicationName, &client.ClientAddr, &client.ClientPort,
	)
	if err != nil {
		return nil, fmt.Errorf("engine.WrapTx: session metadata: %w", err)
	}
	return &auditedTx{
		inner:       tx,
		eng:         e,
		hook:        NewHook(e.appenderFor(tx), e.clock, e.obs),
		txTime:      e.clock.Now(),
		txid:        txid,
		sessionUser: sessionUser,
		client:      client,
	}, nil
}

// resolveActor prefers the application principal from ctx; the session user
// is the fallback for direct connections.
func (e *Engine) resolveActor(ctx context.Context, sessionUser string) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return sessionUser
}

func (e *Engine) observeLatency(start time.Time) {
	if e.obs != nil {
		e.obs.CaptureLatency(e.clock.Now().Sub(start))
	}
}
