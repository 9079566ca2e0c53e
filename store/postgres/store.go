// Package postgres implements griot's storage over a pgx connection pool:
// the history partitions, the instrumented-table registry, catalog
// introspection, and partition/index maintenance.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griotdb/griot"
)

type Store struct {
	pool     *pgxpool.Pool
	registry *RegistryRepo
	catalog  *CatalogRepo
	history  *HistoryRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		registry: NewRegistryRepo(pool),
		catalog:  NewCatalogRepo(pool),
		history:  NewHistoryRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Registry() griot.Registry { return s.registry }

func (s *Store) Introspector() griot.Introspector { return s.catalog }

func (s *Store) Records() griot.Reader { return s.history }

// AppenderFor binds a history appender to one transaction, so captured
// records commit and roll back with the mutations that produced them.
func (s *Store) AppenderFor(tx pgx.Tx) griot.Appender {
	return NewTxAppender(tx)
}

// NewEngine wires a capture engine over the store's registry and per-tx
// appenders.
func NewEngine(ctx context.Context, st *Store, opts griot.Options) (*griot.Engine, error) {
	if opts.AppenderFor == nil {
		opts.AppenderFor = st.AppenderFor
	}
	return griot.NewEngine(ctx, st.Registry(), opts)
}
