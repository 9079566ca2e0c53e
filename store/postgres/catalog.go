package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griotdb/griot"
)

// CatalogRepo answers the catalog questions enablement needs: relation OIDs,
// primary keys, and table discovery by name pattern.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) Relation(ctx context.Context, schema, table string) (int64, error) {
	var oid int64
	err := r.pool.QueryRow(ctx,
		`SELECT c.oid::bigint
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('r', 'p')`,
		schema, table,
	).Scan(&oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("catalogRepo.Relation: %s.%s: %w", schema, table, griot.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("catalogRepo.Relation: %w", err)
	}
	return oid, nil
}

func (r *CatalogRepo) PrimaryKey(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_class c ON c.oid = i.indrelid
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY (i.indkey)
		 WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
		 ORDER BY array_position(i.indkey, a.attnum)`,
		schema, table,
	)
	if err != nil {
		return nil, fmt.Errorf("catalogRepo.PrimaryKey: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("catalogRepo.PrimaryKey: scan: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogRepo.PrimaryKey: rows: %w", err)
	}
	return cols, nil
}

func (r *CatalogRepo) TablesMatching(ctx context.Context, schema, pattern string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tablename FROM pg_tables
		 WHERE schemaname = $1 AND tablename LIKE $2
		 ORDER BY tablename`,
		schema, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("catalogRepo.TablesMatching: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("catalogRepo.TablesMatching: scan: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogRepo.TablesMatching: rows: %w", err)
	}
	return tables, nil
}

var _ griot.Introspector = (*CatalogRepo)(nil)
