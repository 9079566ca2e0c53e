package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griotdb/griot"
)

// RegistryRepo stores per-table capture wiring in audit.instrumented_table.
type RegistryRepo struct {
	pool *pgxpool.Pool
}

func NewRegistryRepo(pool *pgxpool.Pool) *RegistryRepo {
	return &RegistryRepo{pool: pool}
}

func (r *RegistryRepo) Upsert(ctx context.Context, tbl *griot.InstrumentedTable) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit.instrumented_table
		   (id, schema_name, table_name, relation_id, capture_rows, capture_statement_text,
		    ignored_columns, key_columns, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		 ON CONFLICT (schema_name, table_name) DO UPDATE SET
		   relation_id = EXCLUDED.relation_id,
		   capture_rows = EXCLUDED.capture_rows,
		   capture_statement_text = EXCLUDED.capture_statement_text,
		   ignored_columns = EXCLUDED.ignored_columns,
		   key_columns = EXCLUDED.key_columns,
		   active = EXCLUDED.active,
		   updated_at = now()`,
		tbl.ID, tbl.SchemaName, tbl.TableName, tbl.RelationID,
		tbl.Config.CaptureRows, tbl.Config.CaptureStatementText,
		tbl.Config.IgnoredColumns, tbl.Config.KeyColumns, tbl.Active,
	)
	if err != nil {
		return fmt.Errorf("registryRepo.Upsert: %w", err)
	}
	return nil
}

func (r *RegistryRepo) SetActive(ctx context.Context, schema, table string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE audit.instrumented_table
		 SET active = $3, updated_at = now()
		 WHERE schema_name = $1 AND table_name = $2`,
		schema, table, active,
	)
	if err != nil {
		return fmt.Errorf("registryRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registryRepo.SetActive: %s.%s: %w", schema, table, griot.ErrNotFound)
	}
	return nil
}

func (r *RegistryRepo) Delete(ctx context.Context, schema, table string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit.instrumented_table WHERE schema_name = $1 AND table_name = $2`,
		schema, table,
	)
	if err != nil {
		return fmt.Errorf("registryRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registryRepo.Delete: %s.%s: %w", schema, table, griot.ErrNotFound)
	}
	return nil
}

const instrumentedColumns = `id, schema_name, table_name, relation_id, capture_rows,
   capture_statement_text, ignored_columns, key_columns, active, created_at, updated_at`

func (r *RegistryRepo) Get(ctx context.Context, schema, table string) (*griot.InstrumentedTable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+instrumentedColumns+`
		 FROM audit.instrumented_table
		 WHERE schema_name = $1 AND table_name = $2`,
		schema, table,
	)
	tbl, err := scanInstrumented(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registryRepo.Get: %s.%s: %w", schema, table, griot.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registryRepo.Get: %w", err)
	}
	return tbl, nil
}

func (r *RegistryRepo) List(ctx context.Context) ([]*griot.InstrumentedTable, error) {
	return r.list(ctx, "registryRepo.List",
		`SELECT `+instrumentedColumns+`
		 FROM audit.instrumented_table
		 ORDER BY schema_name, table_name`)
}

func (r *RegistryRepo) ListActive(ctx context.Context) ([]*griot.InstrumentedTable, error) {
	return r.list(ctx, "registryRepo.ListActive",
		`SELECT `+instrumentedColumns+`
		 FROM audit.instrumented_table
		 WHERE active
		 ORDER BY schema_name, table_name`)
}

func (r *RegistryRepo) list(ctx context.Context, caller, query string) ([]*griot.InstrumentedTable, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	defer rows.Close()

	var tables []*griot.InstrumentedTable
	for rows.Next() {
		tbl, err := scanInstrumented(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tables = append(tables, tbl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}
	return tables, nil
}

func scanInstrumented(row pgx.Row) (*griot.InstrumentedTable, error) {
	var tbl griot.InstrumentedTable
	err := row.Scan(
		&tbl.ID, &tbl.SchemaName, &tbl.TableName, &tbl.RelationID,
		&tbl.Config.CaptureRows, &tbl.Config.CaptureStatementText,
		&tbl.Config.IgnoredColumns, &tbl.Config.KeyColumns,
		&tbl.Active, &tbl.CreatedAt, &tbl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tbl, nil
}

var _ griot.Registry = (*RegistryRepo)(nil)
