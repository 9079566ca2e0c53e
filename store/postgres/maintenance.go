package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griotdb/griot"
)

// MaintenanceOptions configure index provisioning.
type MaintenanceOptions struct {
	// HotKeys are row_image keys that get expression indexes on every
	// partition, for deployments that query history by a known foreign key.
	HotKeys []string
	// IndexTimeZone fixes the zone for the calendar-date index over
	// statement_time. Defaults to UTC.
	IndexTimeZone string
}

// Maintenance owns the history schema's moving parts: monthly partitions and
// their index catalog. Every operation is idempotent and tolerates losing a
// creation race; "already exists" counts as success.
type Maintenance struct {
	pool    *pgxpool.Pool
	hotKeys []string
	indexTZ string
}

func NewMaintenance(pool *pgxpool.Pool, opts MaintenanceOptions) *Maintenance {
	tz := opts.IndexTimeZone
	if tz == "" {
		tz = "UTC"
	}
	return &Maintenance{pool: pool, hotKeys: opts.HotKeys, indexTZ: tz}
}

// EnsurePartitions creates any missing monthly partitions for a year,
// returning how many it created. Existing partitions and their records are
// untouched; re-running is a no-op.
func (m *Maintenance) EnsurePartitions(ctx context.Context, year int) (int, error) {
	created := 0
	for month := time.January; month <= time.December; month++ {
		key := griot.KeyOf(year, month)
		madeTable, err := m.ensurePartition(ctx, key)
		if err != nil {
			return created, fmt.Errorf("maintenance.EnsurePartitions: %s: %w", key, err)
		}
		if madeTable {
			created++
		}
	}
	return created, nil
}

func (m *Maintenance) ensurePartition(ctx context.Context, key griot.PartitionKey) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, partitionTable(key)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table: %w", err)
	}

	created := false
	if !exists {
		if _, err := m.pool.Exec(ctx, partitionDDL(key)); err != nil && !duplicateObject(err) {
			return false, fmt.Errorf("create table: %w", err)
		} else if err == nil {
			created = true
		}
	}

	var hasConstraint bool
	err = m.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM pg_constraint
		   WHERE conrelid = $1::regclass AND conname = $2
		 )`,
		partitionTable(key), rangeConstraintName(key),
	).Scan(&hasConstraint)
	if err != nil {
		return created, fmt.Errorf("check constraint: %w", err)
	}
	if !hasConstraint {
		if _, err := m.pool.Exec(ctx, rangeConstraintDDL(key)); err != nil && !duplicateObject(err) {
			return created, fmt.Errorf("add constraint: %w", err)
		}
	}
	return created, nil
}

// ProvisionIndexes walks every existing partition and creates any missing
// index from the catalog, returning how many it created. Safe on partitions
// with no rows; safe to re-run.
func (m *Maintenance) ProvisionIndexes(ctx context.Context) (int, error) {
	partitions, err := m.ListPartitions(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, partition := range partitions {
		for _, spec := range indexCatalog(partition, m.hotKeys, m.indexTZ) {
			var exists bool
			err := m.pool.QueryRow(ctx,
				`SELECT EXISTS (
				   SELECT 1 FROM pg_indexes
				   WHERE schemaname = 'audit' AND tablename = $1 AND indexname = $2
				 )`,
				partition, spec.name,
			).Scan(&exists)
			if err != nil {
				return created, fmt.Errorf("maintenance.ProvisionIndexes: check %s: %w", spec.name, err)
			}
			if exists {
				continue
			}
			if _, err := m.pool.Exec(ctx, spec.ddl); err != nil {
				if duplicateObject(err) {
					continue
				}
				return created, fmt.Errorf("maintenance.ProvisionIndexes: create %s: %w", spec.name, err)
			}
			created++
		}
	}
	return created, nil
}

// ListPartitions names the existing partitions, oldest first.
func (m *Maintenance) ListPartitions(ctx context.Context) ([]string, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT c.relname
		 FROM pg_inherits i
		 JOIN pg_class c ON c.oid = i.inhrelid
		 WHERE i.inhparent = 'audit.record'::regclass
		 ORDER BY c.relname`)
	if err != nil {
		return nil, fmt.Errorf("maintenance.ListPartitions: %w", err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("maintenance.ListPartitions: scan: %w", err)
		}
		partitions = append(partitions, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("maintenance.ListPartitions: rows: %w", err)
	}
	return partitions, nil
}

// duplicateObject reports a lost creation race: someone else made the table,
// constraint, or index first, which is the same outcome as making it.
func duplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeDuplicateTable, codeDuplicateObject, codeUniqueViolation:
		return true
	}
	return false
}

func partitionName(key griot.PartitionKey) string {
	return "record_" + key.String()
}

func partitionDDL(key griot.PartitionKey) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s () INHERITS (audit.record)",
		partitionTable(key),
	)
}

func rangeConstraintName(key griot.PartitionKey) string {
	return partitionName(key) + "_statement_time_check"
}

// rangeConstraintDDL pins the partition to its half-open month:
// consecutive partitions cover time with no gaps and no overlap.
func rangeConstraintDDL(key griot.PartitionKey) string {
	start, end := key.Range()
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s CHECK (statement_time >= '%s' AND statement_time < '%s')",
		partitionTable(key), rangeConstraintName(key),
		start.Format(time.RFC3339), end.Format(time.RFC3339),
	)
}

type indexSpec struct {
	name string
	ddl  string
}

// indexCatalog lists every index a partition should carry: the unique
// event_id lookup, the fixed query columns, the calendar-date expression
// index, and one expression index per configured hot row_image key.
func indexCatalog(partition string, hotKeys []string, tz string) []indexSpec {
	specs := []indexSpec{
		{
			name: partition + "_event_id_key",
			ddl: fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_event_id_key ON audit.%s (event_id)",
				partition, partition),
		},
	}
	for _, col := range []string{"actor", "transaction_id", "action", "table_name", "schema_name"} {
		specs = append(specs, indexSpec{
			name: fmt.Sprintf("%s_%s_idx", partition, col),
			ddl: fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON audit.%s (%s)",
				partition, col, partition, col),
		})
	}
	specs = append(specs, indexSpec{
		name: partition + "_statement_date_idx",
		ddl: fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_statement_date_idx ON audit.%s (((statement_time AT TIME ZONE '%s')::date))",
			partition, partition, sqlLiteral(tz)),
	})
	for _, hotKey := range hotKeys {
		specs = append(specs, indexSpec{
			name: fmt.Sprintf("%s_row_image_%s_idx", partition, indexSafe(hotKey)),
			ddl: fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_row_image_%s_idx ON audit.%s ((row_image ->> '%s'))",
				partition, indexSafe(hotKey), partition, sqlLiteral(hotKey)),
		})
	}
	return specs
}

// sqlLiteral escapes a value for inclusion in a single-quoted SQL literal.
func sqlLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// indexSafe folds a configured key into identifier-safe characters.
func indexSafe(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
