package griot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TableConfig controls what gets captured for one instrumented table.
type TableConfig struct {
	// CaptureRows records one event per affected row, with images and diffs.
	// When false the table is audited at statement level only.
	CaptureRows bool
	// CaptureStatementText keeps the verbatim top-level statement on each
	// record. When false the text is cleared after record assembly.
	CaptureStatementText bool
	// IgnoredColumns are excluded from row images and never count toward an
	// update's changed fields. Names that don't exist on the table are
	// harmless, so exclusion presets can be reused across tables.
	IgnoredColumns []string
	// KeyColumns pair old and new rows of a multi-row update. Defaults to the
	// table's primary key, discovered at enablement.
	KeyColumns []string
}

// DefaultTableConfig captures rows and statement text with no exclusions.
func DefaultTableConfig() TableConfig {
	return TableConfig{CaptureRows: true, CaptureStatementText: true}
}

// IgnoredSet returns the exclusion list as a set.
func (c TableConfig) IgnoredSet() map[string]struct{} {
	if len(c.IgnoredColumns) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.IgnoredColumns))
	for _, col := range c.IgnoredColumns {
		set[col] = struct{}{}
	}
	return set
}

// InstrumentedTable is one table's capture wiring, as stored in the registry.
type InstrumentedTable struct {
	ID         uuid.UUID
	SchemaName string
	TableName  string
	RelationID int64
	Config     TableConfig
	Active     bool // inactive keeps the wiring but disables capture
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Qualified returns "schema.table".
func (t *InstrumentedTable) Qualified() string {
	return t.SchemaName + "." + t.TableName
}

// Registry persists per-table capture wiring. Enablement is re-runnable:
// Upsert replaces any existing wiring for the same table.
type Registry interface {
	Upsert(ctx context.Context, tbl *InstrumentedTable) error
	SetActive(ctx context.Context, schema, table string, active bool) error
	Delete(ctx context.Context, schema, table string) error
	Get(ctx context.Context, schema, table string) (*InstrumentedTable, error)
	List(ctx context.Context) ([]*InstrumentedTable, error)
	ListActive(ctx context.Context) ([]*InstrumentedTable, error)
}

// Introspector resolves catalog facts needed to wire a table.
type Introspector interface {
	// Relation returns the table's pg_class OID.
	Relation(ctx context.Context, schema, table string) (int64, error)
	// PrimaryKey returns the table's primary key columns in index order,
	// empty when the table has none.
	PrimaryKey(ctx context.Context, schema, table string) ([]string, error)
	// TablesMatching lists tables in schema whose name matches a SQL LIKE
	// pattern.
	TablesMatching(ctx context.Context, schema, pattern string) ([]string, error)
}
