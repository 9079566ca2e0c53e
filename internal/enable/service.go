// Package enable turns capture on and off for tables: it resolves a table
// against the database catalog, fills in key columns from the primary key,
// and registers it for the engine to pick up.
package enable

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/griotdb/griot"
)

var (
	ErrNoSuchTable = errors.New("enable: table does not exist")
	ErrNoMatches   = errors.New("enable: no tables match pattern")
)

// Service registers and deregisters tables for capture.
type Service struct {
	registry griot.Registry
	catalog  griot.Introspector
}

func NewService(registry griot.Registry, catalog griot.Introspector) *Service {
	return &Service{registry: registry, catalog: catalog}
}

// Enable registers a table for capture. The table must exist; its relation
// OID is resolved now so later records can survive a rename. When cfg names
// no key columns, the table's primary key is used. Enabling an already
// enabled table replaces its configuration.
func (s *Service) Enable(ctx context.Context, schema, table string, cfg griot.TableConfig) (*griot.InstrumentedTable, error) {
	if schema == "" {
		schema = "public"
	}

	relationID, err := s.catalog.Relation(ctx, schema, table)
	if err != nil {
		if errors.Is(err, griot.ErrNotFound) {
			return nil, fmt.Errorf("enable.Enable: %s.%s: %w", schema, table, ErrNoSuchTable)
		}
		return nil, fmt.Errorf("enable.Enable: %w", err)
	}

	if len(cfg.KeyColumns) == 0 {
		pk, err := s.catalog.PrimaryKey(ctx, schema, table)
		if err != nil {
			return nil, fmt.Errorf("enable.Enable: %w", err)
		}
		cfg.KeyColumns = pk
	}

	tbl := &griot.InstrumentedTable{
		ID:         uuid.New(),
		SchemaName: schema,
		TableName:  table,
		RelationID: relationID,
		Config:     cfg,
		Active:     true,
	}
	if err := s.registry.Upsert(ctx, tbl); err != nil {
		return nil, fmt.Errorf("enable.Enable: %w", err)
	}

	return tbl, nil
}

// Disable removes a table's registration entirely. Its history stays.
func (s *Service) Disable(ctx context.Context, schema, table string) error {
	if schema == "" {
		schema = "public"
	}
	if err := s.registry.Delete(ctx, schema, table); err != nil {
		return fmt.Errorf("enable.Disable: %w", err)
	}
	return nil
}

// SetActive pauses or resumes capture without losing the configuration.
func (s *Service) SetActive(ctx context.Context, schema, table string, active bool) error {
	if schema == "" {
		schema = "public"
	}
	if err := s.registry.SetActive(ctx, schema, table, active); err != nil {
		return fmt.Errorf("enable.SetActive: %w", err)
	}
	return nil
}

// BulkEnable registers every table in the schema whose name matches a SQL
// LIKE pattern, each with the same configuration. Key columns are resolved
// per table.
func (s *Service) BulkEnable(ctx context.Context, schema, pattern string, cfg griot.TableConfig) ([]*griot.InstrumentedTable, error) {
	if schema == "" {
		schema = "public"
	}

	names, err := s.catalog.TablesMatching(ctx, schema, pattern)
	if err != nil {
		return nil, fmt.Errorf("enable.BulkEnable: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("enable.BulkEnable: %s %q: %w", schema, pattern, ErrNoMatches)
	}

	enabled := make([]*griot.InstrumentedTable, 0, len(names))
	for _, name := range names {
		tbl, err := s.Enable(ctx, schema, name, cfg)
		if err != nil {
			return enabled, fmt.Errorf("enable.BulkEnable: %s: %w", name, err)
		}
		enabled = append(enabled, tbl)
	}

	return enabled, nil
}
