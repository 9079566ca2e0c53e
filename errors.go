package griot

import (
	"errors"
	"fmt"
)

// Sentinel errors for the capture engine.
var (
	// ErrNoPartition means the partition owning a record's statement time
	// does not exist. Partitions are never created on demand; the append and
	// the mutation that triggered it both fail.
	ErrNoPartition = errors.New("griot: no partition for statement time")

	// ErrUnsupportedStatement means a statement against an instrumented table
	// has a shape the engine cannot audit. The engine fails closed rather
	// than let the mutation proceed unrecorded.
	ErrUnsupportedStatement = errors.New("griot: statement cannot be audited")

	// ErrMissingKeyColumns means an update cannot pair old and new rows
	// because the table has no key columns configured.
	ErrMissingKeyColumns = errors.New("griot: no key columns to pair update rows")

	ErrNotFound = errors.New("griot: not found")
)

// ConfigError reports capture wiring that references an operation and
// granularity pair the engine has no path for. It is a configuration defect,
// not a data condition, and must abort the enclosing transaction.
type ConfigError struct {
	Action         Action
	StatementLevel bool
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("griot: no capture path for action %q (statement-level=%t)", e.Action, e.StatementLevel)
}
