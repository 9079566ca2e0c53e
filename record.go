package griot

import (
	"context"
	"time"
)

// Action classifies what a history record captured.
type Action string

const (
	ActionInsert    Action = "insert"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionBulkClear Action = "bulk-clear" // truncate; always statement-level
)

// RowImage is a captured row, column name to value.
type RowImage map[string]any

// ClientContext carries connection-level metadata captured with each record.
// Fields are zero-valued for non-network connections.
type ClientContext struct {
	ApplicationName string
	ClientAddr      string
	ClientPort      int32
}

// Record is one immutable history event. Records are created exactly once and
// never updated; they disappear only when an operator drops the partition
// that holds them.
type Record struct {
	EventID    int64
	SchemaName string
	TableName  string
	RelationID int64 // pg_class OID captured at enablement; survives renames

	Actor         string
	TxTime        time.Time // transaction start (at wrap)
	StatementTime time.Time // start of the triggering statement
	ClockTime     time.Time // wall clock at capture
	TransactionID int64
	Client        ClientContext
	StatementText string

	Action         Action
	RowImage       RowImage // prior state for update/delete, new state for insert
	ChangedFields  RowImage // updates only; nil for other actions, never empty
	StatementLevel bool     // no row images; bulk-clear is always statement-level
}

// Qualified returns the record's target as "schema.table".
func (r *Record) Qualified() string {
	return r.SchemaName + "." + r.TableName
}

// Appender persists records into the partition that owns their statement
// time. Implementations assign EventID on success. An append against a month
// with no partition must fail with ErrNoPartition.
type Appender interface {
	Append(ctx context.Context, rec *Record) error
}

// Reader is the ordinary scan surface over recorded history.
type Reader interface {
	ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]*Record, error)
	GetByEventID(ctx context.Context, eventID int64) (*Record, error)
}

// Observer receives capture outcomes for instrumentation. All methods must be
// safe on a nil receiver so the engine can run unobserved.
type Observer interface {
	CaptureRecorded(action Action)
	CaptureSuppressed()
	CaptureFailed(reason string)
	CaptureLatency(d time.Duration)
}
