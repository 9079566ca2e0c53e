package griot

import (
	"context"
	"fmt"
	"time"
)

// SessionInfo is the connection identity captured with every record of one
// wrapped transaction.
type SessionInfo struct {
	Actor         string
	TransactionID int64
	Client        ClientContext
}

// Event is one observed mutation of an instrumented table, before diffing.
// Row-level events carry images; statement-level events carry none.
type Event struct {
	Table          *InstrumentedTable
	Action         Action
	OldImage       RowImage
	NewImage       RowImage
	StatementLevel bool
	StatementText  string
	Session        SessionInfo
	TxTime         time.Time
	StatementTime  time.Time
}

// Hook turns observed mutations into persisted history records. It never
// retries and never touches the triggering operation; any error it returns
// must abort the enclosing transaction, because a failed capture means the
// mutation would otherwise go unrecorded.
type Hook struct {
	appender Appender
	clock    Clock
	obs      Observer
}

// NewHook builds a hook over an appender. A nil clock means RealClock; a nil
// observer disables instrumentation.
func NewHook(appender Appender, clock Clock, obs Observer) *Hook {
	if clock == nil {
		clock = RealClock{}
	}
	return &Hook{appender: appender, clock: clock, obs: obs}
}

// Capture assembles the record for one event and appends it. The record shell
// (actor, timestamps, transaction id, client context, statement text) is
// populated unconditionally; when the table's configuration says not to keep
// statement text, the text is cleared after assembly so both settings share
// one code path. The (action, granularity) pair then selects the payload
// rule; a pair with no rule is a configuration defect and fails.
func (h *Hook) Capture(ctx context.Context, ev Event) error {
	rec := &Record{
		SchemaName:     ev.Table.SchemaName,
		TableName:      ev.Table.TableName,
		RelationID:     ev.Table.RelationID,
		Actor:          ev.Session.Actor,
		TxTime:         ev.TxTime,
		StatementTime:  ev.StatementTime,
		ClockTime:      h.clock.Now(),
		TransactionID:  ev.Session.TransactionID,
		Client:         ev.Session.Client,
		StatementText:  ev.StatementText,
		Action:         ev.Action,
		StatementLevel: ev.StatementLevel,
	}
	if !ev.Table.Config.CaptureStatementText {
		rec.StatementText = ""
	}

	switch {
	case !ev.StatementLevel && ev.Action == ActionUpdate:
		d, err := ComputeDiff(ev.Action, ev.OldImage, ev.NewImage, ev.Table.Config.IgnoredSet())
		if err != nil {
			return fmt.Errorf("hook.Capture: %w", err)
		}
		if d.Suppressed {
			if h.obs != nil {
				h.obs.CaptureSuppressed()
			}
			return nil
		}
		rec.RowImage, rec.ChangedFields = d.RowImage, d.ChangedFields

	case !ev.StatementLevel && (ev.Action == ActionInsert || ev.Action == ActionDelete):
		d, err := ComputeDiff(ev.Action, ev.OldImage, ev.NewImage, ev.Table.Config.IgnoredSet())
		if err != nil {
			return fmt.Errorf("hook.Capture: %w", err)
		}
		rec.RowImage = d.RowImage

	case ev.StatementLevel && knownAction(ev.Action):
		// Statement marker only; images stay nil.

	default:
		err := &ConfigError{Action: ev.Action, StatementLevel: ev.StatementLevel}
		if h.obs != nil {
			h.obs.CaptureFailed("config")
		}
		return err
	}

	if err := h.appender.Append(ctx, rec); err != nil {
		if h.obs != nil {
			h.obs.CaptureFailed("append")
		}
		return fmt.Errorf("hook.Capture: %w", err)
	}
	if h.obs != nil {
		h.obs.CaptureRecorded(rec.Action)
	}
	return nil
}

func knownAction(a Action) bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete, ActionBulkClear:
		return true
	}
	return false
}
