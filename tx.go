package griot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/griotdb/griot/internal/dml"
	"github.com/griotdb/griot/internal/ident"
)

// auditedTx wraps a pgx.Tx and captures every recognized mutation of an
// instrumented table. Statements that don't touch instrumented tables pass
// through untouched. Statements that do, but whose shape the engine cannot
// audit, fail with ErrUnsupportedStatement: a mutation must never proceed
// unrecorded.
type auditedTx struct {
	inner       pgx.Tx
	eng         *Engine
	hook        *Hook
	txTime      time.Time
	txid        int64
	sessionUser string
	client      ClientContext
}

var _ pgx.Tx = (*auditedTx)(nil)

func (t *auditedTx) Begin(ctx context.Context) (pgx.Tx, error) {
	inner, err := t.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	nested := *t
	nested.inner = inner
	// Appends go through the savepoint so they roll back with it.
	nested.hook = NewHook(t.eng.appenderFor(inner), t.eng.clock, t.eng.obs)
	return &nested, nil
}

func (t *auditedTx) Commit(ctx context.Context) error   { return t.inner.Commit(ctx) }
func (t *auditedTx) Rollback(ctx context.Context) error { return t.inner.Rollback(ctx) }

func (t *auditedTx) Conn() *pgx.Conn { return t.inner.Conn() }

func (t *auditedTx) LargeObjects() pgx.LargeObjects { return t.inner.LargeObjects() }

func (t *auditedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res, handled, err := t.handle(ctx, sql, args, false)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	if !handled {
		return t.inner.Exec(ctx, sql, args...)
	}
	return res.tag, nil
}

func (t *auditedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	res, handled, err := t.handle(ctx, sql, args, true)
	if err != nil {
		return nil, err
	}
	if !handled {
		return t.inner.Query(ctx, sql, args...)
	}
	return res.rows, nil
}

func (t *auditedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	res, handled, err := t.handle(ctx, sql, args, true)
	if err != nil {
		return errRow{err}
	}
	if !handled {
		return t.inner.QueryRow(ctx, sql, args...)
	}
	return &scanOneRow{rows: res.rows}
}

// Prepare rejects preparing a mutation of an instrumented table: executing it
// later by name would bypass capture.
func (t *auditedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	if stmt, ok := dml.Parse(sql); ok && t.touchesAudited(stmt) {
		return nil, fmt.Errorf("griot: preparing %q would bypass capture: %w", name, ErrUnsupportedStatement)
	}
	return t.inner.Prepare(ctx, name, sql)
}

// SendBatch rejects batches containing mutations of instrumented tables; the
// batch result stream cannot be intercepted for capture.
func (t *auditedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		if stmt, ok := dml.Parse(q.SQL); ok && t.touchesAudited(stmt) {
			return errBatchResults{fmt.Errorf("griot: batched mutation of %s: %w", stmt.Table, ErrUnsupportedStatement)}
		}
	}
	return t.inner.SendBatch(ctx, b)
}

// CopyFrom streams through a tee and captures each row as an insert once the
// copy completes; the connection is busy until then.
func (t *auditedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	schema, table := "", ""
	switch len(tableName) {
	case 1:
		table = tableName[0]
	case 2:
		schema, table = tableName[0], tableName[1]
	}
	tbl := t.eng.lookup(schema, table)
	if tbl == nil || !tbl.Active {
		return t.inner.CopyFrom(ctx, tableName, columnNames, rowSrc)
	}

	start := t.eng.clock.Now()
	// COPY has no statement text to capture verbatim; record its shape.
	text := "COPY " + ident.QuoteQualified(tableName...) + " FROM STDIN"

	if !tbl.Config.CaptureRows {
		n, err := t.inner.CopyFrom(ctx, tableName, columnNames, rowSrc)
		if err != nil {
			return n, err
		}
		ev := t.event(ctx, tbl, ActionInsert, nil, nil, true, text, start)
		if err := t.hook.Capture(ctx, ev); err != nil {
			return n, err
		}
		t.eng.observeLatency(start)
		return n, nil
	}

	tee := &copyTee{src: rowSrc}
	n, err := t.inner.CopyFrom(ctx, tableName, columnNames, tee)
	if err != nil {
		return n, err
	}
	for _, vals := range tee.rows {
		img := make(RowImage, len(columnNames))
		for i, col := range columnNames {
			if i < len(vals) {
				img[col] = vals[i]
			}
		}
		ev := t.event(ctx, tbl, ActionInsert, nil, img, false, text, start)
		if err := t.hook.Capture(ctx, ev); err != nil {
			return n, err
		}
	}
	t.eng.observeLatency(start)
	return n, nil
}

type handleResult struct {
	tag  pgconn.CommandTag
	rows pgx.Rows
}

// handle runs one statement with capture. handled=false means the statement
// is not an audited mutation and the caller should delegate it untouched.
func (t *auditedTx) handle(ctx context.Context, sql string, args []any, wantRows bool) (handleResult, bool, error) {
	stmt, ok := dml.Parse(sql)
	if !ok {
		return handleResult{}, false, nil
	}
	start := t.eng.clock.Now()

	if stmt.Kind == dml.Truncate {
		return t.handleTruncate(ctx, stmt, sql, args, wantRows, start)
	}

	tbl := t.eng.lookup(stmt.Schema, stmt.Table)
	if tbl == nil || !tbl.Active {
		return handleResult{}, false, nil
	}

	if stmt.Kind == dml.Merge {
		return handleResult{}, true, fmt.Errorf("griot: MERGE on %s cannot be attributed per action: %w", tbl.Qualified(), ErrUnsupportedStatement)
	}

	action := actionFor(stmt.Kind)

	if !tbl.Config.CaptureRows {
		return t.handleStatementLevel(ctx, tbl, action, sql, args, wantRows, start)
	}

	// Shapes whose images can't be obtained or attributed are rejected
	// before anything executes.
	switch {
	case stmt.HasTableExpr:
		return handleResult{}, true, fmt.Errorf("griot: %s with a table expression on %s: %w", stmt.Kind, tbl.Qualified(), ErrUnsupportedStatement)
	case stmt.HasConflictUpdate:
		return handleResult{}, true, fmt.Errorf("griot: INSERT ... ON CONFLICT DO UPDATE on %s: %w", tbl.Qualified(), ErrUnsupportedStatement)
	case wantRows && stmt.HasReturning && stmt.Returning == nil:
		return handleResult{}, true, fmt.Errorf("griot: RETURNING expressions on %s: %w", tbl.Qualified(), ErrUnsupportedStatement)
	}

	var oldRS *resultSet
	if stmt.Kind == dml.Update {
		if len(tbl.Config.KeyColumns) == 0 {
			return handleResult{}, true, fmt.Errorf("griot: %s: %w", tbl.Qualified(), ErrMissingKeyColumns)
		}
		preSQL, preArgs, err := preselect(stmt, tbl, args)
		if err != nil {
			return handleResult{}, true, err
		}
		oldRS, err = materialize(t.inner.Query(ctx, preSQL, preArgs...))
		if err != nil {
			return handleResult{}, true, fmt.Errorf("griot: before-image select on %s: %w", tbl.Qualified(), err)
		}
	}

	rs, err := materialize(t.inner.Query(ctx, stmt.WithReturningAll(), args...))
	if err != nil {
		return handleResult{}, true, err
	}

	switch stmt.Kind {
	case dml.Insert:
		for i := 0; i < rs.count(); i++ {
			ev := t.event(ctx, tbl, ActionInsert, nil, rs.imageAt(i), false, sql, start)
			if err := t.hook.Capture(ctx, ev); err != nil {
				return handleResult{}, true, err
			}
		}
	case dml.Delete:
		for i := 0; i < rs.count(); i++ {
			ev := t.event(ctx, tbl, ActionDelete, rs.imageAt(i), nil, false, sql, start)
			if err := t.hook.Capture(ctx, ev); err != nil {
				return handleResult{}, true, err
			}
		}
	case dml.Update:
		pairs, err := pairRows(oldRS, rs, tbl.Config.KeyColumns)
		if err != nil {
			return handleResult{}, true, fmt.Errorf("griot: %s: %w", tbl.Qualified(), err)
		}
		for _, p := range pairs {
			ev := t.event(ctx, tbl, ActionUpdate, p.old, p.new, false, sql, start)
			if err := t.hook.Capture(ctx, ev); err != nil {
				return handleResult{}, true, err
			}
		}
	}
	t.eng.observeLatency(start)

	if !wantRows {
		return handleResult{tag: rs.tag}, true, nil
	}
	rows, err := callerRows(rs, stmt)
	if err != nil {
		return handleResult{}, true, err
	}
	return handleResult{tag: rs.tag, rows: rows}, true, nil
}

func (t *auditedTx) handleTruncate(ctx context.Context, stmt *dml.Statement, sql string, args []any, wantRows bool, start time.Time) (handleResult, bool, error) {
	var audited []*InstrumentedTable
	for _, qt := range stmt.Tables {
		if tbl := t.eng.lookup(qt[0], qt[1]); tbl != nil && tbl.Active {
			audited = append(audited, tbl)
		}
	}
	if len(audited) == 0 {
		return handleResult{}, false, nil
	}

	res := handleResult{}
	if wantRows {
		rs, err := materialize(t.inner.Query(ctx, sql, args...))
		if err != nil {
			return handleResult{}, true, err
		}
		rows, err := newReplayRows(rs, nil)
		if err != nil {
			return handleResult{}, true, err
		}
		res.tag, res.rows = rs.tag, rows
	} else {
		tag, err := t.inner.Exec(ctx, sql, args...)
		if err != nil {
			return handleResult{}, true, err
		}
		res.tag = tag
	}

	// One statement-level bulk-clear per audited table named.
	for _, tbl := range audited {
		ev := t.event(ctx, tbl, ActionBulkClear, nil, nil, true, sql, start)
		if err := t.hook.Capture(ctx, ev); err != nil {
			return handleResult{}, true, err
		}
	}
	t.eng.observeLatency(start)
	return res, true, nil
}

func (t *auditedTx) handleStatementLevel(ctx context.Context, tbl *InstrumentedTable, action Action, sql string, args []any, wantRows bool, start time.Time) (handleResult, bool, error) {
	res := handleResult{}
	if wantRows {
		rs, err := materialize(t.inner.Query(ctx, sql, args...))
		if err != nil {
			return handleResult{}, true, err
		}
		rows, err := newReplayRows(rs, nil)
		if err != nil {
			return handleResult{}, true, err
		}
		res.tag, res.rows = rs.tag, rows
	} else {
		tag, err := t.inner.Exec(ctx, sql, args...)
		if err != nil {
			return handleResult{}, true, err
		}
		res.tag = tag
	}
	ev := t.event(ctx, tbl, action, nil, nil, true, sql, start)
	if err := t.hook.Capture(ctx, ev); err != nil {
		return handleResult{}, true, err
	}
	t.eng.observeLatency(start)
	return res, true, nil
}

func (t *auditedTx) event(ctx context.Context, tbl *InstrumentedTable, action Action, old, new RowImage, stmtLevel bool, text string, stmtTime time.Time) Event {
	return Event{
		Table:          tbl,
		Action:         action,
		OldImage:       old,
		NewImage:       new,
		StatementLevel: stmtLevel,
		StatementText:  text,
		Session: SessionInfo{
			Actor:         t.eng.resolveActor(ctx, t.sessionUser),
			TransactionID: t.txid,
			Client:        t.client,
		},
		TxTime:        t.txTime,
		StatementTime: stmtTime,
	}
}

func (t *auditedTx) touchesAudited(stmt *dml.Statement) bool {
	if stmt.Kind == dml.Truncate {
		for _, qt := range stmt.Tables {
			if tbl := t.eng.lookup(qt[0], qt[1]); tbl != nil && tbl.Active {
				return true
			}
		}
		return false
	}
	tbl := t.eng.lookup(stmt.Schema, stmt.Table)
	return tbl != nil && tbl.Active
}

// callerRows rebuilds the caller's view of the result: their RETURNING
// projection, or no rows at all when they didn't ask for any.
func callerRows(rs *resultSet, stmt *dml.Statement) (pgx.Rows, error) {
	if !stmt.HasReturning {
		return newReplayRows(&resultSet{tag: rs.tag}, nil)
	}
	if len(stmt.Returning) == 1 && stmt.Returning[0] == "*" {
		return newReplayRows(rs, nil)
	}
	return newReplayRows(rs, stmt.Returning)
}

// preselect builds the locking before-image query for an update: the same
// rows the update will touch, held FOR UPDATE so nothing moves between the
// read and the write.
func preselect(stmt *dml.Statement, tbl *InstrumentedTable, args []any) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(ident.QuoteQualified(tbl.SchemaName, tbl.TableName))
	var out []any
	if stmt.WhereClause != "" {
		where, order := dml.RenumberPlaceholders(stmt.WhereClause)
		for _, idx := range order {
			if idx < 1 || idx > len(args) {
				return "", nil, fmt.Errorf("griot: WHERE references $%d with %d arguments: %w", idx, len(args), ErrUnsupportedStatement)
			}
			out = append(out, args[idx-1])
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" FOR UPDATE")
	return b.String(), out, nil
}

type rowPair struct{ old, new RowImage }

// pairRows matches before and after images by key columns. A single row whose
// key itself changed still pairs; anything else unmatched means the images
// can't be attributed and the update fails closed.
func pairRows(oldRS, newRS *resultSet, keyCols []string) ([]rowPair, error) {
	olds := make(map[string]RowImage, oldRS.count())
	for i := 0; i < oldRS.count(); i++ {
		img := oldRS.imageAt(i)
		key, err := imageKey(img, keyCols)
		if err != nil {
			return nil, err
		}
		olds[key] = img
	}
	pairs := make([]rowPair, 0, newRS.count())
	var orphans []RowImage
	for i := 0; i < newRS.count(); i++ {
		img := newRS.imageAt(i)
		key, err := imageKey(img, keyCols)
		if err != nil {
			return nil, err
		}
		if old, ok := olds[key]; ok {
			pairs = append(pairs, rowPair{old: old, new: img})
			delete(olds, key)
		} else {
			orphans = append(orphans, img)
		}
	}
	if len(orphans) == 1 && len(olds) == 1 {
		for _, old := range olds {
			pairs = append(pairs, rowPair{old: old, new: orphans[0]})
		}
		return pairs, nil
	}
	if len(orphans) != 0 || len(olds) != 0 {
		return nil, fmt.Errorf("update rows could not be paired by key: %w", ErrUnsupportedStatement)
	}
	return pairs, nil
}

func imageKey(img RowImage, keyCols []string) (string, error) {
	var b strings.Builder
	for _, col := range keyCols {
		v, ok := img[col]
		if !ok {
			return "", fmt.Errorf("key column %q missing from row image: %w", col, ErrUnsupportedStatement)
		}
		fmt.Fprintf(&b, "%v\x1f", v)
	}
	return b.String(), nil
}

func actionFor(k dml.Kind) Action {
	switch k {
	case dml.Insert:
		return ActionInsert
	case dml.Update:
		return ActionUpdate
	case dml.Delete:
		return ActionDelete
	case dml.Truncate:
		return ActionBulkClear
	}
	return Action("")
}
