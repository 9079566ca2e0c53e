// Package griot is a change-capture and audit-history engine for PostgreSQL.
//
// Applications designate tables for auditing, then run their writes through a
// wrapped pgx transaction. Every insert, update, delete, and truncate against
// an instrumented table is recorded as an immutable history record (old
// values, changed fields, actor, timestamps, and the originating statement)
// in the same transaction as the mutation itself. If the transaction rolls
// back, the history rolls back with it; if the capture fails, the mutation
// fails. There is no path for an audited write to slip through unrecorded.
//
// Records land in monthly partitions (audit.record_YYYYMM) routed by the
// statement time. Partitions are never created on demand: provisioning them
// ahead of need is an operator task, handled by griotd's schedule or
// `griotctl partitions ensure`.
//
// Typical wiring:
//
//	st, err := postgres.New(ctx, dsn, 8)
//	eng, err := postgres.NewEngine(ctx, st, griot.Options{})
//
//	tx, err := pool.Begin(ctx)
//	atx, err := eng.WrapTx(ctx, tx)
//	_, err = atx.Exec(ctx, "UPDATE invoice SET status = $1 WHERE id = $2", "paid", 42)
//	err = atx.Commit(ctx)
//
// Mutations performed outside a wrapped transaction (or through Conn()) are
// not captured; the embedding application owns that boundary.
package griot
