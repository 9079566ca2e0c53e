package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griotdb/griot"
)

// SQLSTATE codes the store maps onto engine errors.
const (
	codeUndefinedTable  = "42P01"
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
	codeUniqueViolation = "23505"
)

// TxAppender writes history records within one transaction. Each record goes
// straight into the partition owning its statement time: the insert itself is
// the routing, and a missing partition fails it. Partitions are provisioned
// ahead of need, never on demand.
type TxAppender struct {
	tx pgx.Tx
}

func NewTxAppender(tx pgx.Tx) *TxAppender {
	return &TxAppender{tx: tx}
}

const appendSQL = `INSERT INTO %s
  (schema_name, table_name, relation_id, actor, tx_time, statement_time, clock_time,
   transaction_id, application_name, client_addr, client_port, statement_text,
   action, row_image, changed_fields, is_statement_level)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, nullif($9, ''), nullif($10, ''), nullif($11, 0), nullif($12, ''), $13, $14, $15, $16)
 RETURNING event_id`

func (a *TxAppender) Append(ctx context.Context, rec *griot.Record) error {
	key := griot.KeyFor(rec.StatementTime)
	err := a.tx.QueryRow(ctx,
		fmt.Sprintf(appendSQL, partitionTable(key)),
		rec.SchemaName, rec.TableName, rec.RelationID, rec.Actor,
		rec.TxTime, rec.StatementTime, rec.ClockTime,
		rec.TransactionID, rec.Client.ApplicationName, rec.Client.ClientAddr, rec.Client.ClientPort,
		rec.StatementText, string(rec.Action), rec.RowImage, rec.ChangedFields,
		rec.StatementLevel,
	).Scan(&rec.EventID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
			return fmt.Errorf("txAppender.Append: partition %s: %w", key, griot.ErrNoPartition)
		}
		return fmt.Errorf("txAppender.Append: %w", err)
	}
	return nil
}

// partitionTable names the child table for a key. The names are engine-built
// from integers, so they interpolate without quoting.
func partitionTable(key griot.PartitionKey) string {
	return "audit.record_" + key.String()
}

// HistoryRepo is the scan surface over recorded history. Reads go through
// the parent table, which spans every partition.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

const recordColumns = `event_id, schema_name, table_name, relation_id, actor,
   tx_time, statement_time, clock_time, transaction_id,
   coalesce(application_name, ''), coalesce(client_addr, ''), coalesce(client_port, 0),
   coalesce(statement_text, ''), action, row_image, changed_fields, is_statement_level`

func (r *HistoryRepo) ListByTimeRange(ctx context.Context, from, to time.Time, limit int) ([]*griot.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM audit.record
		 WHERE statement_time >= $1 AND statement_time < $2
		 ORDER BY event_id
		 LIMIT nullif($3::bigint, 0)`,
		from, to, int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("historyRepo.ListByTimeRange: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows, "historyRepo.ListByTimeRange")
}

func (r *HistoryRepo) GetByEventID(ctx context.Context, eventID int64) (*griot.Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM audit.record WHERE event_id = $1`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("historyRepo.GetByEventID: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows, "historyRepo.GetByEventID")
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("historyRepo.GetByEventID: event %d: %w", eventID, griot.ErrNotFound)
	}
	return recs[0], nil
}

func scanRecords(rows pgx.Rows, caller string) ([]*griot.Record, error) {
	var recs []*griot.Record
	for rows.Next() {
		var (
			rec      griot.Record
			action   string
			rowImage []byte
			changed  []byte
		)
		if err := rows.Scan(
			&rec.EventID, &rec.SchemaName, &rec.TableName, &rec.RelationID, &rec.Actor,
			&rec.TxTime, &rec.StatementTime, &rec.ClockTime, &rec.TransactionID,
			&rec.Client.ApplicationName, &rec.Client.ClientAddr, &rec.Client.ClientPort,
			&rec.StatementText, &action, &rowImage, &changed, &rec.StatementLevel,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		rec.Action = griot.Action(action)
		if rowImage != nil {
			if err := json.Unmarshal(rowImage, &rec.RowImage); err != nil {
				return nil, fmt.Errorf("%s: unmarshal row image: %w", caller, err)
			}
		}
		if changed != nil {
			if err := json.Unmarshal(changed, &rec.ChangedFields); err != nil {
				return nil, fmt.Errorf("%s: unmarshal changed fields: %w", caller, err)
			}
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return recs, nil
}

var (
	_ griot.Appender = (*TxAppender)(nil)
	_ griot.Reader   = (*HistoryRepo)(nil)
)
