package griot

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// resultSet is a fully materialized query result. A pgx connection allows one
// open result at a time, so capture consumes the RETURNING rows itself and the
// caller gets a replay instead.
type resultSet struct {
	fields []pgconn.FieldDescription
	raws   [][][]byte
	vals   [][]any
	tag    pgconn.CommandTag
}

func materialize(rows pgx.Rows, err error) (*resultSet, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rs := &resultSet{}
	fds := rows.FieldDescriptions()
	rs.fields = make([]pgconn.FieldDescription, len(fds))
	copy(rs.fields, fds)

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		raw := rows.RawValues()
		rowRaw := make([][]byte, len(raw))
		for i, b := range raw {
			if b != nil {
				rowRaw[i] = append([]byte(nil), b...)
			}
		}
		rs.vals = append(rs.vals, vals)
		rs.raws = append(rs.raws, rowRaw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rs.tag = rows.CommandTag()
	return rs, nil
}

func (rs *resultSet) count() int { return len(rs.vals) }

// imageAt builds the row image for one materialized row.
func (rs *resultSet) imageAt(i int) RowImage {
	img := make(RowImage, len(rs.fields))
	for j, fd := range rs.fields {
		img[fd.Name] = rs.vals[i][j]
	}
	return img
}

// replayRows hands a materialized result back to the caller as pgx.Rows.
// A column filter reproduces the caller's original RETURNING projection.
type replayRows struct {
	fields  []pgconn.FieldDescription
	raws    [][][]byte
	vals    [][]any
	tag     pgconn.CommandTag
	typeMap *pgtype.Map
	pos     int
	closed  bool
}

// newReplayRows builds a replay over rs. cols narrows the projection to the
// named columns in order; nil keeps every column.
func newReplayRows(rs *resultSet, cols []string) (*replayRows, error) {
	r := &replayRows{
		fields:  rs.fields,
		raws:    rs.raws,
		vals:    rs.vals,
		tag:     rs.tag,
		typeMap: pgtype.NewMap(),
		pos:     -1,
	}
	if cols == nil {
		return r, nil
	}
	idx := make([]int, len(cols))
	for i, col := range cols {
		idx[i] = -1
		for j, fd := range rs.fields {
			if fd.Name == col {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("griot: returning column %q not in result", col)
		}
	}
	r.fields = make([]pgconn.FieldDescription, len(idx))
	for i, j := range idx {
		r.fields[i] = rs.fields[j]
	}
	r.raws = make([][][]byte, len(rs.raws))
	r.vals = make([][]any, len(rs.vals))
	for row := range rs.raws {
		r.raws[row] = make([][]byte, len(idx))
		r.vals[row] = make([]any, len(idx))
		for i, j := range idx {
			r.raws[row][i] = rs.raws[row][j]
			r.vals[row][i] = rs.vals[row][j]
		}
	}
	return r, nil
}

func (r *replayRows) Close() { r.closed = true }

func (r *replayRows) Err() error { return nil }

func (r *replayRows) Conn() *pgx.Conn { return nil }

func (r *replayRows) CommandTag() pgconn.CommandTag { return r.tag }

func (r *replayRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }

func (r *replayRows) Next() bool {
	if r.closed {
		return false
	}
	r.pos++
	return r.pos < len(r.raws)
}

func (r *replayRows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.raws) {
		return fmt.Errorf("griot: Scan called without Next")
	}
	if len(dest) != len(r.fields) {
		return fmt.Errorf("griot: Scan received %d destinations for %d columns", len(dest), len(r.fields))
	}
	for i, d := range dest {
		fd := r.fields[i]
		plan := r.typeMap.PlanScan(fd.DataTypeOID, fd.Format, d)
		if plan == nil {
			return fmt.Errorf("griot: cannot scan column %q", fd.Name)
		}
		if err := plan.Scan(r.raws[r.pos][i], d); err != nil {
			return fmt.Errorf("griot: scan column %q: %w", fd.Name, err)
		}
	}
	return nil
}

func (r *replayRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.vals) {
		return nil, fmt.Errorf("griot: Values called without Next")
	}
	return r.vals[r.pos], nil
}

func (r *replayRows) RawValues() [][]byte {
	if r.pos < 0 || r.pos >= len(r.raws) {
		return nil
	}
	return r.raws[r.pos]
}

// scanOneRow adapts pgx.Rows to the pgx.Row contract.
type scanOneRow struct {
	rows pgx.Rows
	err  error
}

func (r *scanOneRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	rows := r.rows
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// errBatchResults rejects a batch that would bypass capture.
type errBatchResults struct{ err error }

func (b errBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, b.err }
func (b errBatchResults) Query() (pgx.Rows, error)         { return nil, b.err }
func (b errBatchResults) QueryRow() pgx.Row                { return errRow{b.err} }
func (b errBatchResults) Close() error                     { return b.err }

// copyTee records each row streamed through a CopyFrom so the rows can be
// captured after the copy completes. Capture cannot run during the copy: the
// connection is busy until the stream ends.
type copyTee struct {
	src  pgx.CopyFromSource
	rows [][]any
}

func (t *copyTee) Next() bool { return t.src.Next() }

func (t *copyTee) Values() ([]any, error) {
	vals, err := t.src.Values()
	if err != nil {
		return nil, err
	}
	t.rows = append(t.rows, append([]any(nil), vals...))
	return vals, nil
}

func (t *copyTee) Err() error { return t.src.Err() }
