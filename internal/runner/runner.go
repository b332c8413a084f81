// Package runner issues rendered statements against a database connection
// and extracts affected-row counts and raw result rows.
//
// The runner holds no consistency logic. It is the leaf the split-write
// engine builds on: one call, one statement (or one prepared statement
// executed once per batch group), results returned exactly as the driver
// reported them. Every driver or transport error is wrapped in an
// *ExecutionFault tagged with the carrier that caused it.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/splitwrite/internal/ir"
)

// Conn is the subset of methods shared by *sql.DB, *sql.Tx and *sql.Conn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ElementFunc is called after each batch element with its affected-row count.
// Returning an error stops the batch; that error is returned unchanged
// together with the counts collected so far.
type ElementFunc func(index int, rows int64) error

// Runner executes carriers.
type Runner interface {
	Execute(ctx context.Context, c ir.Carrier) (int64, error)
	ExecuteBatch(ctx context.Context, c ir.Carrier, each ElementFunc) ([]int64, error)
	Query(ctx context.Context, c ir.Carrier) ([]ir.RawRow, error)
}

// Statement kinds reported to observers.
const (
	KindExecute = "execute"
	KindBatch   = "batch"
	KindQuery   = "query"
)

// StatementObserver receives the duration and outcome of every statement.
type StatementObserver interface {
	ObserveStatement(kind string, elapsed time.Duration, err error)
}

// Option configures a SQLRunner.
type Option func(*SQLRunner)

// WithObserver attaches a statement observer (typically the metrics collector).
func WithObserver(o StatementObserver) Option {
	return func(r *SQLRunner) {
		r.observer = o
	}
}

// SQLRunner runs carriers over a database/sql connection.
type SQLRunner struct {
	conn     Conn
	observer StatementObserver
}

var _ Runner = (*SQLRunner)(nil)

// New creates a runner bound to conn. The runner borrows the connection;
// it never commits, rolls back or closes it.
func New(conn Conn, opts ...Option) *SQLRunner {
	r := &SQLRunner{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs a single statement and returns its affected-row count.
func (r *SQLRunner) Execute(ctx context.Context, c ir.Carrier) (n int64, err error) {
	defer r.observe(KindExecute, time.Now(), &err)

	res, err := r.conn.ExecContext(ctx, c.SQL, c.Params...)
	if err != nil {
		return 0, newFault(OpExecute, c, -1, err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, newFault(OpRowsAffected, c, -1, err)
	}
	return n, nil
}

// ExecuteBatch prepares the carrier once and executes it for every parameter
// group in order, returning one affected-row count per group.
//
// A carrier without groups yields an empty, non-nil slice and no statement
// is prepared.
func (r *SQLRunner) ExecuteBatch(ctx context.Context, c ir.Carrier, each ElementFunc) (counts []int64, err error) {
	counts = make([]int64, 0, len(c.Groups))
	if len(c.Groups) == 0 {
		return counts, nil
	}
	defer r.observe(KindBatch, time.Now(), &err)

	stmt, err := r.conn.PrepareContext(ctx, c.SQL)
	if err != nil {
		return counts, newFault(OpPrepare, c, -1, err)
	}
	defer stmt.Close()

	for i, group := range c.Groups {
		res, err := stmt.ExecContext(ctx, group...)
		if err != nil {
			return counts, newFault(OpExecute, c, i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return counts, newFault(OpRowsAffected, c, i, err)
		}
		counts = append(counts, n)
		if each != nil {
			if err := each(i, n); err != nil {
				return counts, err
			}
		}
	}
	return counts, nil
}

// Query runs a returning statement and materialises every row.
// Column names are kept in driver order.
func (r *SQLRunner) Query(ctx context.Context, c ir.Carrier) (out []ir.RawRow, err error) {
	defer r.observe(KindQuery, time.Now(), &err)

	rows, err := r.conn.QueryContext(ctx, c.SQL, c.Params...)
	if err != nil {
		return nil, newFault(OpQuery, c, -1, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, newFault(OpColumns, c, -1, err)
	}

	for i := 0; rows.Next(); i++ {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, newFault(OpScan, c, i, err)
		}
		out = append(out, ir.RawRow{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, newFault(OpScan, c, -1, err)
	}
	return out, nil
}

func (r *SQLRunner) observe(kind string, started time.Time, err *error) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveStatement(kind, time.Since(started), *err)
}

// Fault operations.
const (
	OpExecute      = "execute"
	OpPrepare      = "prepare"
	OpRowsAffected = "rows affected"
	OpQuery        = "query"
	OpColumns      = "columns"
	OpScan         = "scan"
)

// ExecutionFault wraps any driver or transport failure (connectivity,
// constraint violation, timeout, cancellation) with the identity of the
// carrier that caused it.
type ExecutionFault struct {
	// Op is the runner step that failed (OpExecute, OpQuery, ...).
	Op string

	// Carrier is the short fingerprint of the failing carrier.
	Carrier string

	// Label is the carrier's diagnostic label, if any.
	Label string

	// Index is the batch element or row index, or -1.
	Index int

	Err error
}

func newFault(op string, c ir.Carrier, index int, err error) *ExecutionFault {
	return &ExecutionFault{
		Op:      op,
		Carrier: ir.CarrierID(c),
		Label:   c.Label,
		Index:   index,
		Err:     err,
	}
}

// Error implements the error interface.
func (f *ExecutionFault) Error() string {
	target := f.Carrier
	if f.Label != "" {
		target = fmt.Sprintf("%s (carrier %s)", f.Label, f.Carrier)
	}
	if f.Index >= 0 {
		return fmt.Sprintf("%s %s: element %d: %v", f.Op, target, f.Index, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Op, target, f.Err)
}

// Unwrap returns the underlying driver error.
func (f *ExecutionFault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is or wraps an *ExecutionFault.
func IsFault(err error) bool {
	var f *ExecutionFault
	return errors.As(err, &f)
}
