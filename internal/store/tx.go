package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrRollbackOnly is returned by Commit on a transaction marked rollback-only.
	// The transaction has been rolled back.
	ErrRollbackOnly = errors.New("transaction is marked rollback-only")

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

// Tx is a session-layer transaction. It satisfies both the engine's
// transaction collaborator and the runner's connection interface.
//
// Thread-safety: the state flags are guarded by a mutex; statements follow
// database/sql rules for *sql.Tx.
type Tx struct {
	tx    *sql.Tx
	level sql.IsolationLevel

	// dirtyReads is set when Begin enabled SQLite's read_uncommitted pragma.
	// The pragma is per connection and is turned off before the tx ends.
	dirtyReads bool

	mu           sync.Mutex
	rollbackOnly bool
	done         bool
}

// Begin starts a transaction at level and resolves the level the database
// actually applied.
func (s *Store) Begin(ctx context.Context, level sql.IsolationLevel) (*Tx, error) {
	opts := &sql.TxOptions{Isolation: level}
	if isSQLite(s.driver) {
		// SQLite drivers reject or ignore explicit levels.
		opts = nil
	}

	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	effective, err := s.resolveLevel(ctx, tx, level)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &Tx{
		tx:         tx,
		level:      effective,
		dirtyReads: isSQLite(s.driver) && effective == sql.LevelReadUncommitted,
	}, nil
}

func (s *Store) resolveLevel(ctx context.Context, tx *sql.Tx, requested sql.IsolationLevel) (sql.IsolationLevel, error) {
	if isSQLite(s.driver) {
		if requested == sql.LevelReadUncommitted {
			if _, err := tx.ExecContext(ctx, "PRAGMA read_uncommitted = true"); err != nil {
				return 0, fmt.Errorf("set read_uncommitted: %w", err)
			}
			return sql.LevelReadUncommitted, nil
		}
		return sql.LevelSerializable, nil
	}

	if requested != sql.LevelDefault {
		return requested, nil
	}
	var name string
	if err := tx.QueryRowContext(ctx, "SHOW transaction_isolation").Scan(&name); err != nil {
		return 0, fmt.Errorf("query transaction isolation: %w", err)
	}
	level, err := ParseIsolation(name)
	if err != nil {
		return 0, err
	}
	return level, nil
}

// IsolationLevel reports the level resolved at Begin.
func (t *Tx) IsolationLevel() sql.IsolationLevel {
	return t.level
}

// MarkRollbackOnly flags the transaction so Commit rolls back instead.
// It fails with ErrTxDone once the transaction has finished.
func (t *Tx) MarkRollbackOnly() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.rollbackOnly = true
	return nil
}

// IsRollbackOnly reports whether MarkRollbackOnly was called.
func (t *Tx) IsRollbackOnly() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackOnly
}

// Commit commits the transaction, unless it is marked rollback-only, in which
// case it rolls back and returns ErrRollbackOnly.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if err := t.restore(); err != nil {
		_ = t.tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	if t.rollbackOnly {
		if err := t.tx.Rollback(); err != nil {
			return fmt.Errorf("%w: rollback: %v", ErrRollbackOnly, err)
		}
		return ErrRollbackOnly
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	restoreErr := t.restore()
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return restoreErr
}

// restore turns off connection settings applied at Begin. It runs while the
// transaction still holds the connection.
func (t *Tx) restore() error {
	if !t.dirtyReads {
		return nil
	}
	if _, err := t.tx.Exec("PRAGMA read_uncommitted = false"); err != nil {
		return fmt.Errorf("reset read_uncommitted: %w", err)
	}
	return nil
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// PrepareContext prepares a statement bound to the transaction.
func (t *Tx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return t.tx.PrepareContext(ctx, query)
}

// ParseIsolation parses an isolation level name as written in flags and
// scenario files ("read_committed") or reported by PostgreSQL
// ("read committed"). Empty or "default" means sql.LevelDefault.
func ParseIsolation(s string) (sql.IsolationLevel, error) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "", "default":
		return sql.LevelDefault, nil
	case "read uncommitted":
		return sql.LevelReadUncommitted, nil
	case "read committed":
		return sql.LevelReadCommitted, nil
	case "write committed":
		return sql.LevelWriteCommitted, nil
	case "repeatable read":
		return sql.LevelRepeatableRead, nil
	case "snapshot":
		return sql.LevelSnapshot, nil
	case "serializable":
		return sql.LevelSerializable, nil
	case "linearizable":
		return sql.LevelLinearizable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", s)
	}
}
