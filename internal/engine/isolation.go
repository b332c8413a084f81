package engine

import (
	"context"
	"database/sql"
)

// Transaction is the narrow view of the ambient transaction the engine needs.
// It is implemented by the session layer (see store.Tx).
type Transaction interface {
	// IsolationLevel reports the transaction's effective isolation level.
	IsolationLevel() sql.IsolationLevel

	// MarkRollbackOnly flags the transaction so it can only be rolled back.
	// It fails when the transaction already reached a terminal state.
	MarkRollbackOnly() error
}

// MinimumIsolation is the weakest isolation level the two-statement
// protocol tolerates. Anything weaker lets a concurrent reader observe the
// base row updated while the extension row is not.
const MinimumIsolation = sql.LevelReadCommitted

// transactionKey is the context key for the ambient transaction.
type transactionKey struct{}

// WithTransaction returns a context carrying tx as the ambient transaction.
func WithTransaction(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, transactionKey{}, tx)
}

// TransactionFrom extracts the ambient transaction, or nil when none is active.
func TransactionFrom(ctx context.Context) Transaction {
	if tx, ok := ctx.Value(transactionKey{}).(Transaction); ok {
		return tx
	}
	return nil
}

// IsolationSnapshot is a read-only view of the ambient transaction's
// isolation, taken once per operation. It is never cached across operations:
// a reused connection may legitimately change level between calls.
type IsolationSnapshot struct {
	Level   sql.IsolationLevel
	Present bool
}

// SnapshotIsolation captures the isolation view of tx (nil means no transaction).
func SnapshotIsolation(tx Transaction) IsolationSnapshot {
	if tx == nil {
		return IsolationSnapshot{}
	}
	return IsolationSnapshot{Level: tx.IsolationLevel(), Present: true}
}

// Sufficient reports whether the snapshot satisfies MinimumIsolation.
// sql.LevelDefault is an unresolved level and never sufficient.
func (s IsolationSnapshot) Sufficient() bool {
	return s.Present && s.Level >= MinimumIsolation
}

// RequireSufficientIsolation fails with ErrCodeInsufficientIsolation when tx
// is nil or weaker than read committed. It has no side effect on success.
func RequireSufficientIsolation(tx Transaction) error {
	if ce := checkIsolation(SnapshotIsolation(tx)); ce != nil {
		return ce
	}
	return nil
}

func checkIsolation(snap IsolationSnapshot) *ConsistencyError {
	if !snap.Present {
		return newError(ErrCodeInsufficientIsolation,
			"split writes require an active transaction at %s or stronger; none is active", MinimumIsolation)
	}
	if !snap.Sufficient() {
		return newError(ErrCodeInsufficientIsolation,
			"split writes require %s or stronger; transaction is %s", MinimumIsolation, snap.Level)
	}
	return nil
}
