package testutil

import (
	"database/sql"
	"sync"
)

// FakeTx is a transaction stand-in with a fixed isolation level that counts
// rollback-only marks.
//
// Thread-safety: FakeTx is safe for concurrent use via internal mutex.
type FakeTx struct {
	mu      sync.Mutex
	level   sql.IsolationLevel
	markErr error
	marks   int
}

// NewFakeTx creates a transaction reporting level.
func NewFakeTx(level sql.IsolationLevel) *FakeTx {
	return &FakeTx{level: level}
}

// FailMarks makes every MarkRollbackOnly call return err.
func (t *FakeTx) FailMarks(err error) *FakeTx {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markErr = err
	return t
}

// IsolationLevel returns the configured level.
func (t *FakeTx) IsolationLevel() sql.IsolationLevel {
	return t.level
}

// MarkRollbackOnly records the call and returns the configured error.
func (t *FakeTx) MarkRollbackOnly() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks++
	return t.markErr
}

// Marks returns how many times MarkRollbackOnly was called.
func (t *FakeTx) Marks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marks
}
