package engine

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
	"github.com/roach88/splitwrite/internal/testutil"
)

func newTestEngine(t *testing.T, r runner.Runner, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return New(r, append(base, opts...)...)
}

func txContext(level sql.IsolationLevel) (context.Context, *testutil.FakeTx) {
	tx := testutil.NewFakeTx(level)
	return WithTransaction(context.Background(), tx), tx
}

func basicPair(order ir.Order) ir.Pair {
	return ir.Pair{
		Base:      ir.Carrier{Label: "base", SQL: "UPDATE animal SET name = ? WHERE id = ?", Params: []any{"rex", 1}},
		Extension: ir.Carrier{Label: "ext", SQL: "UPDATE dog SET breed = ? WHERE id = ?", Params: []any{"lab", 1}},
		Order:     order,
	}
}

func versionedPair(base, ext bool) ir.Pair {
	p := basicPair(ir.BaseFirst)
	p.Base.Versioned = base
	p.Extension.Versioned = ext
	return p
}

func batchPair(order ir.Order, rows int) ir.BatchPair {
	groups := make([][]any, rows)
	ids := make([]any, rows)
	for i := range groups {
		groups[i] = []any{i + 1}
		ids[i] = int64(100 + i)
	}
	return ir.BatchPair{
		Base:       ir.Carrier{Label: "base", SQL: "UPDATE animal SET seen = 1 WHERE id = ?", Groups: groups},
		Extension:  ir.Carrier{Label: "ext", SQL: "UPDATE dog SET seen = 1 WHERE id = ?", Groups: groups},
		Order:      order,
		Identities: ids,
	}
}

// recordingMetrics captures engine observations.
type recordingMetrics struct {
	mu           sync.Mutex
	outcomes     []string
	rollbackOnly int
	lockFailures int
}

func (m *recordingMetrics) ObserveOperation(operation, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, operation+":"+outcome)
}

func (m *recordingMetrics) ObserveRollbackOnly(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbackOnly++
}

func (m *recordingMetrics) ObserveLockFailure(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockFailures++
}
