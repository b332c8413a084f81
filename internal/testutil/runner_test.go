package testutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/runner"
)

func TestFakeRunner_ReplaysInOrder(t *testing.T) {
	r := NewFakeRunner().On("users", Affected(1), Affected(0))
	c := ir.Carrier{Label: "users", SQL: "UPDATE users SET x = 1"}

	n, err := r.Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = r.Execute(context.Background(), c)
	assert.True(t, runner.IsFault(err), "unscripted call should fail")
	assert.Equal(t, 3, r.CallCount("users"))
}

func TestFakeRunner_BatchHookStops(t *testing.T) {
	r := NewFakeRunner().On("b", Counts(1, 0, 1))
	stop := errors.New("stop")

	counts, err := r.ExecuteBatch(context.Background(), ir.Carrier{Label: "b"}, func(i int, n int64) error {
		if n == 0 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int64{1, 0}, counts)
}

func TestFakeRunner_BatchFaultIndex(t *testing.T) {
	r := NewFakeRunner().On("b", Result{Counts: []int64{1, 1}, Err: errors.New("boom")})

	counts, err := r.ExecuteBatch(context.Background(), ir.Carrier{Label: "b"}, nil)
	require.Error(t, err)
	assert.Equal(t, []int64{1, 1}, counts)

	var f *runner.ExecutionFault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, 2, f.Index)
}

func TestFakeRunner_Query(t *testing.T) {
	r := NewFakeRunner().On("q", Rows(Row("id", int64(1), "name", "ada")))

	rows, err := r.Query(context.Background(), ir.Carrier{Label: "q"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "name"}, rows[0].Columns)
	assert.Equal(t, []any{int64(1), "ada"}, rows[0].Values)
	assert.Equal(t, []string{"q"}, r.Labels())
}

func TestFakeTx_CountsMarks(t *testing.T) {
	tx := NewFakeTx(sql.LevelReadCommitted)
	assert.Equal(t, sql.LevelReadCommitted, tx.IsolationLevel())

	require.NoError(t, tx.MarkRollbackOnly())
	assert.Equal(t, 1, tx.Marks())

	tx.FailMarks(sql.ErrTxDone)
	assert.ErrorIs(t, tx.MarkRollbackOnly(), sql.ErrTxDone)
	assert.Equal(t, 2, tx.Marks())
}
