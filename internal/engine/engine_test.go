package engine

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitwrite/internal/decode"
	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/testutil"
)

func TestNew_Defaults(t *testing.T) {
	e := New(testutil.NewFakeRunner())

	assert.NotNil(t, e.logger)
	assert.IsType(t, noopMetrics{}, e.metrics)
	assert.IsType(t, UUIDv7Generator{}, e.opIDs)
	assert.IsType(t, decode.Columns{}, e.decoder)
	assert.Equal(t, BatchCollect, e.BatchMode())
	assert.False(t, e.strictVersioning)
}

func TestNew_NilOptionsKeepDefaults(t *testing.T) {
	e := New(testutil.NewFakeRunner(), WithLogger(nil), WithMetrics(nil), WithOpIDGenerator(nil), WithDecoder(nil))

	assert.NotNil(t, e.logger)
	assert.NotNil(t, e.metrics)
	assert.NotNil(t, e.opIDs)
	assert.NotNil(t, e.decoder)
}

func TestEngine_SharedAcrossOperations(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Affected(1), testutil.Affected(1)).
		On("ext", testutil.Affected(0), testutil.Affected(1))
	e := newTestEngine(t, r, WithOpIDGenerator(NewFixedGenerator("op-1", "op-2")))

	ctx1, tx1 := txContext(sql.LevelReadCommitted)
	_, err := e.ExecuteSplit(ctx1, basicPair(ir.BaseFirst))
	require.Error(t, err)

	ctx2, tx2 := txContext(sql.LevelReadCommitted)
	n, err := e.ExecuteSplit(ctx2, basicPair(ir.BaseFirst))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, 1, tx1.Marks())
	assert.Equal(t, 0, tx2.Marks(), "a failed call leaves no state behind")
}
