package engine

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitwrite/internal/decode"
	"github.com/roach88/splitwrite/internal/ir"
	"github.com/roach88/splitwrite/internal/testutil"
)

var (
	mergeBase = ir.Carrier{Label: "base", SQL: "SELECT id, name FROM animal"}
	mergeExt  = ir.Carrier{Label: "ext", SQL: "SELECT id, breed FROM dog"}
)

func animal(id int64, name string) ir.RawRow {
	return testutil.Row("id", id, "name", name)
}

func dog(id int64, breed string) ir.RawRow {
	return testutil.Row("id", id, "breed", breed)
}

func TestMergeReturning_CompleteInBaseOrder(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(3, "rex"), animal(1, "fido"), animal(2, "spot"))).
		On("ext", testutil.Rows(dog(1, "lab"), dog(2, "pug"), dog(3, "collie")))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	require.NoError(t, err)
	assert.Equal(t, []ir.Record{
		{"id": int64(3), "name": "rex", "breed": "collie"},
		{"id": int64(1), "name": "fido", "breed": "lab"},
		{"id": int64(2), "name": "spot", "breed": "pug"},
	}, recs)
}

func TestMergeReturning_Empty(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows()).
		On("ext", testutil.Rows())

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMergeReturning_ProjectionCountMismatch(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"), animal(2, "spot"), animal(3, "rex"))).
		On("ext", testutil.Rows(dog(3, "collie"), dog(1, "lab")))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	assert.Nil(t, recs)
	assert.True(t, IsReadConsistency(err))

	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeProjectionCountMismatch, ce.Code)
	assert.Equal(t, int64(3), ce.Parent)
	assert.Equal(t, int64(2), ce.Child)
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, []int{1}, ce.Indices)
	assert.Equal(t, int64(2), ce.Identity)
}

func TestMergeReturning_OrphanedExtensionRow(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"))).
		On("ext", testutil.Rows(dog(1, "lab"), dog(9, "ghost")))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	assert.Nil(t, recs, "no partial result")

	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeOrphanedExtensionRow, ce.Code)
	assert.Equal(t, int64(9), ce.Identity)
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, "extension", ce.Side)
}

func TestMergeReturning_MissingIdentity(t *testing.T) {
	tests := []struct {
		name string
		base ir.RawRow
	}{
		{"null identity", testutil.Row("id", nil, "name", "anon")},
		{"identity column absent", testutil.Row("name", "anon")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := testutil.NewFakeRunner().On("base", testutil.Rows(animal(1, "fido"), tc.base))

			_, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")

			var ce *ConsistencyError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, ErrCodeMissingIdentity, ce.Code)
			assert.Equal(t, 1, ce.Index)
			assert.Equal(t, 0, r.CallCount("ext"), "extension query never runs")
		})
	}
}

func TestMergeReturning_DuplicateIdentity(t *testing.T) {
	t.Run("base", func(t *testing.T) {
		r := testutil.NewFakeRunner().On("base", testutil.Rows(animal(1, "fido"), animal(1, "rex")))

		_, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
		assert.Equal(t, ErrCodeDuplicateIdentity, CodeOf(err))
	})

	t.Run("extension", func(t *testing.T) {
		r := testutil.NewFakeRunner().
			On("base", testutil.Rows(animal(1, "fido"), animal(2, "spot"))).
			On("ext", testutil.Rows(dog(1, "lab"), dog(1, "pug")))

		_, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")

		var ce *ConsistencyError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, ErrCodeDuplicateIdentity, ce.Code)
		assert.Equal(t, "extension", ce.Side)
		assert.Equal(t, 1, ce.Index)
	})
}

func TestMergeReturning_DescribedColumns(t *testing.T) {
	base := mergeBase
	base.Columns = []ir.Column{
		{Name: "id", Decode: decode.Int64},
		{Name: "name", Field: "Name", Decode: decode.String},
	}
	ext := mergeExt
	ext.Columns = []ir.Column{
		{Name: "id", Decode: decode.Int64},
		{Name: "good", Field: "Good", Decode: decode.Bool},
	}
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(testutil.Row("id", "7", "name", []byte("fido")))).
		On("ext", testutil.Rows(testutil.Row("id", int64(7), "good", int64(1))))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), base, ext, "id")
	require.NoError(t, err)
	assert.Equal(t, []ir.Record{{"id": int64(7), "Name": "fido", "Good": true}}, recs)
}

func TestMergeReturning_DecodeFailure(t *testing.T) {
	ext := mergeExt
	ext.Columns = []ir.Column{{Name: "id", Decode: decode.Int64}}
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"))).
		On("ext", testutil.Rows(testutil.Row("id", "one")))

	_, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, ext, "id")

	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeDecodeFailure, ce.Code)
	assert.Equal(t, "extension", ce.Side)
	assert.Error(t, ce.Cause)
}

func TestMergeReturning_QueryFault(t *testing.T) {
	driverErr := errors.New("no such table: dog")
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"))).
		On("ext", testutil.Fail(driverErr))

	_, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	assert.True(t, IsExecutionFault(err))
	assert.ErrorIs(t, err, driverErr)
}

func TestMergeReturning_NeverMarksRollbackOnly(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"))).
		On("ext", testutil.Rows(dog(2, "ghost")))
	ctx, tx := txContext(sql.LevelReadCommitted)

	_, err := newTestEngine(t, r).MergeReturning(ctx, mergeBase, mergeExt, "id")
	require.Error(t, err)
	assert.Equal(t, 0, tx.Marks())
}

func TestMergeReturning_NoTransactionRequired(t *testing.T) {
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(animal(1, "fido"))).
		On("ext", testutil.Rows(dog(1, "lab")))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), mergeBase, mergeExt, "id")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestMergeReturning_ExtensionFieldWins(t *testing.T) {
	base := ir.Carrier{Label: "base", SQL: "SELECT id, name, updated FROM animal"}
	ext := ir.Carrier{Label: "ext", SQL: "SELECT id, breed, updated FROM dog"}
	r := testutil.NewFakeRunner().
		On("base", testutil.Rows(testutil.Row("id", int64(1), "name", "fido", "updated", "monday"))).
		On("ext", testutil.Rows(testutil.Row("id", int64(1), "breed", "lab", "updated", "tuesday")))

	recs, err := newTestEngine(t, r).MergeReturning(t.Context(), base, ext, "id")
	require.NoError(t, err)
	assert.Equal(t, []ir.Record{
		{"id": int64(1), "name": "fido", "breed": "lab", "updated": "tuesday"},
	}, recs)
}
