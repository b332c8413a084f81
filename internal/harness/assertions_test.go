package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitwrite/internal/store"
)

func newAssertionStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DriverSQLite3, store.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Exec(context.Background(), dogSchema+`
INSERT INTO animal (id, name, version) VALUES (1, 'Rex', 3), (2, 'Fido', 1), (3, 'Fido', 1);
INSERT INTO dog (id, breed) VALUES (1, 'beagle');
`))
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "matching row",
			assertion: Assertion{Table: "animal", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "Rex", "version": 3}},
		},
		{
			name:      "row not found",
			assertion: Assertion{Table: "animal", Where: map[string]any{"id": 9}, Expect: map[string]any{"name": "Rex"}},
			wantErr:   "row not found",
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Table: "animal", Where: map[string]any{"name": "Fido"}, Expect: map[string]any{"version": 1}},
			wantErr:   "multiple rows matched",
		},
		{
			name:      "wrong value",
			assertion: Assertion{Table: "animal", Where: map[string]any{"id": 1}, Expect: map[string]any{"version": 4}},
			wantErr:   `field "version" = 4`,
		},
		{
			name:      "unknown field",
			assertion: Assertion{Table: "animal", Where: map[string]any{"id": 1}, Expect: map[string]any{"owner": "Ada"}},
			wantErr:   `field "owner" to exist`,
		},
		{
			name:      "unknown table",
			assertion: Assertion{Table: "cat", Expect: map[string]any{"id": 1}},
			wantErr:   "query error",
		},
		{
			name:      "invalid table name",
			assertion: Assertion{Table: "animal;", Expect: map[string]any{"id": 1}},
			wantErr:   "invalid table name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertFinalState
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRowCount(t *testing.T) {
	st := newAssertionStore(t)
	ctx := context.Background()

	assert.NoError(t, assertRowCount(ctx, st, Assertion{Table: "animal", Count: 3}))
	assert.NoError(t, assertRowCount(ctx, st, Assertion{Table: "animal", Where: map[string]any{"name": "Fido"}, Count: 2}))
	assert.NoError(t, assertRowCount(ctx, st, Assertion{Table: "dog", Where: map[string]any{"id": 2}, Count: 0}))

	err := assertRowCount(ctx, st, Assertion{Table: "dog", Count: 2})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertRowCount, ae.Type)
	assert.Equal(t, "1 row(s)", ae.Actual)
}

func TestEvaluateAssertions(t *testing.T) {
	st := newAssertionStore(t)
	actx := &AssertionContext{Store: st, Ctx: context.Background()}

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRowCount, Table: "animal", Count: 3},
		{Type: AssertRowCount, Table: "dog", Count: 5},
		{Type: "trace_order", Table: "dog"},
	}, actx)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "5 row(s) in dog")
	assert.Contains(t, errs[1], `assertion[2]: unknown assertion type "trace_order"`)

	errs = EvaluateAssertions([]Assertion{{Type: AssertRowCount, Table: "dog"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}

func TestBuildWhereClause(t *testing.T) {
	where := map[string]any{"name": "Rex", "id": 1}

	sqlFrag, args, err := buildWhereClause(nil, where)
	require.NoError(t, err)
	assert.Equal(t, "id = ? AND name = ?", sqlFrag)
	assert.Equal(t, []any{1, "Rex"}, args)

	sqlFrag, args, err = buildWhereClause(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, sqlFrag)
	assert.Nil(t, args)

	_, _, err = buildWhereClause(nil, map[string]any{"id = 1 OR 1": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=1 AND name=Rex", formatWhereClause(map[string]any{"name": "Rex", "id": 1}))
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"nil expected", nil, int64(1), false},
		{"string", "Rex", "Rex", true},
		{"string from bytes", "Rex", []byte("Rex"), true},
		{"string mismatch", "Rex", "Max", false},
		{"int widens", 3, int64(3), true},
		{"int mismatch", 3, int64(4), false},
		{"int64", int64(3), int64(3), true},
		{"int vs string", 3, "3", false},
		{"float", 1.5, 1.5, true},
		{"float vs int column", 2.0, int64(2), true},
		{"bool from integer", true, int64(1), true},
		{"bool false from integer", false, int64(0), true},
		{"bool mismatch", true, int64(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}
