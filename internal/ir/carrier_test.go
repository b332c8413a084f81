package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairSequence(t *testing.T) {
	base := Carrier{Label: "person"}
	ext := Carrier{Label: "employee"}

	first, second, fs, ss := Pair{Base: base, Extension: ext, Order: BaseFirst}.Sequence()
	assert.Equal(t, "person", first.Label)
	assert.Equal(t, "employee", second.Label)
	assert.Equal(t, SideBase, fs)
	assert.Equal(t, SideExtension, ss)

	first, second, fs, ss = Pair{Base: base, Extension: ext, Order: ExtensionFirst}.Sequence()
	assert.Equal(t, "employee", first.Label)
	assert.Equal(t, "person", second.Label)
	assert.Equal(t, SideExtension, fs)
	assert.Equal(t, SideBase, ss)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, BaseFirst, o)

	o, err = ParseOrder("Extension_First")
	require.NoError(t, err)
	assert.Equal(t, ExtensionFirst, o)
	assert.Equal(t, "extension_first", o.String())

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestBatchPair_IdentityAt(t *testing.T) {
	p := BatchPair{
		Base:       Carrier{Groups: [][]any{{1}, {2}, {3}}},
		Identities: []any{"a", "b"},
	}
	assert.Equal(t, 3, p.GroupCount())
	assert.Equal(t, "b", p.IdentityAt(1))
	assert.Nil(t, p.IdentityAt(2))
	assert.Nil(t, p.IdentityAt(-1))
}

func TestMixed(t *testing.T) {
	assert.False(t, Pair{}.Mixed())
	assert.True(t, Pair{Base: Carrier{Versioned: true}}.Mixed())
	assert.False(t, BatchPair{Base: Carrier{Versioned: true}, Extension: Carrier{Versioned: true}}.Mixed())
}

func TestRawRowLookup(t *testing.T) {
	row := RawRow{Columns: []string{"ID", "name"}, Values: []any{int64(1), "ada"}}

	v, ok := row.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	v, ok = row.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	_, ok = row.Lookup("missing")
	assert.False(t, ok)
}

func TestColumnFieldName(t *testing.T) {
	assert.Equal(t, "name", Column{Name: "name"}.FieldName())
	assert.Equal(t, "Name", Column{Name: "name", Field: "Name"}.FieldName())
}
