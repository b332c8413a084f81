package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitwrite/internal/ir"
)

func TestColumns_DecodeDescribed(t *testing.T) {
	row := ir.RawRow{
		Columns: []string{"id", "name", "active", "extra"},
		Values:  []any{int64(3), []byte("ada"), int64(1), "ignored"},
	}
	cols := []ir.Column{
		{Name: "id", Decode: Int64},
		{Name: "name", Field: "Name", Decode: String},
		{Name: "active", Decode: Bool},
	}

	rec, err := Columns{}.Decode(row, cols)
	require.NoError(t, err)
	assert.Equal(t, ir.Record{"id": int64(3), "Name": "ada", "active": true}, rec)
}

func TestColumns_NoDescriptorsCopiesRow(t *testing.T) {
	row := ir.RawRow{Columns: []string{"a", "b"}, Values: []any{int64(1), nil}}

	rec, err := Columns{}.Decode(row, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Record{"a": int64(1), "b": nil}, rec)
}

func TestColumns_MissingColumn(t *testing.T) {
	row := ir.RawRow{Columns: []string{"a"}, Values: []any{1}}

	_, err := Columns{}.Decode(row, []ir.Column{{Name: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b" not in result`)
}

func TestColumns_DecodeError(t *testing.T) {
	row := ir.RawRow{Columns: []string{"n"}, Values: []any{"abc"}}

	_, err := Columns{}.Decode(row, []ir.Column{{Name: "n", Decode: Int64}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `decode column "n"`)
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		fn, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}

	fn, err := Lookup("")
	require.NoError(t, err)
	v, err := fn("x")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = Lookup("decimal")
	assert.Error(t, err)
}

func TestDecoders_NullPassesThrough(t *testing.T) {
	for _, name := range Names() {
		fn, err := Lookup(name)
		require.NoError(t, err)
		v, err := fn(nil)
		require.NoError(t, err, name)
		assert.Nil(t, v, name)
	}
}

func TestInt64(t *testing.T) {
	v, err := Int64("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Int64(float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = Int64(3.5)
	assert.Error(t, err)
}

func TestFloat64(t *testing.T) {
	v, err := Float64(int64(2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = Float64([]byte("1.25"))
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)
}

func TestTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	v, err := Time("2024-05-01T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = Time("2024-05-01 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	v, err = Time(want.Unix())
	require.NoError(t, err)
	assert.Equal(t, want, v)

	_, err = Time("yesterday")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	v, err := JSON(`{"a":[1,2]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}}, v)

	_, err = JSON("{")
	assert.Error(t, err)
}

func TestBytesOwnedCopy(t *testing.T) {
	src := []byte("abc")
	v, err := Bytes(src)
	require.NoError(t, err)
	src[0] = 'z'
	assert.Equal(t, []byte("abc"), v)
}
