package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, `null`},
		{"string", "hello", `"hello"`},
		{"no html escape", "<a&b>", `"<a&b>"`},
		{"int", 7, `7`},
		{"int64", int64(-42), `-42`},
		{"uint8", uint8(200), `200`},
		{"bool", true, `true`},
		{"float", 1.5, `1.5`},
		{"bytes", []byte("hi"), `{"$bytes":"aGk="}`},
		{"time", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), `{"$time":"2024-03-01T12:00:00Z"}`},
		{"array", []any{1, "a", nil}, `[1,"a",null]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// e + combining acute accent normalizes to the precomposed form.
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	composed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}
