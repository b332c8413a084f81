package ir

import "strings"

// RawRow is one undecoded result row with its column names in driver order.
type RawRow struct {
	Columns []string
	Values  []any
}

// Lookup returns the value of the named column. An exact match wins;
// otherwise the first case-insensitive match is used.
func (r RawRow) Lookup(name string) (any, bool) {
	for i, col := range r.Columns {
		if col == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Record is a decoded projection keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Decoder turns raw rows into records according to column descriptors.
type Decoder interface {
	Decode(row RawRow, cols []Column) (Record, error)
}
