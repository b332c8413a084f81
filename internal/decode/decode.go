// Package decode converts raw driver values into typed record fields.
//
// Decoders are looked up by type name ("string", "int", "float", "bool",
// "bytes", "time", "json", "any") so scenario files and callers can describe
// result columns declaratively. Every decoder passes SQL NULL through as nil.
package decode

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/roach88/splitwrite/internal/ir"
)

// Columns is the default ir.Decoder: it looks up each described column in the
// row and stores the decoded value under the column's field name.
type Columns struct{}

var _ ir.Decoder = Columns{}

// Decode implements ir.Decoder. A described column missing from the row is an
// error; undescribed row columns are ignored. With no descriptors every row
// column is copied as-is.
func (Columns) Decode(row ir.RawRow, cols []ir.Column) (ir.Record, error) {
	if len(cols) == 0 {
		rec := make(ir.Record, len(row.Columns))
		for i, name := range row.Columns {
			if i < len(row.Values) {
				rec[name] = row.Values[i]
			}
		}
		return rec, nil
	}

	rec := make(ir.Record, len(cols))
	for _, col := range cols {
		raw, ok := row.Lookup(col.Name)
		if !ok {
			return nil, fmt.Errorf("decode: column %q not in result (have %v)", col.Name, row.Columns)
		}
		if col.Decode == nil {
			rec[col.FieldName()] = raw
			continue
		}
		v, err := col.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode column %q: %w", col.Name, err)
		}
		rec[col.FieldName()] = v
	}
	return rec, nil
}

var registry = map[string]ir.DecodeFunc{
	"any":    Any,
	"string": String,
	"int":    Int64,
	"float":  Float64,
	"bool":   Bool,
	"bytes":  Bytes,
	"time":   Time,
	"json":   JSON,
}

// Lookup returns the decoder registered under name. Empty means "any".
func Lookup(name string) (ir.DecodeFunc, error) {
	if name == "" {
		return Any, nil
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown column type %q (known: %v)", name, Names())
	}
	return fn, nil
}

// Names lists registered decoder names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Any returns the value unchanged except that []byte becomes an owned copy.
func Any(v any) (any, error) {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...), nil
	}
	return v, nil
}

// String decodes text columns.
func String(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("cannot decode %T as string", v)
	}
}

// Int64 decodes integer columns.
func Int64(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("cannot decode %v as int: not integral", val)
		}
		return int64(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return parseInt(string(val))
	case string:
		return parseInt(val)
	default:
		return nil, fmt.Errorf("cannot decode %T as int", v)
	}
}

func parseInt(s string) (any, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as int: %w", s, err)
	}
	return n, nil
}

// Float64 decodes real/numeric columns.
func Float64(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int:
		return float64(val), nil
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	default:
		return nil, fmt.Errorf("cannot decode %T as float", v)
	}
}

func parseFloat(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as float: %w", s, err)
	}
	return f, nil
}

// Bool decodes boolean columns, including SQLite's 0/1 integers.
func Bool(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case int64:
		return val != 0, nil
	case []byte:
		return parseBool(string(val))
	case string:
		return parseBool(val)
	default:
		return nil, fmt.Errorf("cannot decode %T as bool", v)
	}
}

func parseBool(s string) (any, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("cannot decode %q as bool: %w", s, err)
	}
	return b, nil
}

// Bytes decodes blob columns into an owned copy.
func Bytes(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), val...), nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("cannot decode %T as bytes", v)
	}
}

// timeLayouts are tried in order for textual timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time decodes timestamps given as time.Time, text or unix seconds.
func Time(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return val.UTC(), nil
	case int64:
		return time.Unix(val, 0).UTC(), nil
	case []byte:
		return parseTime(string(val))
	case string:
		return parseTime(val)
	default:
		return nil, fmt.Errorf("cannot decode %T as time", v)
	}
}

func parseTime(s string) (any, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot decode %q as time", s)
}

// JSON decodes a JSON document stored as text or blob.
func JSON(v any) (any, error) {
	var data []byte
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = val
	case string:
		data = []byte(val)
	default:
		return nil, fmt.Errorf("cannot decode %T as json", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot decode json: %w", err)
	}
	return out, nil
}
