package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the stored form of time columns. It is fixed width and
// always UTC, so ordering the text orders the instants.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one row keyed by column name.
type Record map[string]any

// ID returns the id column, 0 when absent.
func (r Record) ID() int64 { return r.Int(IDColumn) }

func (r Record) Int(col string) int64 {
	v, _ := r[col].(int64)
	return v
}

func (r Record) Float(col string) float64 {
	v, _ := r[col].(float64)
	return v
}

func (r Record) String(col string) string {
	v, _ := r[col].(string)
	return v
}

func (r Record) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Time returns the column as a time, the zero time when unset or unparseable.
func (r Record) Time(col string) time.Time {
	v, _ := r[col].(time.Time)
	return v
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Normalize returns a copy of rec holding only known columns of t, each
// coerced to the canonical Go type of its kind.
func Normalize(t Table, rec Record) (Record, error) {
	out := make(Record, len(rec))
	for name, v := range rec {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("table %s has no column %q", t.Name, name)
		}
		nv, err := Coerce(col.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", t.Name, name, err)
		}
		out[name] = nv
	}
	return out, nil
}

// Coerce converts v to the canonical type of kind. It accepts the shapes
// produced by database/sql drivers and by encoding/json with UseNumber.
func Coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindInt:
		switch x := v.(type) {
		case nil:
			return int64(0), nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case json.Number:
			return x.Int64()
		case string:
			return strconv.ParseInt(x, 10, 64)
		case []byte:
			return strconv.ParseInt(string(x), 10, 64)
		}
	case KindFloat:
		switch x := v.(type) {
		case nil:
			return float64(0), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		case json.Number:
			return x.Float64()
		case string:
			return strconv.ParseFloat(x, 64)
		case []byte:
			return strconv.ParseFloat(string(x), 64)
		}
	case KindText:
		switch x := v.(type) {
		case nil:
			return "", nil
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case KindBool:
		switch x := v.(type) {
		case nil:
			return false, nil
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case int:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case json.Number:
			n, err := x.Int64()
			return n != 0, err
		}
	case KindTime:
		switch x := v.(type) {
		case nil:
			return time.Time{}, nil
		case time.Time:
			if x.IsZero() {
				return time.Time{}, nil
			}
			return x.UTC(), nil
		case string:
			return parseTime(x), nil
		case []byte:
			return parseTime(string(x)), nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as kind %d", v, kind)
}

// parseTime is lenient: unparseable text yields the zero time, which every
// date filter treats as out of range.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Encode converts a canonical value to its stored form: times become
// TimeLayout text (nil when zero), bools become 0/1, empty nullable text
// becomes nil.
func Encode(col Column, v any) any {
	switch col.Kind {
	case KindTime:
		t, _ := v.(time.Time)
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	case KindBool:
		if b, _ := v.(bool); b {
			return int64(1)
		}
		return int64(0)
	case KindText:
		if s, _ := v.(string); s == "" && col.Nullable {
			return nil
		}
	}
	return v
}

// Compare orders two canonical values of the same kind: -1, 0 or +1.
func Compare(kind Kind, a, b any) int {
	switch kind {
	case KindInt:
		return cmpOrdered(asInt(a), asInt(b))
	case KindFloat:
		return cmpOrdered(asFloat(a), asFloat(b))
	case KindText:
		as, _ := a.(string)
		bs, _ := b.(string)
		return strings.Compare(as, bs)
	case KindBool:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		return cmpOrdered(boolInt(ab), boolInt(bb))
	case KindTime:
		at, _ := a.(time.Time)
		bt, _ := b.(time.Time)
		return at.Compare(bt)
	}
	return 0
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asInt(v any) int64 {
	n, _ := v.(int64)
	return n
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Complete fills every column of t missing from rec with the zero value of
// its kind, so both backends store the same row for a partial insert.
func Complete(t Table, rec Record) Record {
	out := rec.Clone()
	for _, c := range t.Columns {
		if _, ok := out[c.Name]; ok {
			continue
		}
		switch c.Kind {
		case KindInt:
			out[c.Name] = int64(0)
		case KindFloat:
			out[c.Name] = float64(0)
		case KindText:
			out[c.Name] = ""
		case KindBool:
			out[c.Name] = false
		case KindTime:
			out[c.Name] = time.Time{}
		}
	}
	return out
}
