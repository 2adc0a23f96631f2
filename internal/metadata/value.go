// Package metadata holds chunk metadata as tagged scalar values. Vector stores
// only accept strings, numbers and booleans, so everything else is reduced to
// its JSON text when it enters a Metadata map.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind tags the representation held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	// KindJSON is a string holding the JSON encoding of a non-scalar value.
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	}
	return "invalid"
}

// Value is a single metadata value.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func JSON(raw string) Value { return Value{kind: KindJSON, s: raw} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// Int64 returns the integer form of numeric values.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) {
			return int64(v.f), true
		}
	case KindString:
		if n, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// String renders the value as text. Strings and JSON fallbacks come back
// verbatim.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindJSON:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Interface returns the plain Go scalar.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindInvalid:
		return nil
	}
	return v.s
}

// Normalize converts an arbitrary decoded value (typically from YAML
// frontmatter) into a Value. ok is false for nil, which callers drop.
func Normalize(raw any) (v Value, ok bool) {
	switch x := raw.(type) {
	case nil:
		return Value{}, false
	case Value:
		return x, true
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case int:
		return Int(int64(x)), true
	case int8:
		return Int(int64(x)), true
	case int16:
		return Int(int64(x)), true
	case int32:
		return Int(int64(x)), true
	case int64:
		return Int(x), true
	case uint:
		return Int(int64(x)), true
	case uint8:
		return Int(int64(x)), true
	case uint16:
		return Int(int64(x)), true
	case uint32:
		return Int(int64(x)), true
	case uint64:
		if x > math.MaxInt64 {
			return Float(float64(x)), true
		}
		return Int(int64(x)), true
	case float32:
		return Float(float64(x)), true
	case float64:
		return Float(x), true
	case time.Time:
		return String(isoTime(x)), true
	case *time.Time:
		if x == nil {
			return Value{}, false
		}
		return String(isoTime(*x)), true
	case fmt.Stringer:
		return String(x.String()), true
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return JSON(fmt.Sprint(raw)), true
	}
	return JSON(string(data)), true
}

// isoTime prints dates without a clock as YYYY-MM-DD, everything else as
// RFC 3339.
func isoTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

// MarshalJSON writes the value as a JSON primitive.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindInvalid:
		return []byte("null"), nil
	}
	return json.Marshal(v.s)
}

// UnmarshalJSON accepts strings, numbers and booleans. Anything else is kept
// as its JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("metadata: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{', '[':
		*v = JSON(string(data))
	case 'n':
		*v = Value{}
	default:
		if !bytes.ContainsAny(data, ".eE") {
			if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
				*v = Int(n)
				return nil
			}
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("metadata: invalid number %s: %w", data, err)
		}
		*v = Float(f)
	}
	return nil
}
