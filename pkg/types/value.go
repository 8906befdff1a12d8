package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind discriminates the closed set of shapes a property value can take.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindMap    ValueKind = "map"
)

// Value is a closed variant type for open property maps. Extraction output is
// dynamically shaped, but downstream consumers pattern-match on Kind instead
// of duck-typing an untyped blob.
type Value struct {
	Kind ValueKind        `json:"-"`
	Str  string           `json:"-"`
	Num  float64          `json:"-"`
	Bool bool             `json:"-"`
	Map  map[string]Value `json:"-"`
}

// StringValue wraps a string as a Value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NumberValue wraps a float64 as a Value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// BoolValue wraps a bool as a Value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// MapValue wraps a nested map as a Value.
func MapValue(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Num == other.Num
	case KindBool:
		return v.Bool == other.Bool
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, val := range v.Map {
			o, ok := other.Map[k]
			if !ok || !val.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a canonical string form of the value, used as an index key.
// String values index as themselves so entity-id objects remain addressable.
func (v Value) Key() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(v.Map[k].Key())
		}
		b.WriteByte('}')
		return b.String()
	}
	return ""
}

// String implements fmt.Stringer using the canonical key form.
func (v Value) String() string {
	return v.Key()
}

// MarshalJSON encodes the value as its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindMap:
		return json.Marshal(v.Map)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes any scalar or object JSON value into the variant.
// Arrays and null are rejected: extraction output never produces them and
// accepting them would reopen the closed set.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("value: cannot decode %q", trimmed)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case '{':
		var m map[string]Value
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = MapValue(m)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value: cannot decode %q", trimmed)
	}
	*v = NumberValue(n)
	return nil
}
