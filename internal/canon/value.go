package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the canonical value types.
// Only Null, String, Int, Float, Bool, Array, and Object implement it.
type Value interface {
	canonValue() // sealed
}

// Null represents a JSON null. An explicit type rather than a nil Value
// so every slot in an Array or Object holds a non-nil Value.
type Null struct{}

func (Null) canonValue() {}

// String represents a string value.
type String string

func (String) canonValue() {}

// Int represents an integer value. Always int64; row ids and sequence
// numbers exceed float64's exact range, so integers never degrade to
// doubles on the way to the hash.
type Int int64

func (Int) canonValue() {}

// Float represents a finite IEEE-754 double. NaN and infinities are
// rejected at construction and at serialization.
type Float float64

func (Float) canonValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) canonValue() {}

// Array represents an ordered list of Values.
type Array []Value

func (Array) canonValue() {}

// Object represents a map of string keys to Values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) canonValue() {}

// NewFloat builds a Float, rejecting NaN and infinities.
func NewFloat(f float64) (Float, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite float %v is not canonicalizable", f)
	}
	return Float(f), nil
}

// SortedKeys returns the object's keys in RFC 8785 canonical order,
// comparing UTF-16 code units. Go's sort.Strings compares UTF-8 bytes,
// which orders supplementary-plane characters differently.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units as required by
// RFC 8785. Surrogate halves of supplementary characters sort below the
// private-use area, the one place this diverges from byte order.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// FromGo converts a plain Go value (as produced by encoding/json or
// yaml.v3 decoding into any) to a Value. json.Number is resolved to Int
// when it parses exactly, Float otherwise. Map keys must be strings.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return NewFloat(float64(val))
	case float64:
		return NewFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q is neither int64 nor float64", val)
		}
		return NewFloat(f)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	case map[any]any:
		// yaml.v3 decodes nested mappings this way
		obj := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v (%T) is not a string", k, k)
			}
			cv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", ks, err)
			}
			obj[ks] = cv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical value: %T", v)
	}
}

// MustFromGo is like FromGo but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromGo(v any) Value {
	cv, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return cv
}

// UnmarshalValue decodes JSON bytes into a Value. Numbers are decoded
// through json.Number so integers stay exact.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// ToGo converts a Value back to plain Go types (nil, bool, string, int64,
// float64, []any, map[string]any), the inverse of FromGo.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}
