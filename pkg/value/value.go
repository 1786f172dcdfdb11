// Package value implements the tagged configuration value used by every
// settings section, and the literal syntax the settings file stores it in.
package value

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies the shape of a Value
type Kind uint8

const (
	KindNone Kind = iota
	KindText
	KindNumber
	KindBoolean
	KindList
	KindMapping
	KindPair
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	case KindPair:
		return "pair"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged configuration value. The zero Value is None.
type Value struct {
	kind    Kind
	text    string
	integer int64
	float   float64
	isFloat bool
	boolean bool
	items   []Value
	entries map[string]Value
}

// None returns the empty value
func None() Value { return Value{} }

// Text returns a text value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Int returns an integral number
func Int(n int64) Value { return Value{kind: KindNumber, integer: n} }

// Float returns a floating point number
func Float(f float64) Value { return Value{kind: KindNumber, float: f, isFloat: true} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBoolean, boolean: b} }

// List returns a list holding items
func List(items ...Value) Value {
	return Value{kind: KindList, items: cloneItems(items)}
}

// Pair returns a tuple holding items. Despite the name, any arity is allowed.
func Pair(items ...Value) Value {
	return Value{kind: KindPair, items: cloneItems(items)}
}

// Mapping returns a mapping value
func Mapping(m map[string]Value) Value {
	entries := make(map[string]Value, len(m))
	for k, v := range m {
		entries[k] = v.Clone()
	}
	return Value{kind: KindMapping, entries: entries}
}

// Strings builds a list of text values
func Strings(items ...string) Value {
	out := make([]Value, len(items))
	for i, s := range items {
		out[i] = Text(s)
	}
	return Value{kind: KindList, items: out}
}

// Ints builds a list of integral numbers
func Ints(items ...int64) Value {
	out := make([]Value, len(items))
	for i, n := range items {
		out[i] = Int(n)
	}
	return Value{kind: KindList, items: out}
}

// Kind returns the value kind
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is None
func (v Value) IsNone() bool { return v.kind == KindNone }

// IsEmpty reports whether v is None or the empty text
func (v Value) IsEmpty() bool {
	return v.kind == KindNone || (v.kind == KindText && v.text == "")
}

// Text returns the text of a text value and false for any other kind
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// Int returns the number truncated to an integer
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindNumber:
		if v.isFloat {
			return int64(v.float), true
		}
		return v.integer, true
	case KindBoolean:
		if v.boolean {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Float returns the number as a float64
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isFloat {
		return v.float, true
	}
	return float64(v.integer), true
}

// IsFloat reports whether a number holds a floating point value
func (v Value) IsFloat() bool { return v.kind == KindNumber && v.isFloat }

// Bool returns the truth value. Numbers are true when non-zero, matching how
// the settings file stores most flags as 0/1.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBoolean:
		return v.boolean, true
	case KindNumber:
		if v.isFloat {
			return v.float != 0, true
		}
		return v.integer != 0, true
	}
	return false, false
}

// Items returns a copy of the elements of a list or pair
func (v Value) Items() []Value {
	if v.kind != KindList && v.kind != KindPair {
		return nil
	}
	return cloneItems(v.items)
}

// Len returns the number of elements of a list, pair or mapping
func (v Value) Len() int {
	switch v.kind {
	case KindList, KindPair:
		return len(v.items)
	case KindMapping:
		return len(v.entries)
	case KindText:
		return len(v.text)
	}
	return 0
}

// Index returns the i-th element of a list or pair
func (v Value) Index(i int) (Value, bool) {
	if (v.kind != KindList && v.kind != KindPair) || i < 0 || i >= len(v.items) {
		return None(), false
	}
	return v.items[i], true
}

// Map returns a copy of the entries of a mapping
func (v Value) Map() map[string]Value {
	if v.kind != KindMapping {
		return nil
	}
	out := make(map[string]Value, len(v.entries))
	for k, e := range v.entries {
		out[k] = e.Clone()
	}
	return out
}

// Get returns a mapping entry
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return None(), false
	}
	e, ok := v.entries[key]
	return e, ok
}

// Keys returns the sorted keys of a mapping
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.entries))
	for k := range v.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy
func (v Value) Clone() Value {
	switch v.kind {
	case KindList, KindPair:
		v.items = cloneItems(v.items)
	case KindMapping:
		entries := make(map[string]Value, len(v.entries))
		for k, e := range v.entries {
			entries[k] = e.Clone()
		}
		v.entries = entries
	}
	return v
}

// Equal reports deep equality. Integral and floating numbers compare by
// numeric value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindText:
		return v.text == o.text
	case KindNumber:
		if !v.isFloat && !o.isFloat {
			return v.integer == o.integer
		}
		a, _ := v.Float()
		b, _ := o.Float()
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	case KindBoolean:
		return v.boolean == o.boolean
	case KindList, KindPair:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.entries) != len(o.entries) {
			return false
		}
		for k, e := range v.entries {
			oe, ok := o.entries[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String returns the literal form of v
func (v Value) String() string {
	return Format(v)
}

// ToNative converts v into plain Go values: nil, string, int64, float64,
// bool, []any and map[string]any.
func (v Value) ToNative() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.isFloat {
			return v.float
		}
		return v.integer
	case KindBoolean:
		return v.boolean
	case KindList, KindPair:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.ToNative()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.entries))
		for k, e := range v.entries {
			out[k] = e.ToNative()
		}
		return out
	}
	return nil
}

// FromNative converts plain Go values into a Value. Slices become lists.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return None(), nil
	case Value:
		return t.Clone(), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []string:
		return Strings(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := FromNative(e)
			if err != nil {
				return None(), err
			}
			items[i] = item
		}
		return Value{kind: KindList, items: items}, nil
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			item, err := FromNative(e)
			if err != nil {
				return None(), err
			}
			entries[k] = item
		}
		return Value{kind: KindMapping, entries: entries}, nil
	case map[string]string:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			entries[k] = Text(e)
		}
		return Value{kind: KindMapping, entries: entries}, nil
	}
	return None(), fmt.Errorf("unsupported native type %T", x)
}

func cloneItems(items []Value) []Value {
	if items == nil {
		return []Value{}
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
