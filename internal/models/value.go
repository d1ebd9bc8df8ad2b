package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ArrayKind
	ObjectKind
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON-shaped tree value: null, bool, number, string, array
// or object. The zero Value is null.
//
// Numbers keep their textual literal so no precision is lost between
// parsing and output.
type Value struct {
	kind Kind
	b    bool
	str  string // string contents or number literal
	arr  []Value
	obj  *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// Number wraps a number literal such as "42" or "1.5e3".
func Number(lit string) Value { return Value{kind: NumberKind, str: lit} }

// Int wraps an integer.
func Int(i int64) Value { return Number(strconv.FormatInt(i, 10)) }

// Float wraps a float64 using the shortest literal that round-trips.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'g', -1, 64)) }

// String wraps a string.
func String(s string) Value { return Value{kind: StringKind, str: s} }

// Array wraps a sequence of values. The slice is not copied.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: ArrayKind, arr: items}
}

// ObjectValue wraps an object. A nil object becomes an empty one.
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: ObjectKind, obj: o}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == NullKind }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == BoolKind }

// AsNumber returns the number literal held by v.
func (v Value) AsNumber() (json.Number, bool) {
	return json.Number(v.str), v.kind == NumberKind
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.kind == StringKind }

// AsArray returns the elements held by v. The returned slice aliases v.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == ArrayKind }

// AsObject returns the object held by v. The returned object aliases v.
func (v Value) AsObject() (*Object, bool) { return v.obj, v.kind == ObjectKind }

// Len returns the number of elements of an array or entries of an
// object, and zero for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case ArrayKind:
		return len(v.arr)
	case ObjectKind:
		return v.obj.Len()
	default:
		return 0
	}
}

// Equal reports whether v and o are structurally equal. Numbers compare
// by value when both literals parse as float64, otherwise by literal.
// Object equality ignores key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case BoolKind:
		return v.b == o.b
	case NumberKind:
		if v.str == o.str {
			return true
		}
		a, errA := strconv.ParseFloat(v.str, 64)
		b, errB := strconv.ParseFloat(o.str, 64)
		return errA == nil && errB == nil && a == b
	case StringKind:
		return v.str == o.str
	case ArrayKind:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case ObjectKind:
		return v.obj.Equal(o.obj)
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case ArrayKind:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Array(items...)
	case ObjectKind:
		return ObjectValue(v.obj.Clone())
	default:
		return v
	}
}

// Native converts v into plain Go values: nil, bool, json.Number, string,
// []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case NullKind:
		return nil
	case BoolKind:
		return v.b
	case NumberKind:
		return json.Number(v.str)
	case StringKind:
		return v.str
	case ArrayKind:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Native()
		}
		return out
	case ObjectKind:
		out := make(map[string]any, v.obj.Len())
		for k, item := range v.obj.All() {
			out[k] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v with object key order preserved.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String renders v as compact JSON.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(data)
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case NullKind:
		buf.WriteString("null")
	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.b))
	case NumberKind:
		buf.WriteString(v.str)
	case StringKind:
		data, err := gojson.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case ArrayKind:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ObjectKind:
		buf.WriteByte('{')
		first := true
		err := v.obj.pairs(func(k string, item Value) error {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := gojson.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			return item.encode(buf)
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode value of kind %s", v.kind)
	}
	return nil
}
