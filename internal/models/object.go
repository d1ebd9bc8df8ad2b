package models

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is an insertion-ordered mapping from string keys to Values.
// The zero Object is not usable; create one with NewObject.
type Object struct {
	entries *orderedmap.OrderedMap[string, Value]
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{entries: orderedmap.New[string, Value]()}
}

// newObjectSized creates an empty Object with room for n entries.
func newObjectSized(n int) *Object {
	return &Object{entries: orderedmap.New[string, Value](orderedmap.WithCapacity[string, Value](n))}
}

// ObjectOf builds an Object from alternating key, value pairs. It is a
// convenience for literals in tests and examples.
func ObjectOf(pairs ...any) *Object {
	if len(pairs)%2 != 0 {
		panic("models.ObjectOf: odd number of arguments")
	}
	obj := NewObject()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("models.ObjectOf: key is not a string")
		}
		val, ok := pairs[i+1].(Value)
		if !ok {
			panic("models.ObjectOf: value is not a models.Value")
		}
		obj.Set(key, val)
	}
	return obj
}

// Len returns the number of entries.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.entries.Len()
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	return o.entries.Get(key)
}

// Set stores val under key. An existing key keeps its position; a new key
// is appended.
func (o *Object) Set(key string, val Value) {
	o.entries.Set(key, val)
}

// Delete removes key in constant time. Deleting a missing key is a no-op.
func (o *Object) Delete(key string) {
	o.entries.Delete(key)
}

// Keys returns a snapshot of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.entries.Len())
	for pair := o.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// All iterates over a snapshot of the keys in insertion order, so the
// object may be modified during iteration. Keys deleted before they are
// reached are skipped; values are read at the time they are yielded.
func (o *Object) All() iter.Seq2[string, Value] {
	keys := o.Keys()
	return func(yield func(string, Value) bool) {
		for _, k := range keys {
			v, ok := o.Get(k)
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// pairs walks the live entries without taking a snapshot. The object
// must not be modified while it runs.
func (o *Object) pairs(fn func(string, Value) error) error {
	if o == nil {
		return nil
	}
	for pair := o.entries.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	out := newObjectSized(o.Len())
	_ = o.pairs(func(k string, v Value) error {
		out.Set(k, v.Clone())
		return nil
	})
	return out
}

// Equal reports whether both objects hold equal values under the same
// keys, regardless of order.
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for k, v := range o.All() {
		ov, ok := other.Get(k)
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the object with its key order preserved.
func (o *Object) MarshalJSON() ([]byte, error) {
	return ObjectValue(o).MarshalJSON()
}
