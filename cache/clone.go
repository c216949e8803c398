package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// CloneFunc returns an independent copy of a value. Mutating the copy must
// not affect the original, and vice versa.
type CloneFunc[V any] func(V) V

// Cloner is implemented by result types that know how to copy themselves.
type Cloner[V any] interface {
	Clone() V
}

// ResolveClone picks the isolation strategy for V: explicit if non-nil, then
// V's own Cloner implementation, then plain assignment for types without
// reference semantics. Any other V fails with ErrNotCloneable.
func ResolveClone[V any](explicit CloneFunc[V]) (CloneFunc[V], error) {
	if explicit != nil {
		return explicit, nil
	}
	t := reflect.TypeFor[V]()
	if t.Implements(reflect.TypeFor[Cloner[V]]()) {
		return cloneViaMethod[V], nil
	}
	if isPlain(t) {
		return Identity[V], nil
	}
	return nil, fmt.Errorf("%w: %v (set a Clone func or implement Clone() %v)", ErrNotCloneable, t, t)
}

func cloneViaMethod[V any](v V) V {
	if isNil(v) {
		return v
	}
	return any(v).(Cloner[V]).Clone()
}

// Identity returns v unchanged. Use it as a CloneFunc for result types that
// are never mutated after they are returned.
func Identity[V any](v V) V {
	return v
}

// CloneSlice is a CloneFunc for slices of plain values.
func CloneSlice[S ~[]E, E any](s S) S {
	return slices.Clone(s)
}

// CloneMap is a CloneFunc for maps of plain values.
func CloneMap[M ~map[K]E, K comparable, E any](m M) M {
	return maps.Clone(m)
}

// GobClone deep-copies v through an encoding/gob round trip. It panics if
// v's type cannot be gob encoded; only use it for types whose encoding is
// known to succeed.
func GobClone[V any](v V) V {
	if isNil(v) {
		return v
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		panic(fmt.Sprintf("cache: gob clone of %T: %v", v, err))
	}
	var out V
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		panic(fmt.Sprintf("cache: gob clone of %T: %v", v, err))
	}
	return out
}

// isPlain reports whether copying a value of type t by assignment yields an
// independent value.
func isPlain(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isPlain(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !isPlain(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// isNil reports whether v is a nil pointer, map, slice, func, chan or
// interface.
func isNil[V any](v V) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
