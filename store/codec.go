package store

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"
)

// Codec serializes results for a Store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Independence: Unmarshal must produce values sharing no memory with data.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Gob encodes values with encoding/gob. Interface-typed results need their
// concrete types registered with gob.Register.
var Gob Codec = gobCodec{}

// JSON encodes values with encoding/json.
var JSON Codec = jsonCodec{}

type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// envelope lets nil results round-trip: gob refuses a nil pointer at the top
// level but omits a nil field. Gob also omits empty values, so a non-nil
// empty slice or a pointer to a zero value would come back as nil. NonNil
// records that the stored value was not nil; data written without it decodes
// as before.
type envelope[V any] struct {
	NonNil bool
	Value  V
}

// Encode serializes v with c.
func Encode[V any](c Codec, v V) ([]byte, error) {
	data, err := c.Marshal(envelope[V]{NonNil: !isNil(reflect.ValueOf(&v).Elem()), Value: v})
	if err != nil {
		return nil, fmt.Errorf("store: %s encode: %w", c.Name(), err)
	}
	return data, nil
}

// Decode deserializes a value previously produced by Encode.
func Decode[V any](c Codec, data []byte) (V, error) {
	var env envelope[V]
	if err := c.Unmarshal(data, &env); err != nil {
		var zero V
		return zero, fmt.Errorf("store: %s decode: %w", c.Name(), err)
	}
	return restore(env.Value, env.NonNil), nil
}

// restore undoes gob's omission of empty values: a value stored as non-nil
// that decoded as nil is replaced by the empty value of its type.
func restore[V any](v V, nonNil bool) V {
	if !nonNil {
		return v
	}
	rv := reflect.ValueOf(&v).Elem()
	if isNil(rv) {
		if empty, ok := emptyOf(rv.Type()); ok {
			rv.Set(empty)
		}
	}
	return v
}

// emptyOf builds a non-nil empty value of t. Pointer chains are allocated
// down to a zero value. Interfaces, funcs and channels have no such value.
func emptyOf(t reflect.Type) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0), true
	case reflect.Map:
		return reflect.MakeMap(t), true
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if inner, ok := emptyOf(t.Elem()); ok {
			p.Elem().Set(inner)
		}
		return p, true
	default:
		return reflect.Value{}, false
	}
}

func isNil(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// CheckPersistable reports whether values of type V can be encoded by c at
// all, by encoding the zero value. It catches funcs, channels and structs
// without exported fields before any result is computed.
func CheckPersistable[V any](c Codec) error {
	var zero V
	if _, err := c.Marshal(envelope[V]{Value: zero}); err != nil {
		return fmt.Errorf("%w: %v with %s: %v", ErrNotPersistable, reflect.TypeFor[V](), c.Name(), err)
	}
	return nil
}
