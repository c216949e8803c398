package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// MaxKeyLength is the longest canonical form kept verbatim. Longer keys are
// replaced by their SHA-256 digest.
const MaxKeyLength = 512

// CallKey identifies one call: positional arguments in order, then keyword
// arguments sorted by name, each encoded together with its dynamic type.
type CallKey string

// NewCallKey builds the key for args.
// Format: (T(v), ..., "name"=T(v), ...) or sha256:<hex> when too long.
//
// Values are encoded from their contents by reflection; String and GoString
// methods are never consulted. Pointers and channels are keyed by address.
func NewCallKey(args Args) (CallKey, error) {
	key, err := callKey(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUncacheableArguments, err)
	}
	return key, nil
}

// callKey returns the bare reason on failure so callers can add context.
func callKey(args Args) (CallKey, error) {
	return buildKey(args, false)
}

// persistentKey is callKey for keys that outlive the process. An address
// may belong to a different object after a restart, so arguments keyed by
// identity are rejected.
func persistentKey(args Args) (CallKey, error) {
	return buildKey(args, true)
}

func buildKey(args Args, persistent bool) (CallKey, error) {
	e := keyEncoder{persistent: persistent}
	e.b.WriteByte('(')
	for i, v := range args.Positional {
		if i > 0 {
			e.b.WriteString(", ")
		}
		if err := e.arg(v); err != nil {
			return "", fmt.Errorf("positional argument %d: %w", i, err)
		}
	}
	for i, name := range slices.Sorted(maps.Keys(args.Keyword)) {
		if i > 0 || len(args.Positional) > 0 {
			e.b.WriteString(", ")
		}
		e.b.WriteString(strconv.Quote(name))
		e.b.WriteByte('=')
		if err := e.arg(args.Keyword[name]); err != nil {
			return "", fmt.Errorf("keyword argument %q: %w", name, err)
		}
	}
	e.b.WriteByte(')')

	canonical := e.b.String()
	if len(canonical) > MaxKeyLength {
		sum := sha256.Sum256([]byte(canonical))
		return CallKey("sha256:" + hex.EncodeToString(sum[:])), nil
	}
	return CallKey(canonical), nil
}

type keyEncoder struct {
	b          strings.Builder
	persistent bool
}

func (e *keyEncoder) arg(v any) error {
	if v == nil {
		e.b.WriteString("nil")
		return nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Comparable() {
		return fmt.Errorf("%T is not comparable", v)
	}
	return e.value(rv)
}

// value writes T(v), or T@addr for identity-keyed kinds. Unexported fields
// are read through reflect accessors, never Interface.
func (e *keyEncoder) value(rv reflect.Value) error {
	t := rv.Type()
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			e.b.WriteString("nil")
			return nil
		}
		return e.value(rv.Elem())
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			e.b.WriteString(t.String() + "(nil)")
			return nil
		}
		if e.persistent {
			return fmt.Errorf("%v is keyed by address, which does not survive a restart", t)
		}
		e.b.WriteString(t.String())
		e.b.WriteByte('@')
		e.b.WriteString("0x" + strconv.FormatUint(uint64(rv.Pointer()), 16))
		return nil
	}

	e.b.WriteString(t.String())
	e.b.WriteByte('(')
	switch rv.Kind() {
	case reflect.Bool:
		e.b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		e.b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, t.Bits()))
	case reflect.Complex64, reflect.Complex128:
		e.b.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, t.Bits()))
	case reflect.String:
		e.b.WriteString(strconv.Quote(rv.String()))
	case reflect.Array:
		e.b.WriteByte('[')
		for i := range rv.Len() {
			if i > 0 {
				e.b.WriteString(", ")
			}
			if err := e.value(rv.Index(i)); err != nil {
				return err
			}
		}
		e.b.WriteByte(']')
	case reflect.Struct:
		e.b.WriteByte('{')
		for i := range rv.NumField() {
			if i > 0 {
				e.b.WriteString(", ")
			}
			e.b.WriteString(t.Field(i).Name)
			e.b.WriteByte(':')
			if err := e.value(rv.Field(i)); err != nil {
				return err
			}
		}
		e.b.WriteByte('}')
	default:
		return fmt.Errorf("%v is not comparable", t)
	}
	e.b.WriteByte(')')
	return nil
}
