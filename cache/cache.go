package cache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Sentinel errors for cache operations.
var (
	ErrNilFunc              = errors.New("cache: function is nil")
	ErrMissingName          = errors.New("cache: name is required")
	ErrUncacheableArguments = errors.New("cache: uncacheable arguments")
	ErrNotCloneable         = errors.New("cache: result type is not cloneable")
	ErrNotPersistable       = errors.New("cache: result type cannot be persisted")
	ErrStorageUnavailable   = errors.New("cache: storage unavailable")
	ErrInvalidWindow        = errors.New("cache: window must not be negative")
)

// Args holds the arguments of one call.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Positional builds Args from positional values.
func Positional(values ...any) Args {
	return Args{Positional: values}
}

// With returns a copy of a with keyword argument name set to value.
func (a Args) With(name string, value any) Args {
	kw := make(map[string]any, len(a.Keyword)+1)
	maps.Copy(kw, a.Keyword)
	kw[name] = value
	return Args{Positional: a.Positional, Keyword: kw}
}

// String renders the call arguments for error messages.
func (a Args) String() string {
	parts := make([]string, 0, len(a.Positional)+len(a.Keyword))
	for _, v := range a.Positional {
		parts = append(parts, fmt.Sprintf("%#v", v))
	}
	for _, name := range slices.Sorted(maps.Keys(a.Keyword)) {
		parts = append(parts, fmt.Sprintf("%s=%#v", name, a.Keyword[name]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Func is the signature of a memoizable computation.
type Func[V any] func(ctx context.Context, args Args) (V, error)

// Invoker is implemented by every caching strategy.
//
// Contract:
// - Errors: errors from the wrapped Func are returned unchanged and never cached.
// - Keys: arguments that cannot form a CallKey fail with ErrUncacheableArguments.
type Invoker[V any] interface {
	Invoke(ctx context.Context, args Args) (V, error)
}

// uncacheable names the call and the memoized function a key failure came from.
func uncacheable(name string, args Args, reason error) error {
	return fmt.Errorf("%w %s passed to memoized function %q: %v", ErrUncacheableArguments, args, name, reason)
}

var (
	_ Invoker[int] = (*TTLCache[int])(nil)
	_ Invoker[int] = (*DiskBackedCache[int])(nil)
	_ Invoker[int] = (*Memoizer[int])(nil)
	_ Invoker[int] = (*LazyPersistentCache[int])(nil)

	_ Flusher = (*LazyPersistentCache[int])(nil)
	_ Flusher = (*DiskBackedCache[int])(nil)
)
