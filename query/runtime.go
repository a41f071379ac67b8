package query

import (
	"context"
	"errors"
)

// Reserved option names. The adapter layer always overwrites these
// before a request reaches the runtime; callers can only influence
// auxiliary behavior through the options bag.
const (
	// OptionQueryKey carries a caller-supplied key. It participates in
	// key precedence (registered key function > caller key > derived
	// default) and is stripped from the bag before forwarding.
	OptionQueryKey = "queryKey"

	// OptionQueryFn is the execution-function slot. Callers may not
	// redefine how the wrapped call is produced.
	OptionQueryFn = "queryFn"

	// OptionDisableCache asks the runtime to bypass its cache and
	// execute the fetch directly. Honored by the built-in runtimes.
	OptionDisableCache = "disableCache"
)

// FetchFn is the function signature a read or mutation hands to the
// runtime for execution against the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Runtime is the external caching/query execution boundary. The
// adapter layer's only obligations to it are a pure execution closure
// that calls the wrapped operation with the correct parameter, and a
// stable key for reads. Everything else, caching, coalescing, retries,
// freshness, belongs to the implementation.
//
// fetchFn and execFn must be FetchFn[T] for some T; the adapter layer
// always produces func(context.Context) (any, error) closures, but
// runtimes accept any conforming shape via reflection. The options bag
// is auxiliary configuration forwarded from the caller verbatim;
// runtimes ignore names they do not recognize.
type Runtime interface {
	// Fetch registers (or reuses) one cached execution identified by
	// key and returns its result. Operation errors pass through
	// untranslated.
	Fetch(ctx context.Context, key string, fetchFn any, options map[string]any) (any, error)

	// Mutate executes one imperative write. No key is involved;
	// mutations are not cache entries. id is an opaque correlation
	// token for logging.
	Mutate(ctx context.Context, id, operation string, execFn any, options map[string]any) (any, error)

	// Invalidate removes the given keys from the cache.
	Invalidate(ctx context.Context, keys ...string) error

	// InvalidatePrefix removes all cached keys starting with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ErrInvalidResultType is returned when a runtime hands back a value
// whose dynamic type does not match the requested result type.
var ErrInvalidResultType = errors.New("query: result type does not match requested type")

// CastResult converts a runtime result to T. A nil interface maps to
// the zero value of T so that nil results for interface and pointer
// types do not panic.
func CastResult[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// Fetch is a type-safe wrapper around Runtime.Fetch.
func Fetch[T any](ctx context.Context, rt Runtime, key string, fetchFn FetchFn[T], options map[string]any) (T, error) {
	result, err := rt.Fetch(ctx, key, fetchFn, options)
	if err != nil {
		var zero T
		return zero, err
	}
	return CastResult[T](result)
}

// Mutate is a type-safe wrapper around Runtime.Mutate.
func Mutate[T any](ctx context.Context, rt Runtime, id, operation string, execFn FetchFn[T], options map[string]any) (T, error) {
	result, err := rt.Mutate(ctx, id, operation, execFn, options)
	if err != nil {
		var zero T
		return zero, err
	}
	return CastResult[T](result)
}
