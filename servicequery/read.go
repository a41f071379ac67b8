package servicequery

import (
	"context"
	"fmt"

	"github.com/goliatone/go-service-query/query"
)

// readCore is the arity-independent half of the read adapter: option
// resolution, key precedence, key tracking, and delegation to the
// runtime. The typed Read/ParamRead wrappers and the compiler's triads
// all funnel through it.
type readCore struct {
	runtime    query.Runtime
	serializer query.KeySerializer
	namespace  string
	operation  string
	keyFunc    query.KeyFunc
	registry   *keyRegistry
	defaults   []Option
}

// resolveKey applies the documented precedence order: a key function
// (per-call, then compile-time registered) wins over a caller-supplied
// key, which wins over the default derivation. A panicking key
// function surfaces as a synchronous configuration error, never as a
// bad key.
func (r *readCore) resolveKey(opts *callOptions, param any, hasParam bool) (string, error) {
	fn := opts.keyFunc
	if fn == nil {
		fn = r.keyFunc
	}
	if fn != nil {
		key, err := safeDeriveKey(r.operation, fn, param)
		if err != nil {
			return "", err
		}
		return r.serializer.SerializeKey(key), nil
	}

	if key, encoded, ok := opts.callerKey(); ok {
		if encoded != "" {
			return encoded, nil
		}
		return r.serializer.SerializeKey(key), nil
	}

	return r.serializer.SerializeKey(query.DeriveKey(r.namespace, r.operation, param, hasParam)), nil
}

// do runs one cached read: derive the key, register it for
// invalidation, hand the execution closure to the runtime. Operation
// errors come back untranslated.
func (r *readCore) do(ctx context.Context, param any, hasParam bool, exec func(ctx context.Context) (any, error), calls []Option) (any, error) {
	opts := resolveOptions(r.defaults, calls)

	key, err := r.resolveKey(opts, param, hasParam)
	if err != nil {
		return nil, err
	}

	if r.registry != nil {
		r.registry.track(key, cacheTagsFromContext(ctx)...)
	}

	return r.runtime.Fetch(ctx, key, exec, opts.runtimeBag())
}

// keyFor exposes key derivation without executing the read.
func (r *readCore) keyFor(param any, hasParam bool) (query.Key, error) {
	if r.keyFunc != nil {
		return safeDeriveKey(r.operation, r.keyFunc, param)
	}
	return query.DeriveKey(r.namespace, r.operation, param, hasParam), nil
}

// invalidate drops this operation's tracked keys from the runtime, or
// the whole operation key space when no registry exists.
func (r *readCore) invalidate(ctx context.Context) error {
	base := r.serializer.SerializeKey(query.NewKey(r.namespace, r.operation))
	if r.registry == nil {
		// Segment-aware: the bare key plus base::..., so operations
		// with a shared name prefix stay untouched.
		if err := r.runtime.Invalidate(ctx, base); err != nil {
			return err
		}
		return r.runtime.InvalidatePrefix(ctx, base+query.KeySeparator)
	}

	keys := r.registry.keysWithPrefix(base)
	if len(keys) == 0 {
		return nil
	}
	if err := r.runtime.Invalidate(ctx, keys...); err != nil {
		return err
	}
	r.registry.forget(keys...)
	return nil
}

// safeDeriveKey invokes a caller-registered key function, converting a
// panic into a configuration error so a broken key function cannot
// poison the cache with an arbitrary key.
func safeDeriveKey(operation string, fn query.KeyFunc, param any) (key query.Key, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: operation %q: key function panicked: %v", ErrKeyFunc, operation, r)
		}
	}()
	return fn(param), nil
}

// Read wraps one parameterless async operation as a cached read.
// Built standalone via NewRead; the compiler produces the equivalent
// dynamically-typed form on Triad.
type Read[R any] struct {
	core *readCore
	op   func(context.Context) (R, error)
}

// NewRead builds the zero-arity read adapter for op. The operation
// executes at most once per distinct key per the runtime's freshness
// policy; this adapter only guarantees key stability.
func NewRead[R any](rt query.Runtime, namespace, operation string, op func(context.Context) (R, error), defaults ...Option) *Read[R] {
	return &Read[R]{
		core: &readCore{
			runtime:    rt,
			serializer: query.NewDefaultKeySerializer(),
			namespace:  namespace,
			operation:  operation,
			defaults:   defaults,
		},
		op: op,
	}
}

// Do resolves the cached read. Options configure the runtime, not the
// wrapped operation; the operation itself is called with no parameter.
func (r *Read[R]) Do(ctx context.Context, opts ...Option) (R, error) {
	result, err := r.core.do(ctx, nil, false, func(ctx context.Context) (any, error) {
		return r.op(ctx)
	}, opts)
	if err != nil {
		var zero R
		return zero, err
	}
	return query.CastResult[R](result)
}

// Key returns the derived cache key for this read.
func (r *Read[R]) Key() (query.Key, error) {
	return r.core.keyFor(nil, false)
}

// Invalidate drops this operation's cached entries.
func (r *Read[R]) Invalidate(ctx context.Context) error {
	return r.core.invalidate(ctx)
}

// ParamRead wraps one parameterized async operation as a cached read.
type ParamRead[P, R any] struct {
	core *readCore
	op   func(context.Context, P) (R, error)
}

// NewParamRead builds the one-arity read adapter for op.
func NewParamRead[P, R any](rt query.Runtime, namespace, operation string, op func(context.Context, P) (R, error), defaults ...Option) *ParamRead[P, R] {
	return &ParamRead[P, R]{
		core: &readCore{
			runtime:    rt,
			serializer: query.NewDefaultKeySerializer(),
			namespace:  namespace,
			operation:  operation,
			defaults:   defaults,
		},
		op: op,
	}
}

// Do resolves the cached read for param. The wrapped operation
// receives exactly param; options configure the runtime only.
func (r *ParamRead[P, R]) Do(ctx context.Context, param P, opts ...Option) (R, error) {
	result, err := r.core.do(ctx, param, true, func(ctx context.Context) (any, error) {
		return r.op(ctx, param)
	}, opts)
	if err != nil {
		var zero R
		return zero, err
	}
	return query.CastResult[R](result)
}

// KeyFor returns the derived cache key for param.
func (r *ParamRead[P, R]) KeyFor(param P) (query.Key, error) {
	return r.core.keyFor(param, true)
}

// Invalidate drops this operation's cached entries across all
// parameters.
func (r *ParamRead[P, R]) Invalidate(ctx context.Context) error {
	return r.core.invalidate(ctx)
}
