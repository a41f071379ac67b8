package servicequery

import (
	"context"

	"github.com/goliatone/go-service-query/query"
	"github.com/google/uuid"
)

// Mutation is one armed write: an imperative trigger bound to a single
// operation. It carries no cache key; mutations are not cache entries.
// Each Mutation gets a uuid so runtime logs can correlate executions.
type Mutation struct {
	id        string
	operation string
	arity     Arity
	runtime   query.Runtime
	exec      func(ctx context.Context, param any) (any, error)
	options   map[string]any
	onSuccess func(ctx context.Context) error
}

// ID returns the correlation identifier for this mutation.
func (m *Mutation) ID() string {
	return m.id
}

// Execute runs the wrapped operation with exactly the parameter given
// here: none for a zero-arity operation, one for a one-arity
// operation. Operation errors pass through untranslated.
func (m *Mutation) Execute(ctx context.Context, param ...any) (any, error) {
	var p any
	switch m.arity {
	case ArityZero:
		if len(param) > 0 {
			return nil, opError(m.operation, ErrUnexpectedParam)
		}
	case ArityOne:
		if len(param) != 1 {
			return nil, opError(m.operation, ErrMissingParam)
		}
		p = param[0]
	}

	bound := func(ctx context.Context) (any, error) {
		return m.exec(ctx, p)
	}

	result, err := m.runtime.Mutate(ctx, m.id, m.operation, bound, m.options)
	if err == nil && m.onSuccess != nil {
		// Best effort, mirrors the cache invalidation that follows a
		// successful write; the mutation result is already committed.
		_ = m.onSuccess(ctx)
	}
	return result, err
}

func newMutation(rt query.Runtime, operation string, arity Arity, exec func(ctx context.Context, param any) (any, error), onSuccess func(ctx context.Context) error, opts []Option) *Mutation {
	o := resolveOptions(nil, opts)

	m := &Mutation{
		id:        uuid.NewString(),
		operation: operation,
		arity:     arity,
		runtime:   rt,
		exec:      exec,
		options:   o.runtimeBag(),
	}
	if o.invalidate {
		m.onSuccess = onSuccess
	}
	return m
}

// Write wraps one parameterized async operation as an imperative
// mutation. Built standalone via NewWrite; the compiler produces the
// equivalent dynamically-typed form on Triad.
type Write[P, R any] struct {
	runtime   query.Runtime
	operation string
	op        func(context.Context, P) (R, error)
	defaults  []Option
}

// NewWrite builds the one-arity write adapter for op.
func NewWrite[P, R any](rt query.Runtime, operation string, op func(context.Context, P) (R, error), defaults ...Option) *Write[P, R] {
	return &Write[P, R]{runtime: rt, operation: operation, op: op, defaults: defaults}
}

// Begin arms a mutation. Options other than the reserved execution
// slot are forwarded to the runtime unmodified.
func (w *Write[P, R]) Begin(opts ...Option) *TypedMutation[P, R] {
	exec := func(ctx context.Context, param any) (any, error) {
		typed, err := query.CastResult[P](param)
		if err != nil {
			return nil, opError(w.operation, ErrParamType)
		}
		return w.op(ctx, typed)
	}
	merged := append(append([]Option(nil), w.defaults...), opts...)
	return &TypedMutation[P, R]{m: newMutation(w.runtime, w.operation, ArityOne, exec, nil, merged)}
}

// TypedMutation is the statically-typed face of Mutation.
type TypedMutation[P, R any] struct {
	m *Mutation
}

// ID returns the correlation identifier for this mutation.
func (t *TypedMutation[P, R]) ID() string {
	return t.m.ID()
}

// Execute runs the wrapped operation with exactly param.
func (t *TypedMutation[P, R]) Execute(ctx context.Context, param P) (R, error) {
	result, err := t.m.Execute(ctx, param)
	if err != nil {
		var zero R
		return zero, err
	}
	return query.CastResult[R](result)
}

// Write0 wraps one parameterless async operation as an imperative
// mutation.
type Write0[R any] struct {
	runtime   query.Runtime
	operation string
	op        func(context.Context) (R, error)
	defaults  []Option
}

// NewWrite0 builds the zero-arity write adapter for op.
func NewWrite0[R any](rt query.Runtime, operation string, op func(context.Context) (R, error), defaults ...Option) *Write0[R] {
	return &Write0[R]{runtime: rt, operation: operation, op: op, defaults: defaults}
}

// Begin arms a mutation.
func (w *Write0[R]) Begin(opts ...Option) *TypedMutation0[R] {
	exec := func(ctx context.Context, _ any) (any, error) {
		return w.op(ctx)
	}
	merged := append(append([]Option(nil), w.defaults...), opts...)
	return &TypedMutation0[R]{m: newMutation(w.runtime, w.operation, ArityZero, exec, nil, merged)}
}

// TypedMutation0 is the statically-typed face of a parameterless
// Mutation.
type TypedMutation0[R any] struct {
	m *Mutation
}

// ID returns the correlation identifier for this mutation.
func (t *TypedMutation0[R]) ID() string {
	return t.m.ID()
}

// Execute runs the wrapped operation.
func (t *TypedMutation0[R]) Execute(ctx context.Context) (R, error) {
	result, err := t.m.Execute(ctx)
	if err != nil {
		var zero R
		return zero, err
	}
	return query.CastResult[R](result)
}
