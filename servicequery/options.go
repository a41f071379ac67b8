package servicequery

import (
	"github.com/goliatone/go-service-query/query"
)

// Option configures a single read or write invocation. Options are an
// open bag: anything set through WithRuntimeOption flows to the
// runtime verbatim, except for the reserved key/execution-function
// slots which the adapter always overwrites.
type Option func(*callOptions)

type callOptions struct {
	key        *query.Key
	keyFunc    query.KeyFunc
	invalidate bool
	runtime    map[string]any
}

func newCallOptions() *callOptions {
	return &callOptions{invalidate: true, runtime: map[string]any{}}
}

// resolveOptions folds adapter defaults and per-call options, in that
// order, into one resolved set.
func resolveOptions(defaults, calls []Option) *callOptions {
	o := newCallOptions()
	for _, opt := range defaults {
		opt(o)
	}
	for _, opt := range calls {
		opt(o)
	}
	return o
}

// WithKey supplies a literal cache key for this invocation. A key
// function registered for the operation still takes precedence; see
// the package documentation for the full precedence order.
func WithKey(k query.Key) Option {
	return func(o *callOptions) {
		o.key = &k
	}
}

// WithKeyFunc supplies a key derivation function for this invocation,
// taking the place of any function registered at compile time.
func WithKeyFunc(fn query.KeyFunc) Option {
	return func(o *callOptions) {
		o.keyFunc = fn
	}
}

// WithRuntimeOption forwards an auxiliary option to the runtime
// unmodified. The reserved names query.OptionQueryKey and
// query.OptionQueryFn are honored for key precedence and then
// overwritten; they never reach the runtime as caller values.
func WithRuntimeOption(name string, value any) Option {
	return func(o *callOptions) {
		o.runtime[name] = value
	}
}

// WithCacheDisabled asks the runtime to bypass its cache for this
// invocation and execute the operation directly.
func WithCacheDisabled() Option {
	return WithRuntimeOption(query.OptionDisableCache, true)
}

// WithoutInvalidation keeps a mutation from invalidating the tracked
// read keys of its operation after a successful execution.
func WithoutInvalidation() Option {
	return func(o *callOptions) {
		o.invalidate = false
	}
}

// callerKey extracts a caller-supplied key, either from WithKey or
// from the reserved queryKey entry of the runtime bag. Key values may
// be a query.Key or a pre-encoded string.
func (o *callOptions) callerKey() (query.Key, string, bool) {
	if o.key != nil {
		return *o.key, "", true
	}
	raw, ok := o.runtime[query.OptionQueryKey]
	if !ok {
		return query.Key{}, "", false
	}
	switch v := raw.(type) {
	case query.Key:
		return v, "", true
	case string:
		return query.Key{}, v, true
	default:
		return query.Key{}, "", false
	}
}

// runtimeBag returns a copy of the auxiliary options with the reserved
// names stripped. The adapter owns those slots.
func (o *callOptions) runtimeBag() map[string]any {
	bag := make(map[string]any, len(o.runtime))
	for name, value := range o.runtime {
		if name == query.OptionQueryKey || name == query.OptionQueryFn {
			continue
		}
		bag[name] = value
	}
	return bag
}
