package servicequery

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/goliatone/go-service-query/query"
)

// Arity classifies an operation by its declared parameter count after
// the context: zero or one. The classification is decided once at
// compile time and is the single source of truth for which call shape
// a triad exposes; no runtime argument-shape sniffing happens.
type Arity int

const (
	// ArityZero marks a parameterless operation: func(ctx) (R, error).
	ArityZero Arity = iota
	// ArityOne marks a parameterized operation: func(ctx, P) (R, error).
	ArityOne
)

// Configuration errors surfaced synchronously at compile time or at
// invocation time. Operation errors are never wrapped in these; they
// propagate untranslated through the runtime.
var (
	ErrNilRuntime       = errors.New("servicequery: runtime is nil")
	ErrInvalidService   = errors.New("servicequery: service must be a map with string keys or a struct")
	ErrEmptyNamespace   = errors.New("servicequery: namespace is required for map services")
	ErrInvalidOperation = errors.New("servicequery: operation must have signature func(ctx) (T, error) or func(ctx, P) (T, error)")
	ErrUnknownOperation = errors.New("servicequery: unknown operation")
	ErrParamType        = errors.New("servicequery: parameter type does not match operation signature")
	ErrMissingParam     = errors.New("servicequery: operation requires exactly one parameter")
	ErrUnexpectedParam  = errors.New("servicequery: operation takes no parameter")
	ErrKeyFunc          = errors.New("servicequery: key derivation failed")
)

func opError(operation string, sentinel error) error {
	return fmt.Errorf("%w: %s", sentinel, operation)
}

// Triad is the compiled read/write/key bundle for one operation. The
// dual call shape is a tagged variant fixed at compile time: exactly
// one of Read/ReadWith is non-nil and exactly one of Key/KeyFor is
// non-nil, matching the operation's arity. Write is always present.
// Triads are immutable and safe for unbounded concurrent use.
type Triad struct {
	// Name is the operation name, unique within the service.
	Name string

	// Arity records the compile-time classification.
	Arity Arity

	// Read resolves the cached read of a parameterless operation.
	// Options configure the runtime, never the wrapped operation.
	Read func(ctx context.Context, opts ...Option) (any, error)

	// ReadWith resolves the cached read of a parameterized operation;
	// the wrapped operation receives exactly param.
	ReadWith func(ctx context.Context, param any, opts ...Option) (any, error)

	// Write arms an imperative mutation for the operation.
	Write func(opts ...Option) *Mutation

	// Key derives the cache key of a parameterless operation.
	Key func() (query.Key, error)

	// KeyFor derives the cache key of a parameterized operation.
	KeyFor func(param any) (query.Key, error)
}

// CompiledService is the immutable triad table produced by Compile. It
// holds no mutable state beyond the key registry used for
// invalidation; concurrent calls into any number of triads never
// interfere at this layer.
type CompiledService struct {
	namespace  string
	runtime    query.Runtime
	serializer query.KeySerializer
	triads     map[string]*Triad
	registry   *keyRegistry
}

// CompileOption configures the compilation of one service.
type CompileOption func(*compileConfig)

type compileConfig struct {
	serializer query.KeySerializer
	keyFuncs   map[string]query.KeyFunc
	defaults   []Option
}

// WithSerializer overrides the key serializer used by every triad of
// the compiled service.
func WithSerializer(s query.KeySerializer) CompileOption {
	return func(c *compileConfig) {
		c.serializer = s
	}
}

// WithOperationKeyFunc registers a key derivation function for one
// operation. It takes precedence over caller-supplied keys and the
// default derivation. Compile fails with ErrUnknownOperation when the
// named operation does not exist in the service.
func WithOperationKeyFunc(operation string, fn query.KeyFunc) CompileOption {
	return func(c *compileConfig) {
		c.keyFuncs[operation] = fn
	}
}

// WithAdapterDefaults applies the given invocation options to every
// read and write of the compiled service, ahead of per-call options.
func WithAdapterDefaults(opts ...Option) CompileOption {
	return func(c *compileConfig) {
		c.defaults = append(c.defaults, opts...)
	}
}

// Compile iterates the named operations of service and produces one
// triad per function-valued entry, classified by declared arity.
// service must be a map with string keys or a (pointer to a) struct;
// anything else fails fast. Non-function entries are skipped. An empty
// namespace is derived from the struct type name for struct services
// and is an error for map services.
func Compile(rt query.Runtime, service any, namespace string, opts ...CompileOption) (*CompiledService, error) {
	if rt == nil {
		return nil, ErrNilRuntime
	}

	cfg := &compileConfig{
		serializer: query.NewDefaultKeySerializer(),
		keyFuncs:   map[string]query.KeyFunc{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	entries, typeName, err := serviceEntries(service)
	if err != nil {
		return nil, err
	}

	if namespace == "" {
		if typeName == "" {
			return nil, ErrEmptyNamespace
		}
		namespace = toSnake(typeName)
	}

	svc := &CompiledService{
		namespace:  namespace,
		runtime:    rt,
		serializer: cfg.serializer,
		triads:     make(map[string]*Triad, len(entries)),
		registry:   newKeyRegistry(),
	}

	for _, entry := range entries {
		triad, err := svc.compileOperation(entry.name, entry.fn, cfg)
		if err != nil {
			return nil, err
		}
		svc.triads[entry.name] = triad
	}

	// A key function registered for a name no triad carries is a typo,
	// not a no-op: surface it instead of silently using the default
	// derivation for the operation the caller meant.
	registered := make([]string, 0, len(cfg.keyFuncs))
	for operation := range cfg.keyFuncs {
		registered = append(registered, operation)
	}
	sort.Strings(registered)
	for _, operation := range registered {
		if _, ok := svc.triads[operation]; !ok {
			return nil, opError(operation, ErrUnknownOperation)
		}
	}

	return svc, nil
}

type serviceEntry struct {
	name string
	fn   reflect.Value
}

// serviceEntries enumerates the function-valued entries of a service
// value. Returns the struct type name for default-namespace
// derivation; empty for map services.
func serviceEntries(service any) ([]serviceEntry, string, error) {
	if service == nil {
		return nil, "", ErrInvalidService
	}

	rv := reflect.ValueOf(service)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, "", ErrInvalidService
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, "", ErrInvalidService
		}
		if rv.IsNil() {
			return nil, "", ErrInvalidService
		}
		var entries []serviceEntry
		iter := rv.MapRange()
		for iter.Next() {
			value := iter.Value()
			if value.Kind() == reflect.Interface && !value.IsNil() {
				value = value.Elem()
			}
			if value.Kind() != reflect.Func || value.IsNil() {
				continue
			}
			entries = append(entries, serviceEntry{name: iter.Key().String(), fn: value})
		}
		sortEntries(entries)
		return entries, "", nil

	case reflect.Struct:
		rt := rv.Type()
		var entries []serviceEntry
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			value := rv.Field(i)
			if value.Kind() != reflect.Func || value.IsNil() {
				continue
			}
			entries = append(entries, serviceEntry{name: field.Name, fn: value})
		}
		sortEntries(entries)
		return entries, rt.Name(), nil

	default:
		return nil, "", ErrInvalidService
	}
}

func sortEntries(entries []serviceEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
}

// classifyOperation validates an operation's declared signature and
// returns its arity. Accepted shapes are func(context.Context) (T, error)
// and func(context.Context, P) (T, error).
func classifyOperation(name string, fnType reflect.Type) (Arity, error) {
	if fnType.NumOut() != 2 {
		return 0, opError(name, ErrInvalidOperation)
	}

	errorType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errorType) {
		return 0, opError(name, ErrInvalidOperation)
	}

	contextType := reflect.TypeOf((*context.Context)(nil)).Elem()
	if fnType.NumIn() < 1 || !fnType.In(0).Implements(contextType) {
		return 0, opError(name, ErrInvalidOperation)
	}

	switch fnType.NumIn() {
	case 1:
		return ArityZero, nil
	case 2:
		return ArityOne, nil
	default:
		// Go operations take a single params struct; more than one
		// non-context parameter is a malformed service entry.
		return 0, opError(name, ErrInvalidOperation)
	}
}

// newInvoker builds the reflective bridge from (ctx, param) to the
// operation's concrete signature.
func newInvoker(name string, fn reflect.Value) func(ctx context.Context, param any) (any, error) {
	fnType := fn.Type()

	return func(ctx context.Context, param any) (any, error) {
		in := []reflect.Value{reflect.ValueOf(ctx)}
		if fnType.NumIn() == 2 {
			paramType := fnType.In(1)
			pv := reflect.ValueOf(param)
			switch {
			case param == nil:
				pv = reflect.Zero(paramType)
			case !pv.Type().AssignableTo(paramType):
				return nil, fmt.Errorf("%w: %s: got %T, want %s", ErrParamType, name, param, paramType)
			}
			in = append(in, pv)
		}

		out := fn.Call(in)

		var result any
		if rv := out[0]; rv.IsValid() && rv.CanInterface() {
			result = rv.Interface()
		}

		var err error
		if ev := out[1]; ev.IsValid() && !ev.IsNil() {
			err = ev.Interface().(error)
		}

		return result, err
	}
}

// compileOperation builds the triad for one classified operation.
func (s *CompiledService) compileOperation(name string, fn reflect.Value, cfg *compileConfig) (*Triad, error) {
	arity, err := classifyOperation(name, fn.Type())
	if err != nil {
		return nil, err
	}

	invoke := newInvoker(name, fn)
	core := &readCore{
		runtime:    s.runtime,
		serializer: s.serializer,
		namespace:  s.namespace,
		operation:  name,
		keyFunc:    cfg.keyFuncs[name],
		registry:   s.registry,
		defaults:   cfg.defaults,
	}

	triad := &Triad{Name: name, Arity: arity}

	switch arity {
	case ArityZero:
		triad.Read = func(ctx context.Context, opts ...Option) (any, error) {
			return core.do(ctx, nil, false, func(ctx context.Context) (any, error) {
				return invoke(ctx, nil)
			}, opts)
		}
		triad.Key = func() (query.Key, error) {
			return core.keyFor(nil, false)
		}

	case ArityOne:
		triad.ReadWith = func(ctx context.Context, param any, opts ...Option) (any, error) {
			return core.do(ctx, param, true, func(ctx context.Context) (any, error) {
				return invoke(ctx, param)
			}, opts)
		}
		triad.KeyFor = func(param any) (query.Key, error) {
			return core.keyFor(param, true)
		}
	}

	defaults := cfg.defaults
	triad.Write = func(opts ...Option) *Mutation {
		// Never append in place: defaults is shared by every triad and
		// every concurrent Write call.
		merged := append(append([]Option(nil), defaults...), opts...)
		return newMutation(s.runtime, name, arity, invoke, core.invalidate, merged)
	}

	return triad, nil
}

// Namespace returns the namespace scoping every key of this service.
func (s *CompiledService) Namespace() string {
	return s.namespace
}

// Triad returns the compiled triad for one operation.
func (s *CompiledService) Triad(operation string) (*Triad, bool) {
	t, ok := s.triads[operation]
	return t, ok
}

// MustTriad returns the compiled triad for one operation, panicking if
// the operation does not exist. Intended for wiring at startup where a
// missing operation is a programming error.
func (s *CompiledService) MustTriad(operation string) *Triad {
	t, ok := s.triads[operation]
	if !ok {
		panic(opError(operation, ErrUnknownOperation))
	}
	return t
}

// Operations returns the compiled operation names in sorted order.
func (s *CompiledService) Operations() []string {
	names := make([]string, 0, len(s.triads))
	for name := range s.triads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invalidate drops the tracked cached reads of one operation.
func (s *CompiledService) Invalidate(ctx context.Context, operation string) error {
	t, ok := s.triads[operation]
	if !ok {
		return opError(operation, ErrUnknownOperation)
	}

	base := s.serializer.SerializeKey(query.NewKey(s.namespace, t.Name))
	keys := s.registry.keysWithPrefix(base)
	if len(keys) == 0 {
		return nil
	}
	if err := s.runtime.Invalidate(ctx, keys...); err != nil {
		return err
	}
	s.registry.forget(keys...)
	return nil
}

// InvalidateAll drops every tracked cached read of this service.
func (s *CompiledService) InvalidateAll(ctx context.Context) error {
	keys := s.registry.all()
	if len(keys) == 0 {
		return nil
	}
	if err := s.runtime.Invalidate(ctx, keys...); err != nil {
		return err
	}
	s.registry.forget(keys...)
	return nil
}

// InvalidateTags drops the tracked cached reads registered under any
// of the given tags (see WithCacheTags).
func (s *CompiledService) InvalidateTags(ctx context.Context, tags ...string) error {
	keys := s.registry.keysWithTags(tags...)
	if len(keys) == 0 {
		return nil
	}
	if err := s.runtime.Invalidate(ctx, keys...); err != nil {
		return err
	}
	s.registry.forget(keys...)
	return nil
}
