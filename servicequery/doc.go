// Package servicequery compiles a plain collection of asynchronous
// data-access functions into a uniform set of read/write/key handles.
//
// # Overview
//
// A service is any mapping from operation name to an async function of
// zero or one parameter:
//
//	type UserService struct {
//		ListUsers func(ctx context.Context) ([]User, error)
//		GetUser   func(ctx context.Context, q UserQuery) (User, error)
//	}
//
// Compile classifies each operation by its declared arity and produces
// one Triad per operation:
//
//	svc, err := servicequery.Compile(rt, UserService{...}, "users")
//	users, err := svc.MustTriad("ListUsers").Read(ctx)
//	user, err := svc.MustTriad("GetUser").ReadWith(ctx, UserQuery{ID: "u-1"})
//	saved, err := svc.MustTriad("SaveUser").Write().Execute(ctx, user)
//
// The dual call shape is a tagged variant fixed at compile time:
// exactly one of Triad.Read/Triad.ReadWith is non-nil, never one
// closure branching on argument shape at call time.
//
// # Reads, writes, keys
//
// Reads derive a stable cache key (namespace, operation, parameter)
// and delegate execution and caching to the runtime; the runtime's
// dedup is correct exactly because equal invocations produce equal
// keys. Writes execute imperatively with no key attached, and on
// success invalidate the operation's tracked read keys (disable with
// WithoutInvalidation). Key derivation is exposed on its own through
// Triad.Key/Triad.KeyFor.
//
// # Key precedence
//
// When several sources could supply a key, the order is explicit:
//
//  1. a key function (per-call WithKeyFunc, else one registered at
//     compile time via WithOperationKeyFunc)
//  2. a caller-supplied key (WithKey, or the reserved queryKey
//     runtime option)
//  3. the default (namespace, operation, parameter) derivation
//
// # Statically-typed adapters
//
// When the operation set is known at compile time, the generic
// constructors skip reflection entirely:
//
//	list := servicequery.NewRead(rt, "users", "ListUsers", store.List)
//	get := servicequery.NewParamRead(rt, "users", "GetUser", store.Get)
//	save := servicequery.NewWrite(rt, "SaveUser", store.Save)
//
// # Errors
//
// Malformed service input, a bad operation signature, or a panicking
// key function surface synchronously as configuration errors (the
// package sentinels). Failures raised by a wrapped operation are never
// caught, wrapped, or renamed; they propagate unchanged into the
// runtime's error channel.
package servicequery
