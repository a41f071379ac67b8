// Package query defines the boundary between the service adapter layer
// and the external caching/query runtime.
//
// # Overview
//
// The package exports three things:
//
//   - Key and KeySerializer: the ordered (namespace, operation,
//     parameter) cache key tuple and its deterministic string encoding
//   - Runtime: the execution primitive for cached reads and imperative
//     mutations, consumed but never implemented by the adapter layer
//   - Config/NewRuntime/NewMemoryRuntime: constructors for the built-in
//     sturdyc-backed and in-memory runtime implementations
//
// # Keys
//
// A Key is structurally comparable: two invocations of the same
// operation with structurally equal parameters encode to the same
// canonical string, which is what lets the runtime coalesce and
// deduplicate in-flight executions. The default serializer uses
// reflection to encode parameters deterministically:
//
//   - Basic types: direct string representation
//   - Pointers: dereferenced, so *T and T encode identically
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs
//   - Structs: exported fields as name:value pairs
//   - Function pointers: %p formatting, stable within a process
//   - Complex types: JSON fallback
//
// Keys whose parameter segment would exceed MaxKeyLength are digested
// with xxhash; equal parameters still produce equal keys.
//
// # Runtime boundary
//
// Runtime.Fetch receives a key plus a pure execution closure and owns
// caching, stampede protection, and freshness. Runtime.Mutate executes
// a write with no key attached. Operation errors flow through both
// untranslated; this layer never wraps or renames them.
//
// The generic helpers recover static types at the seam:
//
//	users, err := query.Fetch(ctx, rt, key.String(), func(ctx context.Context) ([]User, error) {
//		return store.List(ctx)
//	}, nil)
//
// # Reserved options
//
// Request options are an open bag forwarded to the runtime verbatim,
// except for OptionQueryKey and OptionQueryFn which the adapter layer
// always overwrites. Callers configure auxiliary behavior only, such
// as OptionDisableCache.
package query
