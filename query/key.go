package query

// Key is the ordered cache key tuple for one read operation:
// namespace, operation name, and the optional invocation parameter.
// Two keys are structurally equal when their canonical encodings match,
// which is what the runtime's identity-based cache lookup relies on.
type Key struct {
	Namespace string
	Operation string
	Param     any
	HasParam  bool
}

// NewKey builds a key for a parameterless operation.
func NewKey(namespace, operation string) Key {
	return Key{Namespace: namespace, Operation: operation}
}

// NewParamKey builds a key for a parameterized operation.
func NewParamKey(namespace, operation string, param any) Key {
	return Key{Namespace: namespace, Operation: operation, Param: param, HasParam: true}
}

// KeyFunc derives a caller-defined key from an operation parameter.
// For parameterless operations the adapter passes a nil param.
type KeyFunc func(param any) Key

// DeriveKey returns the default key for an operation invocation.
// It is deterministic and side-effect free: equal inputs always
// produce equal keys.
func DeriveKey(namespace, operation string, param any, hasParam bool) Key {
	if hasParam {
		return NewParamKey(namespace, operation, param)
	}
	return NewKey(namespace, operation)
}

// String returns the canonical encoding of the key using the default
// serializer.
func (k Key) String() string {
	return defaultSerializer.SerializeKey(k)
}

// Equal reports whether two keys have the same canonical encoding.
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}

var defaultSerializer = NewDefaultKeySerializer()
