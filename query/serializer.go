package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// MaxKeyLength caps the canonical key length. When the encoded
// parameter segment would push a key past this limit, the segment is
// replaced by an xxhash digest of itself. Determinism is preserved:
// equal parameters digest to equal segments.
const MaxKeyLength = 512

// KeySerializer produces the canonical string encoding of a Key.
// Implementations must be deterministic: structurally equal keys must
// encode identically across calls and across goroutines.
type KeySerializer interface {
	SerializeKey(k Key) string
}

// defaultKeySerializer implements KeySerializer using reflection-based
// serialization. It handles function pointers using %p formatting,
// recursive slices and maps with sorted keys, and falls back to JSON
// for complex types while keeping the encoding deterministic.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey encodes the key tuple as namespace::operation, with an
// appended parameter segment for parameterized operations. The
// parameter segment is omitted entirely, not encoded as empty, when
// the key has no parameter, so zero-arity and one-arity invocations
// can never collide.
func (s *defaultKeySerializer) SerializeKey(k Key) string {
	base := k.Namespace + KeySeparator + k.Operation
	if !k.HasParam {
		return base
	}

	segment := s.serializeValue(k.Param)
	if len(base)+len(KeySeparator)+len(segment) > MaxKeyLength {
		segment = "xxh:" + strconv.FormatUint(xxhash.Sum64String(segment), 16)
	}
	return base + KeySeparator + segment
}

// serializeValue handles individual parameter serialization based on type.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := reflect.TypeOf(v)

	// Function pointers only get %p formatting; stable within a process
	if rt.Kind() == reflect.Func {
		return fmt.Sprintf("func:%p", v)
	}

	// Pointers are dereferenced so *T and T encode identically
	if rt.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	}

	if rt.Kind() == reflect.Slice {
		if rv.IsNil() {
			return "slice:nil"
		}
		return s.serializeList("slice", rv)
	}

	if rt.Kind() == reflect.Array {
		return s.serializeList("array", rv)
	}

	// Maps need sorted keys for determinism
	if rt.Kind() == reflect.Map {
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	}

	if rt.Kind() == reflect.Struct {
		return s.serializeStruct(rv, rt)
	}

	switch rt.Kind() {
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.String:
		return s.serializeString(rv.String())
	}

	if s.isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// serializeList handles slices and arrays recursively.
func (s *defaultKeySerializer) serializeList(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}

	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap handles map serialization with sorted keys for determinism.
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	keys := rv.MapKeys()

	type pair struct {
		key   string
		value reflect.Value
	}
	pairs := make([]pair, len(keys))
	for i, k := range keys {
		pairs[i] = pair{key: s.serializeValue(k.Interface()), value: rv.MapIndex(k)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = fmt.Sprintf("%s=%s", p.key, s.serializeValue(p.value.Interface()))
	}

	return fmt.Sprintf("map[%d]:{%s}", len(encoded), strings.Join(encoded, ","))
}

// serializeStruct handles struct serialization with field names.
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, s.serializeValue(fieldValue.Interface())))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// stringDelimiters are the characters that carry structure in the
// canonical encoding (segment joins, composite braces, field and map
// separators) plus the quote and backslash used by the escaped form.
const stringDelimiters = ",:{}[]=\"\\"

// serializeString emits a string value. Plain strings pass through
// unchanged; a string containing any structural character is quoted so
// that distinct parameters can never collapse into the same encoded
// key. Quoted and unquoted forms cannot collide: an unquoted string
// never contains a double quote, so it never starts with one.
func (s *defaultKeySerializer) serializeString(v string) string {
	if strings.ContainsAny(v, stringDelimiters) {
		return strconv.Quote(v)
	}
	return v
}

// isBasicType checks if a kind represents a basic Go type.
func (s *defaultKeySerializer) isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort.
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v).String())
	}
	return fmt.Sprintf("json:%s", string(data))
}
