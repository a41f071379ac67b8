package servicequery

import (
	"strings"

	"github.com/goliatone/go-service-query/query"
	"github.com/puzpuzpuz/xsync/v3"
)

// keyRegistry tracks the encoded keys a compiled service has handed to
// the runtime, along with any cache tags active when the read ran.
// Invalidation works off this registry: by operation prefix, by tag,
// or wholesale.
type keyRegistry struct {
	keys *xsync.MapOf[string, []string]
}

func newKeyRegistry() *keyRegistry {
	return &keyRegistry{keys: xsync.NewMapOf[string, []string]()}
}

// track records an encoded key. Tags accumulate across calls for the
// same key; the merge runs under Compute so concurrent tagged reads of
// one key cannot drop each other's tags.
func (r *keyRegistry) track(key string, tags ...string) {
	if len(tags) == 0 {
		r.keys.LoadOrStore(key, nil)
		return
	}
	r.keys.Compute(key, func(existing []string, _ bool) ([]string, bool) {
		merged := make([]string, 0, len(existing)+len(tags))
		merged = append(merged, existing...)
		merged = append(merged, tags...)
		return dedupeStrings(merged), false
	})
}

// keysWithPrefix returns tracked keys belonging to the key space
// rooted at base. The match is segment-aware: base itself plus
// base::..., so operations whose names share a prefix never bleed
// into each other.
func (r *keyRegistry) keysWithPrefix(base string) []string {
	var matched []string
	r.keys.Range(func(key string, _ []string) bool {
		if key == base || strings.HasPrefix(key, base+query.KeySeparator) {
			matched = append(matched, key)
		}
		return true
	})
	return matched
}

// keysWithTags returns tracked keys carrying at least one of the tags.
func (r *keyRegistry) keysWithTags(tags ...string) []string {
	if len(tags) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[tag] = struct{}{}
	}

	var matched []string
	r.keys.Range(func(key string, keyTags []string) bool {
		for _, tag := range keyTags {
			if _, ok := wanted[tag]; ok {
				matched = append(matched, key)
				break
			}
		}
		return true
	})
	return matched
}

// all returns every tracked key.
func (r *keyRegistry) all() []string {
	keys := make([]string, 0, r.keys.Size())
	r.keys.Range(func(key string, _ []string) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// forget drops keys from the registry after invalidation.
func (r *keyRegistry) forget(keys ...string) {
	for _, key := range keys {
		r.keys.Delete(key)
	}
}
