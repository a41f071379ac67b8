package servicequery

import (
	"sync"
	"testing"
)

func TestKeyRegistry_TrackAndPrefix(t *testing.T) {
	reg := newKeyRegistry()
	reg.track("ns::get")
	reg.track("ns::get::1")
	reg.track("ns::getData")

	keys := reg.keysWithPrefix("ns::get")
	if len(keys) != 2 {
		t.Fatalf("keysWithPrefix() = %v, want the two ns::get keys", keys)
	}
	for _, key := range keys {
		if key == "ns::getData" {
			t.Error("prefix match bled into a sibling operation")
		}
	}
}

func TestKeyRegistry_ConcurrentTagTracking(t *testing.T) {
	reg := newKeyRegistry()

	var wg sync.WaitGroup
	for _, tag := range []string{"t1", "t2", "t3", "t4"} {
		tag := tag
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				reg.track("ns::op", tag)
			}
		}()
	}
	wg.Wait()

	// Every goroutine's tag must survive the concurrent merges.
	for _, tag := range []string{"t1", "t2", "t3", "t4"} {
		keys := reg.keysWithTags(tag)
		if len(keys) != 1 || keys[0] != "ns::op" {
			t.Errorf("keysWithTags(%q) = %v, want [ns::op]", tag, keys)
		}
	}
}

func TestKeyRegistry_TagsAccumulateAcrossCalls(t *testing.T) {
	reg := newKeyRegistry()
	reg.track("ns::op", "t1")
	reg.track("ns::op", "t2")
	reg.track("ns::op") // untagged read must not erase tags

	for _, tag := range []string{"t1", "t2"} {
		if keys := reg.keysWithTags(tag); len(keys) != 1 {
			t.Errorf("keysWithTags(%q) = %v, want [ns::op]", tag, keys)
		}
	}
}

func TestKeyRegistry_Forget(t *testing.T) {
	reg := newKeyRegistry()
	reg.track("ns::op", "t1")
	reg.forget("ns::op")

	if keys := reg.all(); len(keys) != 0 {
		t.Errorf("all() = %v after forget, want empty", keys)
	}
	if keys := reg.keysWithTags("t1"); len(keys) != 0 {
		t.Errorf("keysWithTags() = %v after forget, want empty", keys)
	}
}
