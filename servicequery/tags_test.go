package servicequery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-service-query/query"
)

func TestWithCacheTags_Accumulates(t *testing.T) {
	ctx := WithCacheTags(context.Background(), "users", "billing")
	ctx = WithCacheTags(ctx, "billing", "reports", "")

	got := cacheTagsFromContext(ctx)
	want := []string{"users", "billing", "reports"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWithCacheTags_NilContext(t *testing.T) {
	ctx := WithCacheTags(nil, "users")
	if got := cacheTagsFromContext(ctx); len(got) != 1 || got[0] != "users" {
		t.Errorf("tags = %v, want [users]", got)
	}
}

func TestCacheTagsFromContext_Empty(t *testing.T) {
	if got := cacheTagsFromContext(context.Background()); got != nil {
		t.Errorf("tags = %v, want nil", got)
	}
	if got := cacheTagsFromContext(nil); got != nil {
		t.Errorf("tags = %v, want nil", got)
	}
}

func TestInvalidateTags(t *testing.T) {
	var listExecs, getExecs int32
	service := map[string]any{
		"listUsers": func(ctx context.Context) (int32, error) {
			return atomic.AddInt32(&listExecs, 1), nil
		},
		"getConfig": func(ctx context.Context) (int32, error) {
			return atomic.AddInt32(&getExecs, 1), nil
		},
	}

	svc, err := Compile(query.NewMemoryRuntime(time.Minute), service, "ns")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	tagged := WithCacheTags(context.Background(), "users")
	if _, err := svc.MustTriad("listUsers").Read(tagged); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if _, err := svc.MustTriad("getConfig").Read(context.Background()); err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if err := svc.InvalidateTags(context.Background(), "users"); err != nil {
		t.Fatalf("InvalidateTags() error: %v", err)
	}

	// The tagged read refetches, the untagged one stays cached.
	if _, err := svc.MustTriad("listUsers").Read(context.Background()); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if _, err := svc.MustTriad("getConfig").Read(context.Background()); err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if n := atomic.LoadInt32(&listExecs); n != 2 {
		t.Errorf("tagged read executed %d times, want 2", n)
	}
	if n := atomic.LoadInt32(&getExecs); n != 1 {
		t.Errorf("untagged read executed %d times, want 1", n)
	}
}

func TestInvalidateTags_NoMatches(t *testing.T) {
	rt := &recordingRuntime{}
	svc, err := Compile(rt, map[string]any{
		"getData": func(ctx context.Context) (string, error) { return "data", nil },
	}, "ns")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if err := svc.InvalidateTags(context.Background(), "nope"); err != nil {
		t.Fatalf("InvalidateTags() error: %v", err)
	}
	if len(rt.invalidated) != 0 {
		t.Errorf("invalidated = %v, want none", rt.invalidated)
	}
}
