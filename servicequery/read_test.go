package servicequery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-service-query/query"
)

func TestRead_SecondCallServedFromCache(t *testing.T) {
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "users", "ListUsers", func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&executions, 1)
		return []string{"ada"}, nil
	})

	for i := 0; i < 3; i++ {
		users, err := read.Do(context.Background())
		if err != nil {
			t.Fatalf("Do() error: %v", err)
		}
		if len(users) != 1 || users[0] != "ada" {
			t.Errorf("Do() = %v, want [ada]", users)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 1 {
		t.Errorf("operation executed %d times, want 1", n)
	}
}

func TestParamRead_DistinctParamsDistinctEntries(t *testing.T) {
	var executions int32
	read := NewParamRead(query.NewMemoryRuntime(time.Minute), "users", "GetUser", func(ctx context.Context, id string) (string, error) {
		atomic.AddInt32(&executions, 1)
		return "user-" + id, nil
	})

	for _, id := range []string{"1", "2", "1", "2"} {
		got, err := read.Do(context.Background(), id)
		if err != nil {
			t.Fatalf("Do(%q) error: %v", id, err)
		}
		if got != "user-"+id {
			t.Errorf("Do(%q) = %q, want %q", id, got, "user-"+id)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 2 {
		t.Errorf("operation executed %d times, want 2", n)
	}
}

func TestParamRead_PassesExactParam(t *testing.T) {
	type params struct {
		ID   string
		Deep []int
	}

	var received params
	read := NewParamRead(query.NewMemoryRuntime(0), "ns", "op", func(ctx context.Context, p params) (string, error) {
		received = p
		return "ok", nil
	})

	want := params{ID: "u-1", Deep: []int{1, 2}}
	if _, err := read.Do(context.Background(), want); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	if received.ID != want.ID || len(received.Deep) != 2 {
		t.Errorf("operation received %+v, want %+v", received, want)
	}
}

func TestRead_OptionsForwardedWithoutReserved(t *testing.T) {
	rt := &recordingRuntime{}
	read := NewRead(rt, "ns", "op", func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	_, err := read.Do(context.Background(),
		WithRuntimeOption("refetchInterval", 30),
		WithRuntimeOption(query.OptionQueryKey, "caller::key"),
		WithRuntimeOption(query.OptionQueryFn, "never"),
	)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	// The reserved key entry steers key resolution...
	if got := rt.lastFetchKey(); got != "caller::key" {
		t.Errorf("fetch key = %q, want %q", got, "caller::key")
	}

	// ...but neither reserved name reaches the runtime bag.
	bag := rt.fetchOptions[0]
	if _, ok := bag[query.OptionQueryKey]; ok {
		t.Error("reserved queryKey option leaked to the runtime")
	}
	if _, ok := bag[query.OptionQueryFn]; ok {
		t.Error("reserved queryFn option leaked to the runtime")
	}
	if v, ok := bag["refetchInterval"]; !ok || v != 30 {
		t.Errorf("auxiliary option not forwarded: %v", bag)
	}
}

func TestRead_CallerKey(t *testing.T) {
	rt := &recordingRuntime{}
	read := NewRead(rt, "ns", "op", func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	if _, err := read.Do(context.Background(), WithKey(query.NewKey("other", "space"))); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	want := query.NewDefaultKeySerializer().SerializeKey(query.NewKey("other", "space"))
	if got := rt.lastFetchKey(); got != want {
		t.Errorf("fetch key = %q, want %q", got, want)
	}
}

func TestRead_KeyPrecedence(t *testing.T) {
	serializer := query.NewDefaultKeySerializer()
	registered := func(param any) query.Key {
		return query.NewKey("registered", "fn")
	}
	perCall := func(param any) query.Key {
		return query.NewKey("percall", "fn")
	}

	service := map[string]any{
		"getData": func(ctx context.Context) (string, error) { return "data", nil },
	}

	t.Run("registered key function beats caller key", func(t *testing.T) {
		rt := &recordingRuntime{}
		svc, err := Compile(rt, service, "ns", WithOperationKeyFunc("getData", registered))
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}

		if _, err := svc.MustTriad("getData").Read(context.Background(), WithKey(query.NewKey("caller", "key"))); err != nil {
			t.Fatalf("Read() error: %v", err)
		}

		if got, want := rt.lastFetchKey(), serializer.SerializeKey(query.NewKey("registered", "fn")); got != want {
			t.Errorf("fetch key = %q, want %q", got, want)
		}
	})

	t.Run("per-call key function beats registered", func(t *testing.T) {
		rt := &recordingRuntime{}
		svc, err := Compile(rt, service, "ns", WithOperationKeyFunc("getData", registered))
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}

		if _, err := svc.MustTriad("getData").Read(context.Background(), WithKeyFunc(perCall)); err != nil {
			t.Fatalf("Read() error: %v", err)
		}

		if got, want := rt.lastFetchKey(), serializer.SerializeKey(query.NewKey("percall", "fn")); got != want {
			t.Errorf("fetch key = %q, want %q", got, want)
		}
	})

	t.Run("caller key beats default derivation", func(t *testing.T) {
		rt := &recordingRuntime{}
		svc, err := Compile(rt, service, "ns")
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}

		if _, err := svc.MustTriad("getData").Read(context.Background(), WithKey(query.NewKey("caller", "key"))); err != nil {
			t.Fatalf("Read() error: %v", err)
		}

		if got, want := rt.lastFetchKey(), serializer.SerializeKey(query.NewKey("caller", "key")); got != want {
			t.Errorf("fetch key = %q, want %q", got, want)
		}
	})

	t.Run("default derivation without options", func(t *testing.T) {
		rt := &recordingRuntime{}
		svc, err := Compile(rt, service, "ns")
		if err != nil {
			t.Fatalf("Compile() error: %v", err)
		}

		if _, err := svc.MustTriad("getData").Read(context.Background()); err != nil {
			t.Fatalf("Read() error: %v", err)
		}

		if got, want := rt.lastFetchKey(), serializer.SerializeKey(query.NewKey("ns", "getData")); got != want {
			t.Errorf("fetch key = %q, want %q", got, want)
		}
	})
}

func TestRead_KeyFuncPanicIsConfigurationError(t *testing.T) {
	rt := &recordingRuntime{}
	read := NewRead(rt, "ns", "op", func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	_, err := read.Do(context.Background(), WithKeyFunc(func(param any) query.Key {
		panic("broken key derivation")
	}))
	if !errors.Is(err, ErrKeyFunc) {
		t.Fatalf("expected ErrKeyFunc, got %v", err)
	}

	// The read never reached the runtime.
	if len(rt.fetchKeys) != 0 {
		t.Errorf("fetch ran despite key derivation failure: %v", rt.fetchKeys)
	}
}

func TestRead_ConcurrentCallsCoalesce(t *testing.T) {
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "ns", "slow", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&executions, 1)
		time.Sleep(20 * time.Millisecond)
		return "ok", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := read.Do(context.Background()); err != nil {
				t.Errorf("Do() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&executions); n != 1 {
		t.Errorf("operation executed %d times under concurrency, want 1", n)
	}
}

func TestRead_InvalidateForcesRefetch(t *testing.T) {
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "ns", "op", func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&executions, 1), nil
	})

	first, err := read.Do(context.Background())
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if err := read.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	second, err := read.Do(context.Background())
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("executions = %d then %d, want 1 then 2", first, second)
	}
}

func TestParamRead_InvalidateDropsAllParams(t *testing.T) {
	var executions int32
	read := NewParamRead(query.NewMemoryRuntime(time.Minute), "ns", "op", func(ctx context.Context, id string) (string, error) {
		atomic.AddInt32(&executions, 1)
		return id, nil
	})

	for _, id := range []string{"1", "2"} {
		if _, err := read.Do(context.Background(), id); err != nil {
			t.Fatalf("Do(%q) error: %v", id, err)
		}
	}
	if err := read.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	for _, id := range []string{"1", "2"} {
		if _, err := read.Do(context.Background(), id); err != nil {
			t.Fatalf("Do(%q) error: %v", id, err)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 4 {
		t.Errorf("operation executed %d times, want 4", n)
	}
}

func TestRead_OperationErrorNotCached(t *testing.T) {
	opErr := errors.New("source of truth unavailable")
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "ns", "op", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&executions, 1)
		return "", opErr
	})

	for i := 0; i < 2; i++ {
		if _, err := read.Do(context.Background()); !errors.Is(err, opErr) {
			t.Fatalf("operation error was translated: %v", err)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 2 {
		t.Errorf("failed read cached: executed %d times, want 2", n)
	}
}

func TestRead_CacheDisabled(t *testing.T) {
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "ns", "op", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&executions, 1)
		return "ok", nil
	})

	for i := 0; i < 2; i++ {
		if _, err := read.Do(context.Background(), WithCacheDisabled()); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 2 {
		t.Errorf("cache bypass ignored: executed %d times, want 2", n)
	}
}

func TestRead_AdapterDefaults(t *testing.T) {
	var executions int32
	read := NewRead(query.NewMemoryRuntime(time.Minute), "ns", "op", func(ctx context.Context) (string, error) {
		atomic.AddInt32(&executions, 1)
		return "ok", nil
	}, WithCacheDisabled())

	for i := 0; i < 2; i++ {
		if _, err := read.Do(context.Background()); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
	}

	if n := atomic.LoadInt32(&executions); n != 2 {
		t.Errorf("adapter default ignored: executed %d times, want 2", n)
	}
}

func TestRead_KeyMatchesTriadDerivation(t *testing.T) {
	read := NewRead(query.NewMemoryRuntime(0), "testPrefix", "getData", func(ctx context.Context) (string, error) {
		return "data", nil
	})

	key, err := read.Key()
	if err != nil {
		t.Fatalf("Key() error: %v", err)
	}
	if !key.Equal(query.NewKey("testPrefix", "getData")) {
		t.Errorf("Key() = %q, want testPrefix::getData", key)
	}
}
