package di

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-service-query/query"
)

func TestNewContainer(t *testing.T) {
	cfg := query.DefaultConfig()
	cfg.TTL = time.Minute

	c, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer() error: %v", err)
	}

	if c.Runtime() == nil {
		t.Error("Runtime() returned nil")
	}
	if c.KeySerializer() == nil {
		t.Error("KeySerializer() returned nil")
	}
	if c.Config().TTL != time.Minute {
		t.Errorf("Config().TTL = %v, want 1m", c.Config().TTL)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := query.DefaultConfig()
	cfg.Capacity = 0

	if _, err := NewContainer(cfg); err == nil {
		t.Error("NewContainer() accepted an invalid config")
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	c, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() error: %v", err)
	}
	if c.Runtime() == nil {
		t.Error("Runtime() returned nil")
	}
}

func TestContainer_SingletonAccessors(t *testing.T) {
	c := NewMemoryContainer(time.Minute)

	if c.Runtime() != c.Runtime() {
		t.Error("Runtime() is not a singleton")
	}
	if c.KeySerializer() != c.KeySerializer() {
		t.Error("KeySerializer() is not a singleton")
	}
}

func TestCompileService(t *testing.T) {
	c := NewMemoryContainer(time.Minute)

	service := map[string]any{
		"getData": func(ctx context.Context) (string, error) { return "data", nil },
	}

	svc, err := CompileService(c, service, "testPrefix")
	if err != nil {
		t.Fatalf("CompileService() error: %v", err)
	}

	got, err := svc.MustTriad("getData").Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got != "data" {
		t.Errorf("Read() = %v, want data", got)
	}
}
