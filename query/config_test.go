package query

import (
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.TTL)
	}
	if cfg.EarlyRefresh == nil {
		t.Error("EarlyRefresh should be configured by default")
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted zero capacity")
	}
}

func TestNewRuntime(t *testing.T) {
	rt, err := NewRuntime(DefaultConfig())
	if err != nil {
		t.Fatalf("NewRuntime() error: %v", err)
	}
	if rt == nil {
		t.Fatal("NewRuntime() returned nil runtime")
	}
}

func TestNewRuntime_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 0

	if _, err := NewRuntime(cfg); err == nil {
		t.Error("NewRuntime() accepted an invalid config")
	}
}

func TestNewMemoryRuntime(t *testing.T) {
	if rt := NewMemoryRuntime(time.Minute); rt == nil {
		t.Fatal("NewMemoryRuntime() returned nil runtime")
	}
}
