package query

import (
	"time"

	"github.com/goliatone/go-service-query/internal/runtimeinfra"
	"github.com/sirupsen/logrus"
)

// Config exposes runtime configuration options for consumers of the
// query package. The primary runtime is backed by sturdyc.
type Config struct {
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration

	// Logger receives debug/warn events from the runtime. Optional;
	// when nil the runtime stays silent.
	Logger *logrus.Logger
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(runtimeinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewRuntime constructs the default sturdyc-backed runtime using the
// provided configuration.
func NewRuntime(cfg Config) (Runtime, error) {
	return runtimeinfra.NewSturdycRuntime(cfg.toInternal())
}

// NewMemoryRuntime constructs a lightweight in-memory runtime with the
// given entry TTL. A TTL of zero disables expiry. Concurrent identical
// fetches are coalesced into a single execution. Intended for tests
// and small deployments; production callers want NewRuntime.
func NewMemoryRuntime(ttl time.Duration) Runtime {
	return runtimeinfra.NewMemoryRuntime(ttl)
}

func (c Config) toInternal() runtimeinfra.Config {
	var early *runtimeinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &runtimeinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return runtimeinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
		Logger:               c.Logger,
	}
}

func convertFromInternal(cfg runtimeinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
		Logger:               cfg.Logger,
	}
}
