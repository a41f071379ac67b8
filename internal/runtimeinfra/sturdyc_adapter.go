package runtimeinfra

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc runtime adapter.
// It encapsulates the core sturdyc options needed for cache initialization.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the default time-to-live for cached entries.
	// After this duration, entries are considered expired.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	// Default: 10 (evict 10% of entries)
	EvictionPercentage int

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage enables storage for missing record flags.
	// When enabled, the cache will remember keys that returned no results
	// to prevent repeated fetches for non-existent records.
	MissingRecordStorage bool

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration

	// Logger receives debug events for mutations and invalidations and
	// warn events for failed executions. Nil disables logging.
	Logger *logrus.Logger
}

// EarlyRefreshConfig configures early refresh behavior.
// Early refresh prevents cache stampedes by refreshing entries
// before they expire when they're frequently accessed.
type EarlyRefreshConfig struct {
	// MinAsyncRefreshTime is the minimum time after which an async refresh can occur
	MinAsyncRefreshTime time.Duration

	// MaxAsyncRefreshTime is the maximum time after which an async refresh can occur
	MaxAsyncRefreshTime time.Duration

	// SyncRefreshTime is when a refresh becomes synchronous instead of async
	SyncRefreshTime time.Duration

	// RetryBaseDelay is the base delay for retry attempts when early refresh fails
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
		EvictionInterval:     0, // Use default
	}
}

// ToSturdycOptions converts the Config to a sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
// Returns a *ConfigError naming the first offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required),
		validation.Field(&c.EvictionPercentage, validation.Min(1), validation.Max(100)),
	)
	if err != nil {
		return configErrorFromValidation(err)
	}

	if c.EarlyRefresh != nil {
		er := c.EarlyRefresh
		err = validation.ValidateStruct(er,
			validation.Field(&er.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&er.MaxAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&er.SyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&er.RetryBaseDelay, validation.Min(time.Duration(0))),
		)
		if err != nil {
			return configErrorFromValidation(err)
		}
	}

	return nil
}

// configErrorFromValidation converts an ozzo validation result into a
// ConfigError, picking the first field in sorted order so the reported
// error is deterministic.
func configErrorFromValidation(err error) error {
	errs, ok := err.(validation.Errors)
	if !ok {
		return &ConfigError{Field: "config", Message: err.Error()}
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	return &ConfigError{Field: fields[0], Message: errs[fields[0]].Error()}
}

// ConfigError represents a configuration or request validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// sturdycRuntime implements the query runtime boundary on top of a
// sturdyc client. Reads go through GetOrFetch so that concurrent
// fetches for the same key coalesce into one in-flight execution;
// mutations execute directly and never touch the cache.
type sturdycRuntime struct {
	client *sturdyc.Client[any]
	log    *logrus.Logger
}

// NewSturdycRuntime creates a new sturdyc-backed runtime.
// It validates the configuration and initializes a sturdyc client with
// the provided settings.
//
// Version compatibility note: this implementation assumes the sturdyc
// v1.x API. Monitor sturdyc version upgrades for potential option
// mapping changes.
func NewSturdycRuntime(cfg Config) (*sturdycRuntime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycRuntime{client: client, log: loggerOrDiscard(cfg.Logger)}, nil
}

func loggerOrDiscard(log *logrus.Logger) *logrus.Logger {
	if log != nil {
		return log
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return silent
}

// Fetch resolves one cached read. On a miss or expiry the execution
// closure runs and its result is stored under the key.
func (s *sturdycRuntime) Fetch(ctx context.Context, key string, fetchFn any, options map[string]any) (any, error) {
	if key == "" {
		return nil, &ConfigError{Field: "key", Message: "cannot be empty"}
	}
	if err := validateExecFn("fetchFn", fetchFn); err != nil {
		return nil, err
	}

	if disableCacheRequested(options) {
		return callExecFn(ctx, fetchFn)
	}

	result, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return callExecFn(ctx, fetchFn)
	})
	if err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cached fetch failed")
	}
	return result, err
}

// Mutate executes one imperative write. The operation error, if any,
// passes through untranslated.
func (s *sturdycRuntime) Mutate(ctx context.Context, id, operation string, execFn any, options map[string]any) (any, error) {
	if err := validateExecFn("execFn", execFn); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"operation":   operation,
		"mutation_id": id,
	}).Debug("executing mutation")

	result, err := callExecFn(ctx, execFn)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"operation":   operation,
			"mutation_id": id,
		}).WithError(err).Warn("mutation failed")
	}
	return result, err
}

// Invalidate removes the given keys from the cache so subsequent
// fetches go back to the source of truth.
func (s *sturdycRuntime) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	if len(keys) > 0 {
		s.log.WithField("count", len(keys)).Debug("invalidated cache keys")
	}
	return nil
}

// InvalidatePrefix removes all entries whose keys start with prefix.
func (s *sturdycRuntime) InvalidatePrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}
