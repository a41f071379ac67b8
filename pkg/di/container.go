package di

import (
	"time"

	"github.com/goliatone/go-service-query/query"
	"github.com/goliatone/go-service-query/servicequery"
)

// Container provides dependency injection for query related
// components. It manages singleton instances of the runtime and key
// serializer and provides a factory for compiling services against
// them.
type Container struct {
	runtime    query.Runtime
	serializer query.KeySerializer
	config     query.Config
}

// NewContainer creates a new DI container with the provided runtime
// configuration. It initializes the sturdyc-backed runtime and the
// default key serializer.
func NewContainer(config query.Config) (*Container, error) {
	runtime, err := query.NewRuntime(config)
	if err != nil {
		return nil, err
	}

	return &Container{
		runtime:    runtime,
		serializer: query.NewDefaultKeySerializer(),
		config:     config,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default
// configuration. This is a convenience constructor for typical use
// cases where custom configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(query.DefaultConfig())
}

// NewMemoryContainer creates a container backed by the in-memory
// runtime. Intended for tests and small deployments.
func NewMemoryContainer(ttl time.Duration) *Container {
	return &Container{
		runtime:    query.NewMemoryRuntime(ttl),
		serializer: query.NewDefaultKeySerializer(),
	}
}

// Runtime returns the singleton runtime instance. This allows access
// to the underlying cache boundary for advanced use cases.
func (c *Container) Runtime() query.Runtime {
	return c.runtime
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() query.KeySerializer {
	return c.serializer
}

// Config returns a copy of the runtime configuration used by this
// container. Useful for debugging and monitoring.
func (c *Container) Config() query.Config {
	return c.config
}

// CompileService compiles a service against the container's runtime
// and serializer, wiring the serializer ahead of any caller options.
func CompileService(c *Container, service any, namespace string, opts ...servicequery.CompileOption) (*servicequery.CompiledService, error) {
	compileOpts := append([]servicequery.CompileOption{servicequery.WithSerializer(c.serializer)}, opts...)
	return servicequery.Compile(c.runtime, service, namespace, compileOpts...)
}
