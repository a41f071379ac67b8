package runtimeinfra

import (
	"context"
	"reflect"
)

// validateExecFn performs validation of an execution closure to ensure
// it matches the expected signature: func(context.Context) (T, error).
func validateExecFn(field string, fn any) error {
	if fn == nil {
		return &ConfigError{Field: field, Message: "cannot be nil"}
	}

	fnType := reflect.TypeOf(fn)

	if fnType.Kind() != reflect.Func {
		return &ConfigError{Field: field, Message: "must be a function"}
	}

	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return &ConfigError{Field: field, Message: "must have signature func(context.Context) (T, error)"}
	}

	contextType := reflect.TypeOf((*context.Context)(nil)).Elem()
	if !fnType.In(0).Implements(contextType) {
		return &ConfigError{Field: field, Message: "first parameter must be context.Context"}
	}

	errorType := reflect.TypeOf((*error)(nil)).Elem()
	if !fnType.Out(1).Implements(errorType) {
		return &ConfigError{Field: field, Message: "second return value must be error"}
	}

	return nil
}

// callExecFn invokes any function matching func(context.Context) (T, error).
// The adapter layer always produces func(context.Context) (any, error)
// closures, so the direct assertion covers the hot path; reflection
// handles typed closures handed to the runtime directly.
// fn is assumed valid, pre-checked by validateExecFn.
func callExecFn(ctx context.Context, fn any) (any, error) {
	if typed, ok := fn.(func(context.Context) (any, error)); ok {
		return typed(ctx)
	}

	results := reflect.ValueOf(fn).Call([]reflect.Value{reflect.ValueOf(ctx)})

	var result any
	if rv := results[0]; rv.IsValid() && rv.CanInterface() {
		result = rv.Interface()
	}

	var err error
	if ev := results[1]; ev.IsValid() && !ev.IsNil() {
		err = ev.Interface().(error)
	}

	return result, err
}

// optionDisableCache mirrors query.OptionDisableCache. The constant
// cannot be imported here without creating an import cycle.
const optionDisableCache = "disableCache"

// disableCacheRequested reports whether the options bag asks the
// runtime to bypass its cache for this request.
func disableCacheRequested(options map[string]any) bool {
	v, ok := options[optionDisableCache]
	if !ok {
		return false
	}
	disabled, _ := v.(bool)
	return disabled
}
