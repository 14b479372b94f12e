// Package config resolves the datasource and server-group declarations of a
// schema into typed connection settings, and reads the prax.yaml file of the
// command line tool.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/syssam/prax/schema"
)

// ErrMissingEnv is returned when a referenced environment variable is unset.
var ErrMissingEnv = errors.New("config: environment variable not set")

// LookupFunc looks up an environment variable.
type LookupFunc func(name string) (string, bool)

// Option configures resolution.
type Option func(*options)

type options struct {
	lookup LookupFunc
}

// WithLookup replaces os.LookupEnv when resolving env("X") references.
func WithLookup(fn LookupFunc) Option {
	return func(o *options) { o.lookup = fn }
}

// WithEnv resolves env("X") references from vars first, falling back to the
// process environment.
func WithEnv(vars map[string]string) Option {
	return WithLookup(func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	})
}

func newOptions(opts []Option) *options {
	o := &options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// resolve returns the string behind v: the literal itself or the value of
// the referenced environment variable. The variable name is returned too.
func (o *options) resolve(v schema.Value) (value, env string, err error) {
	if name, ok := v.EnvVar(); ok {
		value, ok := o.lookup(name)
		if !ok || value == "" {
			return "", name, fmt.Errorf("%w: %s", ErrMissingEnv, name)
		}
		return value, name, nil
	}
	if v.Kind != schema.ValueString {
		return "", "", fmt.Errorf("config: expected a string or env() url, got %s", v)
	}
	return v.Str, "", nil
}
