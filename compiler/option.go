package compiler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/schema/validate"
)

// Option configures compilation.
type Option func(*Config) error

// Config holds the compile settings.
type Config struct {
	// Dialects to emit. Empty means the datasource provider, or PostgreSQL
	// when the schema declares none.
	Dialects    []dialect.DatabaseType
	Cache       prax.Cache
	CacheTTL    time.Duration
	Logger      *slog.Logger
	Generators  []Generator
	ForeignKeys bool
	Policies    bool
	// UserColumn is the predicate function parameter of SQL Server policies.
	UserColumn string
	Validate   []validate.Option
}

// ConfigError is returned for an invalid option value.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("prax: invalid %s option %v: %s", e.Option, e.Value, e.Message)
}

// WithDialects sets the dialects to emit.
func WithDialects(ds ...dialect.DatabaseType) Option {
	return func(c *Config) error {
		for _, d := range ds {
			if !d.Valid() {
				return &ConfigError{Option: "Dialects", Value: d, Message: "unknown dialect"}
			}
		}
		c.Dialects = ds
		return nil
	}
}

// WithCache stores and reuses artifacts in cache. A zero ttl never expires.
func WithCache(cache prax.Cache, ttl time.Duration) Option {
	return func(c *Config) error {
		if cache == nil {
			return &ConfigError{Option: "Cache", Value: nil, Message: "cache cannot be nil"}
		}
		c.Cache, c.CacheTTL = cache, ttl
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return &ConfigError{Option: "Logger", Value: nil, Message: "logger cannot be nil"}
		}
		c.Logger = l
		return nil
	}
}

// WithGenerators runs the code generators after the SQL is emitted.
func WithGenerators(gs ...Generator) Option {
	return func(c *Config) error {
		c.Generators = append(c.Generators, gs...)
		return nil
	}
}

// WithoutForeignKeys omits foreign key constraints.
func WithoutForeignKeys() Option {
	return func(c *Config) error {
		c.ForeignKeys = false
		return nil
	}
}

// WithoutPolicies omits row-level security policies.
func WithoutPolicies() Option {
	return func(c *Config) error {
		c.Policies = false
		return nil
	}
}

// WithUserColumn sets the predicate column of SQL Server policies.
func WithUserColumn(col string) Option {
	return func(c *Config) error {
		if !dialect.IsIdentifier(col) {
			return &ConfigError{Option: "UserColumn", Value: col, Message: "not an identifier"}
		}
		c.UserColumn = col
		return nil
	}
}

// WithValidation passes options to the validator. Only Compile validates;
// CompileSchema expects a validated schema.
func WithValidation(opts ...validate.Option) Option {
	return func(c *Config) error {
		c.Validate = append(c.Validate, opts...)
		return nil
	}
}

func newConfig(opts []Option) (*Config, error) {
	c := &Config{ForeignKeys: true, Policies: true, UserColumn: "UserId"}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// key encodes the settings that change the output.
func (c *Config) key() string {
	s := fmt.Sprintf("fk=%t;rls=%t;col=%s", c.ForeignKeys, c.Policies, c.UserColumn)
	for _, g := range c.Generators {
		s += ";gen=" + g.Name()
	}
	return s
}
