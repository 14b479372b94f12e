package gen

import (
	"errors"
	"go/token"
	"path/filepath"
	"runtime"

	"github.com/syssam/prax/schema"
)

// DefaultHeader is written at the top of every generated file.
const DefaultHeader = "Code generated by prax. DO NOT EDIT."

// Providers are the generator block providers handled by this package.
var Providers = []string{"prax-client-go", "go"}

// Config holds the code generation settings.
type Config struct {
	// Package is the package name of the generated files.
	Package string
	// Header is the file header comment.
	Header string
	// Target is the output directory.
	Target string
	// Workers bounds the files rendered in parallel.
	Workers int
	// Tags are the struct tag keys written on every field.
	Tags []string
}

// Option configures code generation.
type Option func(*Config) error

// WithPackage sets the package name of the generated files.
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("Package", nil, "package cannot be empty")
		}
		if !token.IsIdentifier(pkg) || token.IsKeyword(pkg) {
			return NewConfigError("Package", pkg, "package must be a Go identifier")
		}
		c.Package = pkg
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithTags sets the struct tag keys. The json and db keys are understood;
// any other key gets the column name.
func WithTags(keys ...string) Option {
	return func(c *Config) error {
		c.Tags = keys
		return nil
	}
}

// FromSchema returns the options declared by the first generator block of s
// whose provider is one of Providers: output becomes the target and the
// package property the package name.
//
//	generator client {
//	  provider = "prax-client-go"
//	  output   = "./models"
//	  package  = "models"
//	}
func FromSchema(s *schema.Schema) []Option {
	for _, g := range s.Generators {
		if !isProvider(g.Provider()) {
			continue
		}
		var opts []Option
		if out := g.Output(); out != "" {
			opts = append(opts, WithTarget(out))
			if pkg := filepath.Base(filepath.Clean(out)); token.IsIdentifier(pkg) && !token.IsKeyword(pkg) {
				opts = append(opts, WithPackage(pkg))
			}
		}
		if v, ok := g.Property("package"); ok && v.Kind == schema.ValueString && v.Str != "" {
			opts = append(opts, WithPackage(v.Str))
		}
		return opts
	}
	return nil
}

func isProvider(p string) bool {
	for _, v := range Providers {
		if v == p {
			return true
		}
	}
	return false
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Package: "models",
		Header:  DefaultHeader,
		Workers: runtime.GOMAXPROCS(0),
		Tags:    []string{"json", "db"},
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
