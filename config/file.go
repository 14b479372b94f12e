package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/syssam/prax/dialect"
)

// DefaultFile is the file name the command line tool looks for.
const DefaultFile = "prax.yaml"

// File is the prax.yaml project configuration.
type File struct {
	// Schema lists the .prax files or directories to load.
	Schema StringList `yaml:"schema,omitempty"`
	// Dialects lists the SQL dialects to emit. Empty means the datasource
	// provider.
	Dialects StringList `yaml:"dialects,omitempty"`
	// Output is the directory generated code is written to.
	Output string `yaml:"output,omitempty"`
	// Package is the package name of generated code.
	Package string `yaml:"package,omitempty"`
	// Cache enables the artifact cache.
	Cache bool `yaml:"cache,omitempty"`
	// Env overrides environment variables referenced with env("X").
	Env map[string]string `yaml:"env,omitempty"`

	dir string
}

// StringList is a list that may be written as a single scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// LoadFile reads a prax.yaml file. A missing file yields the defaults.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f := &File{dir: filepath.Dir(path)}
		f.defaults()
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := DecodeFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// DecodeFile decodes a prax.yaml document. Unknown keys are rejected.
func DecodeFile(r io.Reader) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if _, err := f.DialectTypes(); err != nil {
		return nil, err
	}
	f.defaults()
	return f, nil
}

// Save writes f to path.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *File) defaults() {
	if len(f.Schema) == 0 {
		f.Schema = StringList{"schema.prax"}
	}
	if f.Output == "" {
		f.Output = "gen"
	}
	if f.Package == "" {
		f.Package = filepath.Base(f.Output)
	}
}

// SchemaPaths returns the schema paths relative to the file's directory.
func (f *File) SchemaPaths() []string {
	paths := make([]string, len(f.Schema))
	for i, p := range f.Schema {
		if filepath.IsAbs(p) || f.dir == "" {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(f.dir, p)
		}
	}
	return paths
}

// DialectTypes parses the configured dialects.
func (f *File) DialectTypes() ([]dialect.DatabaseType, error) {
	ds := make([]dialect.DatabaseType, 0, len(f.Dialects))
	for _, name := range f.Dialects {
		d, ok := dialect.Parse(name)
		if !ok {
			return nil, fmt.Errorf("unknown dialect %q", name)
		}
		ds = append(ds, d)
	}
	return ds, nil
}

// Options returns the resolution options of the file's env overrides.
func (f *File) Options() []Option {
	if len(f.Env) == 0 {
		return nil
	}
	return []Option{WithEnv(f.Env)}
}
