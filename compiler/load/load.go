// Package load reads .prax source files, parses them and validates the
// merged schema.
package load

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
	"github.com/syssam/prax/schema/parser"
	"github.com/syssam/prax/schema/validate"
)

// Ext is the extension of schema files.
const Ext = ".prax"

// Config configures loading.
type Config struct {
	// Paths lists files and directories. Directories contribute every
	// .prax file directly inside them.
	Paths []string
	// Validate holds the validator options.
	Validate []validate.Option
	// SkipValidation returns the parsed schema without validating it.
	SkipValidation bool
}

// SchemaSpec is a loaded schema.
type SchemaSpec struct {
	Schema *schema.Schema
	// Files lists the loaded files in load order.
	Files []string
	// Digest is the SHA-256 of the file contents in load order.
	Digest string
}

// Load reads, parses and validates the configured files. Syntax errors are
// reported with the file name, line and column.
func (c *Config) Load() (*SchemaSpec, error) {
	files, err := c.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load: no %s files in %s", Ext, strings.Join(c.Paths, ", "))
	}
	spec := &SchemaSpec{Schema: schema.New(), Files: files}
	h := sha256.New()
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		h.Write(src)
		s, err := parser.Parse(string(src))
		if err != nil {
			return nil, fileError(path, string(src), err)
		}
		Merge(spec.Schema, s)
	}
	spec.Digest = hex.EncodeToString(h.Sum(nil))
	if c.SkipValidation {
		return spec, nil
	}
	if err := validate.Schema(spec.Schema, c.Validate...); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return spec, nil
}

// Source parses and validates a single in-memory source.
func Source(src string, opts ...validate.Option) (*schema.Schema, error) {
	s, err := parser.Parse(src)
	if err != nil {
		return nil, fileError("<source>", src, err)
	}
	if err := validate.Schema(s, opts...); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Config) files() ([]string, error) {
	var (
		files []string
		seen  = make(map[string]bool)
	)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, p := range c.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		var names []string
		for _, e := range entries {
			if IsSchemaFile(e) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			add(filepath.Join(p, n))
		}
	}
	return files, nil
}

// Merge appends every declaration of src to dst in order.
func Merge(dst, src *schema.Schema) {
	for _, m := range src.Models {
		dst.AddModel(m)
	}
	for _, e := range src.Enums {
		dst.AddEnum(e)
	}
	for _, t := range src.Types {
		dst.AddType(t)
	}
	for _, v := range src.Views {
		dst.AddView(v)
	}
	for _, p := range src.Policies {
		dst.AddPolicy(p)
	}
	for _, g := range src.ServerGroups {
		dst.AddServerGroup(g)
	}
	for _, d := range src.Datasources {
		dst.AddDatasource(d)
	}
	for _, g := range src.Generators {
		dst.AddGenerator(g)
	}
	for _, r := range src.RawSQL {
		dst.AddRawSQL(r)
	}
}

// FileError locates a syntax error in a source file.
type FileError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func fileError(path, src string, err error) error {
	var se *prax.SyntaxError
	if !errors.As(err, &se) {
		return fmt.Errorf("load: %s: %w", path, err)
	}
	line, col := Position(src, se.Offset)
	return &FileError{Path: path, Line: line, Column: col, Err: err}
}

// Position converts a byte offset of src into a 1-based line and column.
func Position(src string, offset int) (line, col int) {
	offset = max(0, min(offset, len(src)))
	before := src[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndexByte(before, '\n')
	return line, col
}

// IsSchemaFile reports whether the directory entry is a schema file.
func IsSchemaFile(e fs.DirEntry) bool {
	return !e.IsDir() && filepath.Ext(e.Name()) == Ext
}
