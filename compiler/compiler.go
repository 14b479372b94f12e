// Package compiler turns a schema into the ordered SQL of every requested
// dialect and runs the code generators.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/prax"
	"github.com/syssam/prax/compiler/load"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql/policy"
	sqlschema "github.com/syssam/prax/dialect/sql/schema"
	"github.com/syssam/prax/dialect/sql/sequence"
	"github.com/syssam/prax/schema"
)

// File is a generated file, relative to the output directory.
type File struct {
	Path    string `msgpack:"path"`
	Content []byte `msgpack:"content"`
}

// Generator is a code generation plugin.
type Generator interface {
	Name() string
	Generate(ctx context.Context, s *schema.Schema) ([]File, error)
}

// Artifact is the SQL of one dialect, in execution order.
type Artifact struct {
	Dialect    dialect.DatabaseType `msgpack:"dialect"`
	Statements []string             `msgpack:"statements"`
}

// Script joins the statements into one script. SQL Server statements are
// separated into batches with GO.
func (a *Artifact) Script() string {
	var b strings.Builder
	for _, stmt := range a.Statements {
		if a.Dialect == dialect.MSSQL {
			b.WriteString(stmt + "\nGO\n")
			continue
		}
		b.WriteString(strings.TrimSuffix(stmt, ";") + ";\n")
	}
	return b.String()
}

// Artifacts is the output of a compilation.
type Artifacts struct {
	Digest    string      `msgpack:"digest"`
	Artifacts []*Artifact `msgpack:"artifacts"`
	Files     []File      `msgpack:"files"`
	// Cached reports whether the artifacts came from the cache.
	Cached bool `msgpack:"-"`
}

// Dialect returns the artifact of d, or nil.
func (a *Artifacts) Dialect(d dialect.DatabaseType) *Artifact {
	for _, art := range a.Artifacts {
		if art.Dialect == d {
			return art
		}
	}
	return nil
}

// Compile parses, validates and compiles src.
func Compile(ctx context.Context, src string, opts ...Option) (*Artifacts, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	s, err := load.Source(src, cfg.Validate...)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(src))
	return compile(ctx, cfg, s, hex.EncodeToString(sum[:]))
}

// CompileSchema compiles a validated schema. digest identifies the source
// in the cache; an empty digest disables caching.
func CompileSchema(ctx context.Context, s *schema.Schema, digest string, opts ...Option) (*Artifacts, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return compile(ctx, cfg, s, digest)
}

func compile(ctx context.Context, cfg *Config, s *schema.Schema, digest string) (*Artifacts, error) {
	start := time.Now()
	dialects := cfg.Dialects
	if len(dialects) == 0 {
		dialects = defaultDialects(s)
	}
	var key string
	if cfg.Cache != nil && digest != "" {
		names := make([]string, len(dialects))
		for i, d := range dialects {
			names[i] = d.String()
		}
		key = prax.CacheKey{Digest: digest, Dialects: names, Options: cfg.key()}.String()
		if out := lookup(ctx, cfg, key); out != nil {
			return out, nil
		}
	}

	out := &Artifacts{Digest: digest, Artifacts: make([]*Artifact, len(dialects))}
	files := make([][]File, len(cfg.Generators))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range dialects {
		g.Go(func() error {
			stmts, err := compileDialect(gctx, cfg, s, d)
			if err != nil {
				return fmt.Errorf("compile %s: %w", d, err)
			}
			out.Artifacts[i] = &Artifact{Dialect: d, Statements: stmts}
			return nil
		})
	}
	for i, gen := range cfg.Generators {
		g.Go(func() error {
			fs, err := gen.Generate(gctx, s)
			if err != nil {
				return fmt.Errorf("generator %s: %w", gen.Name(), err)
			}
			files[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, fs := range files {
		out.Files = append(out.Files, fs...)
	}
	if key != "" {
		store(ctx, cfg, key, out)
	}
	cfg.Logger.Info("schema compiled",
		"dialects", len(dialects),
		"models", len(s.Models),
		"files", len(out.Files),
		"duration", time.Since(start),
	)
	return out, nil
}

// defaultDialects returns the dialect of the datasource provider. A
// MongoDB datasource has no SQL output.
func defaultDialects(s *schema.Schema) []dialect.DatabaseType {
	if len(s.Datasources) == 0 {
		return []dialect.DatabaseType{dialect.PostgreSQL}
	}
	if d, ok := dialect.Parse(s.Datasources[0].Provider()); ok {
		return []dialect.DatabaseType{d}
	}
	return nil
}

func lookup(ctx context.Context, cfg *Config, key string) *Artifacts {
	b, err := cfg.Cache.Get(ctx, key)
	if err != nil {
		cfg.Logger.Warn("artifact cache read failed", "key", key, "error", err)
		return nil
	}
	if b == nil {
		return nil
	}
	out := &Artifacts{}
	if err := msgpack.Unmarshal(b, out); err != nil {
		cfg.Logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		_ = cfg.Cache.Delete(ctx, key)
		return nil
	}
	out.Cached = true
	cfg.Logger.Debug("artifact cache hit", "key", key)
	return out
}

func store(ctx context.Context, cfg *Config, key string, out *Artifacts) {
	b, err := msgpack.Marshal(out)
	if err != nil {
		cfg.Logger.Warn("artifact encoding failed", "error", err)
		return
	}
	if err := cfg.Cache.Set(ctx, key, b, cfg.CacheTTL); err != nil {
		cfg.Logger.Warn("artifact cache write failed", "key", key, "error", err)
	}
}

// compileDialect emits, in order: enum types and tables with their indexes
// and foreign keys, views, sequences, row-level security and raw SQL.
func compileDialect(ctx context.Context, cfg *Config, s *schema.Schema, d dialect.DatabaseType) ([]string, error) {
	stmts, err := sqlschema.Create(ctx, d, s, sqlschema.WithForeignKeys(cfg.ForeignKeys))
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	for _, v := range s.Views {
		if def := v.Definition(); def != "" {
			stmts = append(stmts, "CREATE VIEW "+d.QuoteIdent(v.ViewName())+" AS "+def)
		}
	}
	seqs, err := sequences(cfg, s, d)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, seqs...)
	if cfg.Policies {
		rls, err := policies(cfg, s, d)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, rls...)
	}
	for _, r := range s.RawSQL {
		stmts = append(stmts, r.SQL)
	}
	return stmts, nil
}

// sequences creates the sequences declared with @@sequence. Dialects
// without sequences rely on the auto-increment columns instead.
func sequences(cfg *Config, s *schema.Schema, d dialect.DatabaseType) ([]string, error) {
	var stmts []string
	for _, m := range s.Models {
		decl, ok := m.Sequence()
		if !ok || m.IsIgnored() {
			continue
		}
		if !d.SupportsSequences() {
			cfg.Logger.Debug("sequence skipped", "dialect", d, "model", m.Name, "sequence", decl.Name)
			continue
		}
		seq := &sequence.Sequence{
			Name:      decl.Name,
			Schema:    m.SchemaName(),
			Start:     decl.Start,
			Increment: decl.Increment,
			Cache:     decl.Cache,
		}
		stmt, err := seq.CreateSQL(d)
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", decl.Name, err)
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// policies enables row-level security once per table and creates every
// policy on PostgreSQL, and creates security policies on SQL Server.
func policies(cfg *Config, s *schema.Schema, d dialect.DatabaseType) ([]string, error) {
	if len(s.Policies) == 0 {
		return nil, nil
	}
	c := policy.New(policy.WithSchema(s), policy.WithUserColumn(cfg.UserColumn))
	var stmts []string
	switch d {
	case dialect.PostgreSQL:
		enabled := make(map[string]bool)
		for _, p := range s.Policies {
			if enable := c.EnableRLS(p); !enabled[enable] {
				enabled[enable] = true
				stmts = append(stmts, enable)
			}
			ps, err := c.PostgresAll(p)
			if err != nil {
				return nil, fmt.Errorf("policy %s: %w", p.Name, err)
			}
			stmts = append(stmts, ps...)
		}
	case dialect.MSSQL:
		for _, p := range s.Policies {
			ms, err := c.MSSQL(p)
			if err != nil {
				return nil, fmt.Errorf("policy %s: %w", p.Name, err)
			}
			stmts = append(stmts, ms.Statements()...)
		}
	default:
		cfg.Logger.Warn("row-level security policies skipped", "dialect", d, "policies", len(s.Policies))
	}
	return stmts, nil
}
