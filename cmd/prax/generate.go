package main

import (
	"context"
	"go/token"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/prax"
	"github.com/syssam/prax/compiler"
	"github.com/syssam/prax/compiler/gen"
)

type generateFlags struct {
	out      string
	pkg      string
	dialects []string
	sql      bool
	watch    bool
	debounce time.Duration
}

func (a *app) generateCmd() *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate [file|dir]...",
		Short: "Generate Go types from a schema",
		Long: "Generate one Go struct per model and view, enum types with constants and table name constants. " +
			"With --watch the schema files are regenerated on every change.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cache prax.Cache
			if a.cfg.Cache || f.watch {
				cache = prax.NewMemoryCache()
			}
			files, err := a.generate(cmd.Context(), args, f, cache)
			if err != nil {
				return err
			}
			if !f.watch {
				return nil
			}
			paths := args
			if len(paths) == 0 {
				paths = a.cfg.SchemaPaths()
			}
			return watch(cmd.Context(), a.logger, append(paths, files...), f.debounce, func() error {
				_, err := a.generate(cmd.Context(), args, f, cache)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output directory (defaults to the config file or generator block)")
	cmd.Flags().StringVarP(&f.pkg, "package", "p", "", "Package name of the generated files")
	cmd.Flags().StringSliceVarP(&f.dialects, "dialect", "d", nil, "Dialects written with --sql (repeatable)")
	cmd.Flags().BoolVar(&f.sql, "sql", false, "Also write sql/<dialect>.sql into the output directory")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Regenerate when the schema files change")
	cmd.Flags().DurationVar(&f.debounce, "debounce", 100*time.Millisecond, "Quiet period before regenerating in watch mode")
	return cmd
}

// generate runs one generation and returns the loaded schema files.
func (a *app) generate(ctx context.Context, args []string, f *generateFlags, cache prax.Cache) ([]string, error) {
	start := time.Now()
	spec, err := a.load(args)
	if err != nil {
		return nil, err
	}
	g, err := gen.New(a.genOptions(f, gen.FromSchema(spec.Schema))...)
	if err != nil {
		return spec.Files, err
	}
	opts := []compiler.Option{compiler.WithLogger(a.logger), compiler.WithGenerators(g)}
	if cache != nil {
		opts = append(opts, compiler.WithCache(cache, 0))
	}
	if f.sql {
		ds, err := a.dialects(f.dialects)
		if err != nil {
			return spec.Files, err
		}
		if len(ds) > 0 {
			opts = append(opts, compiler.WithDialects(ds...))
		}
	}
	res, err := compiler.CompileSchema(ctx, spec.Schema, spec.Digest, opts...)
	if err != nil {
		return spec.Files, err
	}
	if res.Cached {
		a.logger.Debug("schema unchanged", "digest", res.Digest)
	}
	files := res.Files
	if f.sql {
		for _, art := range res.Artifacts {
			files = append(files, compiler.File{
				Path:    filepath.Join("sql", strings.ToLower(art.Dialect.String())+".sql"),
				Content: []byte(art.Script()),
			})
		}
	}
	if err := gen.NewWriter(g.Config().Target).WithLogger(a.logger).Write(ctx, files); err != nil {
		return spec.Files, err
	}
	a.logger.Info("generation finished", "target", g.Config().Target, "files", len(files), "duration", time.Since(start))
	return spec.Files, nil
}

// genOptions orders the generator options: the config file first, then
// the schema generator block, then the flags.
func (a *app) genOptions(f *generateFlags, fromSchema []gen.Option) []gen.Option {
	opts := []gen.Option{gen.WithTarget(a.cfg.Output)}
	if isPackage(a.cfg.Package) {
		opts = append(opts, gen.WithPackage(a.cfg.Package))
	}
	opts = append(opts, fromSchema...)
	if f.out != "" {
		opts = append(opts, gen.WithTarget(f.out))
		if pkg := filepath.Base(filepath.Clean(f.out)); f.pkg == "" && isPackage(pkg) {
			opts = append(opts, gen.WithPackage(pkg))
		}
	}
	if f.pkg != "" {
		opts = append(opts, gen.WithPackage(f.pkg))
	}
	return opts
}

func isPackage(name string) bool {
	return token.IsIdentifier(name) && !token.IsKeyword(name)
}
