package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/prax/compiler"
	"github.com/syssam/prax/config"
	"github.com/syssam/prax/dialect"
)

func (a *app) sqlCmd() *cobra.Command {
	var (
		dialects []string
		out      string
		exec     bool
		dsName   string
	)
	cmd := &cobra.Command{
		Use:   "sql [file|dir]...",
		Short: "Print the DDL of a schema",
		Long: "Print the statements creating the schema: enum types, tables, indexes, foreign keys, views, " +
			"sequences, row-level security policies and raw SQL blocks.",
		Example: "  prax sql --dialect postgresql schema.prax\n  prax sql -d mysql -d sqlite ./schema\n" +
			"  prax sql --exec --datasource db schema.prax",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exec && len(dialects) > 0 {
				return errors.New("--exec applies the dialect of the datasource; drop --dialect")
			}
			ds, err := a.dialects(dialects)
			if err != nil {
				return err
			}
			spec, err := a.load(args)
			if err != nil {
				return err
			}
			var target *config.Datasource
			if exec {
				if target, err = a.datasource(spec.Schema, dsName); err != nil {
					return err
				}
				ds = []dialect.DatabaseType{target.Dialect}
			}
			opts := []compiler.Option{compiler.WithLogger(a.logger)}
			if len(ds) > 0 {
				opts = append(opts, compiler.WithDialects(ds...))
			}
			res, err := compiler.CompileSchema(cmd.Context(), spec.Schema, spec.Digest, opts...)
			if err != nil {
				return err
			}
			if target != nil {
				art := res.Dialect(target.Dialect)
				if art == nil {
					return fmt.Errorf("datasource %s: no %s artifact", target.Name, target.Dialect)
				}
				n, err := a.apply(cmd.Context(), target, art)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d statement(s) to %s (%s)\n", n, target.Name, target.Dialect)
				return err
			}
			var b strings.Builder
			for i, art := range res.Artifacts {
				if len(res.Artifacts) > 1 {
					if i > 0 {
						b.WriteString("\n")
					}
					fmt.Fprintf(&b, "-- %s\n", art.Dialect)
				}
				b.WriteString(art.Script())
			}
			if out != "" {
				return os.WriteFile(out, []byte(b.String()), 0o644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&dialects, "dialect", "d", nil, "Target dialect: postgresql, mysql, sqlite or sqlserver (repeatable)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the script to a file instead of stdout")
	cmd.Flags().BoolVar(&exec, "exec", false, "Apply the statements to the schema datasource in one transaction")
	cmd.Flags().StringVar(&dsName, "datasource", "", "Datasource used by --exec (default: the first one)")
	return cmd
}

// dialects parses the dialect flag, falling back to the config file.
func (a *app) dialects(names []string) ([]dialect.DatabaseType, error) {
	if len(names) == 0 {
		return a.cfg.DialectTypes()
	}
	ds := make([]dialect.DatabaseType, 0, len(names))
	for _, name := range names {
		d, ok := dialect.Parse(name)
		if !ok {
			return nil, fmt.Errorf("unknown dialect %q", name)
		}
		ds = append(ds, d)
	}
	return ds, nil
}
