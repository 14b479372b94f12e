package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/prax/config"
	"github.com/syssam/prax/schema"
)

func (a *app) validateCmd() *cobra.Command {
	var env bool
	cmd := &cobra.Command{
		Use:   "validate [file|dir]...",
		Short: "Validate schema files",
		Long:  "Parse and validate the schema. With --env the datasource and server URLs are resolved as well.",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.load(args)
			if err != nil {
				return err
			}
			if env {
				if err := a.resolveAll(spec.Schema.Datasources, spec.Schema.ServerGroups); err != nil {
					return err
				}
			}
			s := spec.Schema
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) valid: %d models, %d enums, %d types, %d views, %d policies\n",
				len(spec.Files), len(s.Models), len(s.Enums), len(s.Types), len(s.Views), len(s.Policies))
			return nil
		},
	}
	cmd.Flags().BoolVar(&env, "env", false, "Resolve datasource and server URLs from the environment")
	return cmd
}

// resolveAll resolves every datasource and server group and joins the
// errors.
func (a *app) resolveAll(dss []*schema.Datasource, groups []*schema.ServerGroup) error {
	var errs []error
	opts := a.cfg.Options()
	for _, ds := range dss {
		if _, err := config.ResolveDatasource(ds, opts...); err != nil {
			errs = append(errs, err)
		}
	}
	for _, g := range groups {
		if _, err := config.BuildTopology(g, opts...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
