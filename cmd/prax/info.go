package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syssam/prax/config"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [file|dir]...",
		Short: "Show the resolved datasources and server groups",
		Long:  "Resolve the datasource and server URLs from the environment and print where the schema connects to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.load(args)
			if err != nil {
				return err
			}
			opts := a.cfg.Options()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ds := range spec.Schema.Datasources {
				r, err := config.ResolveDatasource(ds, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "datasource %s\tprovider=%s\tdriver=%s\thost=%s\tdatabase=%s\n",
					r.Name, r.Provider, r.DriverName, r.Host, r.Database)
			}
			for _, g := range spec.Schema.ServerGroups {
				t, err := config.BuildTopology(g, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "serverGroup %s\tstrategy=%s\treaders=%d\tweight=%d\n",
					t.Name, t.Strategy, len(t.Readers()), t.TotalWeight())
				for _, s := range t.Servers() {
					fmt.Fprintf(tw, "  server %s\trole=%s\tregion=%s\tweight=%d\tpriority=%d\n",
						s.Name, s.Role, s.Region, s.Weight, s.Priority)
				}
			}
			return tw.Flush()
		},
	}
}
