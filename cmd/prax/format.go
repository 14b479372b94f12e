package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/prax/compiler/load"
)

func (a *app) formatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format-ast [file|dir]...",
		Short: "Print the parsed schema as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.load(args)
			if err != nil {
				return err
			}
			b, err := load.MarshalSchema(spec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
