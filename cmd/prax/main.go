// Command prax validates schemas, prints their SQL and generates Go code.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syssam/prax/compiler/load"
	"github.com/syssam/prax/config"
)

// app holds the state shared by the commands.
type app struct {
	configFile string
	verbose    bool
	logger     *slog.Logger
	cfg        *config.File
}

// newRootCmd returns the prax command tree.
func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "prax",
		Short:         "Schema compiler for the prax data layer",
		Long:          "prax reads .prax schema files, validates them, prints the DDL of every supported database and generates Go types.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", config.DefaultFile, "Path to the prax.yaml file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.AddCommand(
		a.validateCmd(),
		a.sqlCmd(),
		a.generateCmd(),
		a.formatCmd(),
		a.infoCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	cfg, err := config.LoadFile(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// load reads the schema files named by args, or by the config file.
func (a *app) load(args []string) (*load.SchemaSpec, error) {
	paths := args
	if len(paths) == 0 {
		paths = a.cfg.SchemaPaths()
	}
	a.logger.Debug("loading schema", "paths", paths)
	return (&load.Config{Paths: paths}).Load()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
