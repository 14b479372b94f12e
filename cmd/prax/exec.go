package main

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/syssam/prax/compiler"
	"github.com/syssam/prax/config"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
	"github.com/syssam/prax/dialect/sql/pipeline"
	"github.com/syssam/prax/schema"
)

// datasource resolves the named datasource of s, or its first one.
func (a *app) datasource(s *schema.Schema, name string) (*config.Datasource, error) {
	for _, ds := range s.Datasources {
		if name == "" || ds.Name == name {
			return config.ResolveDatasource(ds, a.cfg.Options()...)
		}
	}
	if name == "" {
		return nil, errors.New("schema declares no datasource")
	}
	return nil, fmt.Errorf("datasource %q not found", name)
}

// apply runs the statements of art against ds in one transaction.
func (a *app) apply(ctx context.Context, ds *config.Datasource, art *compiler.Artifact) (int, error) {
	if ds.IsMongo() {
		return 0, fmt.Errorf("datasource %s: cannot apply SQL to mongodb", ds.Name)
	}
	db, err := sql.Open(ds.Dialect, ds.DSN)
	if err != nil {
		return 0, fmt.Errorf("datasource %s: %w", ds.Name, err)
	}
	defer db.Close()
	var drv dialect.Driver = db
	if a.verbose {
		drv = sql.NewDebugDriver(drv, a.logger)
	}
	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(a.logger))
	p := pipeline.New(ds.Dialect)
	for _, stmt := range art.Statements {
		p.Exec(stmt)
	}
	ex := pipeline.NewExecutor(stats, pipeline.WithTransaction(), pipeline.WithLogger(a.logger))
	if _, err := ex.Execute(ctx, p); err != nil {
		return 0, fmt.Errorf("datasource %s: %w", ds.Name, err)
	}
	a.logger.Info("schema applied", "datasource", ds.Name, "dialect", ds.Dialect, "stats", stats.Snapshot())
	return p.Len(), nil
}
