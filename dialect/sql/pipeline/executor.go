package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Result is the outcome of one pipeline query.
type Result struct {
	ID           string
	Rows         []map[string]any
	RowsAffected int64
}

// Executor runs pipelines against a database.
type Executor interface {
	Execute(ctx context.Context, p *Pipeline) ([]Result, error)
}

// DriverExecutor executes pipelines query by query over a dialect.Driver.
type DriverExecutor struct {
	drv    dialect.Driver
	tx     bool
	logger *slog.Logger
}

// Option configures a DriverExecutor.
type Option func(*DriverExecutor)

// WithTransaction runs every pipeline inside one transaction that is
// rolled back on the first failing query.
func WithTransaction() Option {
	return func(e *DriverExecutor) { e.tx = true }
}

// WithLogger sets the logger used for execution summaries.
func WithLogger(l *slog.Logger) Option {
	return func(e *DriverExecutor) { e.logger = l }
}

// NewExecutor returns an executor over drv.
func NewExecutor(drv dialect.Driver, opts ...Option) *DriverExecutor {
	e := &DriverExecutor{drv: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Executor = (*DriverExecutor)(nil)

// Execute runs the queries in order and returns one result per query.
// Queries that expect rows are scanned into maps.
func (e *DriverExecutor) Execute(ctx context.Context, p *Pipeline) (_ []Result, rerr error) {
	if p.Dialect() != e.drv.Dialect() {
		return nil, fmt.Errorf("pipeline: %s pipeline on a %s driver", p.Dialect(), e.drv.Dialect())
	}
	start := time.Now()
	var eq dialect.ExecQuerier = e.drv
	if e.tx {
		tx, err := e.drv.Tx(ctx)
		if err != nil {
			return nil, fmt.Errorf("pipeline: begin: %w", err)
		}
		defer func() {
			if rerr != nil {
				rerr = errors.Join(rerr, tx.Rollback())
				return
			}
			if err := tx.Commit(); err != nil {
				rerr = fmt.Errorf("pipeline: commit: %w", err)
			}
		}()
		eq = tx
	}
	results := make([]Result, 0, p.Len())
	for _, q := range p.queries {
		r, err := run(ctx, eq, q)
		if err != nil {
			return nil, fmt.Errorf("pipeline: query %s: %w", q.ID, err)
		}
		results = append(results, r)
	}
	e.logger.DebugContext(ctx, "pipeline executed",
		"queries", p.Len(),
		"transaction", e.tx,
		"duration", time.Since(start),
	)
	return results, nil
}

func run(ctx context.Context, eq dialect.ExecQuerier, q Query) (Result, error) {
	r := Result{ID: q.ID}
	args := sql.Args(q.Params)
	if q.ExpectsRows {
		rows := &sql.Rows{}
		if err := eq.Query(ctx, q.SQL, args, rows); err != nil {
			return r, err
		}
		maps, err := sql.ScanMaps(rows)
		if err != nil {
			return r, err
		}
		r.Rows = maps
		return r, nil
	}
	var res sql.Result
	if err := eq.Exec(ctx, q.SQL, args, &res); err != nil {
		return r, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r, err
	}
	r.RowsAffected = n
	return r, nil
}
