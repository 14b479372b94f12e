package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/prax/dialect"
)

// Operation is the kind of database work a StatsDriver measures.
type Operation uint8

// Measured operations. A batch is one transaction, from begin to commit
// or rollback.
const (
	QueryOperation Operation = iota
	ExecOperation
	BatchOperation
	numOperations
)

func (o Operation) String() string {
	switch o {
	case QueryOperation:
		return "query"
	case ExecOperation:
		return "exec"
	case BatchOperation:
		return "batch"
	default:
		return "unknown"
	}
}

type counters struct {
	count, errors, slow, rows, nanos atomic.Int64
}

// ExecStats accumulates per-operation counters. It is safe for
// concurrent use.
type ExecStats struct {
	ops [numOperations]counters
}

func (s *ExecStats) add(op Operation, d time.Duration, rows int64, err error, slow bool) {
	c := &s.ops[op]
	c.count.Add(1)
	c.nanos.Add(int64(d))
	c.rows.Add(rows)
	if err != nil {
		c.errors.Add(1)
	}
	if slow {
		c.slow.Add(1)
	}
}

// Snapshot returns the current counters.
func (s *ExecStats) Snapshot() Snapshot {
	var snap Snapshot
	for op := range s.ops {
		c := &s.ops[op]
		snap[op] = OperationStats{
			Count:    c.count.Load(),
			Errors:   c.errors.Load(),
			Slow:     c.slow.Load(),
			Rows:     c.rows.Load(),
			Duration: time.Duration(c.nanos.Load()),
		}
	}
	return snap
}

// Reset zeroes all counters.
func (s *ExecStats) Reset() {
	for op := range s.ops {
		c := &s.ops[op]
		c.count.Store(0)
		c.errors.Store(0)
		c.slow.Store(0)
		c.rows.Store(0)
		c.nanos.Store(0)
	}
}

// OperationStats holds the counters of one operation.
type OperationStats struct {
	Count  int64
	Errors int64
	// Slow counts statements over the slow threshold. Always zero for batches.
	Slow int64
	// Rows is the number of rows affected. Only execs report it.
	Rows     int64
	Duration time.Duration
}

// Avg returns the mean duration per operation.
func (o OperationStats) Avg() time.Duration {
	if o.Count == 0 {
		return 0
	}
	return o.Duration / time.Duration(o.Count)
}

// Snapshot is a point-in-time copy of ExecStats, indexed by Operation.
type Snapshot [numOperations]OperationStats

// Statements returns the number of queries and execs.
func (s Snapshot) Statements() int64 {
	return s[QueryOperation].Count + s[ExecOperation].Count
}

func (s Snapshot) String() string {
	var b []byte
	for op, o := range s {
		if op > 0 {
			b = append(b, ' ')
		}
		b = fmt.Appendf(b, "%s=%d/%derr/%s", Operation(op), o.Count, o.Errors, o.Avg())
	}
	return string(b)
}

// LogValue groups the counters by operation.
func (s Snapshot) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, numOperations)
	for op, o := range s {
		attrs = append(attrs, slog.Group(Operation(op).String(),
			"count", o.Count,
			"errors", o.Errors,
			"slow", o.Slow,
			"rows", o.Rows,
			"duration", o.Duration,
		))
	}
	return slog.GroupValue(attrs...)
}

// SlowHook is called for every query or exec that runs longer than the
// slow threshold.
type SlowHook func(ctx context.Context, op Operation, query string, args []any, d time.Duration)

// StatsDriver wraps a dialect.Driver and measures its queries, execs and
// transactions.
type StatsDriver struct {
	dialect.Driver
	stats         *ExecStats
	slowThreshold time.Duration
	slowHook      SlowHook
	mu            sync.RWMutex
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the slow statement threshold. Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.slowThreshold = d }
}

// WithSlowHook sets the callback for slow statements.
func WithSlowHook(hook SlowHook) StatsOption {
	return func(s *StatsDriver) { s.slowHook = hook }
}

// WithSlowQueryLog logs slow statements at warn level to logger, or to
// slog.Default() when logger is nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowHook(func(ctx context.Context, op Operation, query string, args []any, d time.Duration) {
		logger.WarnContext(ctx, "slow statement", "op", op.String(), "duration", d, "sql", query, "args", args)
	})
}

// NewStatsDriver wraps drv with measurement.
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
//	_, err := pipeline.NewExecutor(stats, pipeline.WithTransaction()).Execute(ctx, p)
//	logger.Info("done", "stats", stats.Snapshot())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &ExecStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the live counters.
func (d *StatsDriver) Stats() *ExecStats { return d.stats }

// Snapshot is shorthand for d.Stats().Snapshot().
func (d *StatsDriver) Snapshot() Snapshot { return d.stats.Snapshot() }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query runs a query and measures it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.statement(ctx, QueryOperation, query, args, v, start, err)
	return err
}

// Exec runs a statement and measures it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.statement(ctx, ExecOperation, query, args, v, start, err)
	return err
}

func (d *StatsDriver) statement(ctx context.Context, op Operation, query string, args, v any, start time.Time, err error) {
	elapsed := time.Since(start)
	var rows int64
	if r, ok := v.(*Result); ok && err == nil && *r != nil {
		rows, _ = (*r).RowsAffected()
	}
	d.mu.RLock()
	threshold, hook := d.slowThreshold, d.slowHook
	d.mu.RUnlock()
	slow := elapsed > threshold
	d.stats.add(op, elapsed, rows, err, slow)
	if slow && hook != nil {
		argv, _ := args.([]any)
		hook(ctx, op, query, argv, elapsed)
	}
}

// Tx starts a transaction that is measured as one batch.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	start := time.Now()
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.stats.add(BatchOperation, time.Since(start), 0, err, false)
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d, start: start}, nil
}

// StatsTx measures the statements of a transaction and the transaction
// itself. A rollback counts as a failed batch.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
	start  time.Time
}

// Query runs a query within the transaction and measures it.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.statement(ctx, QueryOperation, query, args, v, start, err)
	return err
}

// Exec runs a statement within the transaction and measures it.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.statement(ctx, ExecOperation, query, args, v, start, err)
	return err
}

// Commit commits the transaction and records the batch.
func (tx *StatsTx) Commit() error {
	err := tx.Tx.Commit()
	tx.driver.stats.add(BatchOperation, time.Since(tx.start), 0, err, false)
	return err
}

// Rollback rolls back the transaction and records a failed batch.
func (tx *StatsTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.driver.stats.add(BatchOperation, time.Since(tx.start), 0, errRolledBack, false)
	return err
}

var errRolledBack = errors.New("transaction rolled back")

// DebugDriver logs every statement at debug level before running it.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with statement logging. A nil logger means
// slog.Default().
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger.With("dialect", drv.Dialect().String())}
}

// Query logs and executes a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and executes a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with statement logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &DebugTx{Tx: tx, logger: d.logger}, nil
}

// DebugTx wraps a transaction with statement logging.
type DebugTx struct {
	dialect.Tx
	logger *slog.Logger
}

// Query logs and executes a query within the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec logs and executes a statement within the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "tx exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit logs and commits the transaction.
func (tx *DebugTx) Commit() error {
	tx.logger.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback logs and rolls back the transaction.
func (tx *DebugTx) Rollback() error {
	tx.logger.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
