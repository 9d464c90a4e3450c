package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Omarrvv/final-bot-sub005/internal/dbcore"
)

const defaultFlushSize = 100

// operation is one queued write, already rendered to parameterized SQL.
type operation struct {
	sql  string
	args []any
}

// Executor groups homogeneous writes into a single pipelined transaction,
// flushing automatically at flushSize operations (§4.5 Batch executor).
type Executor struct {
	pool      *dbcore.Pool
	analyzer  *Analyzer
	flushSize int
	logger    *slog.Logger

	mu  sync.Mutex
	ops []operation
}

// NewExecutor constructs an Executor. flushSize <= 0 uses the default of 100.
// analyzer may be nil to skip timing observation.
func NewExecutor(pool *dbcore.Pool, analyzer *Analyzer, flushSize int, logger *slog.Logger) *Executor {
	if flushSize <= 0 {
		flushSize = defaultFlushSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{pool: pool, analyzer: analyzer, flushSize: flushSize, logger: logger}
}

// AddInsert queues a single-row insert.
func (e *Executor) AddInsert(ctx context.Context, table string, columns []string, values []any) error {
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return e.add(ctx, sql, values)
}

// AddUpdate queues an update of columns/values for the row matching
// whereColumn = whereValue.
func (e *Executor) AddUpdate(ctx context.Context, table string, columns []string, values []any, whereColumn string, whereValue any) error {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(sets, ", "), whereColumn, len(values)+1)
	args := append(append([]any{}, values...), whereValue)
	return e.add(ctx, sql, args)
}

// AddDelete queues a delete of the row matching whereColumn = whereValue.
func (e *Executor) AddDelete(ctx context.Context, table, whereColumn string, whereValue any) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, whereColumn)
	return e.add(ctx, sql, []any{whereValue})
}

func (e *Executor) add(ctx context.Context, sql string, args []any) error {
	e.mu.Lock()
	e.ops = append(e.ops, operation{sql: sql, args: args})
	shouldFlush := len(e.ops) >= e.flushSize
	e.mu.Unlock()

	if shouldFlush {
		return e.Flush(ctx)
	}
	return nil
}

// Pending reports the number of queued, unflushed operations.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ops)
}

// Flush executes every queued operation in a single transaction via one
// pipelined round trip. On failure the entire batch rolls back and the
// error is returned to the caller (§4.5 Batch executor).
func (e *Executor) Flush(ctx context.Context) error {
	e.mu.Lock()
	ops := e.ops
	e.ops = nil
	e.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	err := e.pool.WithinTransaction(ctx, func(tx pgx.Tx) error {
		pgxBatch := &pgx.Batch{}
		for _, op := range ops {
			pgxBatch.Queue(op.sql, op.args...)
		}

		br := tx.SendBatch(ctx, pgxBatch)
		defer br.Close()

		for i := range ops {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("batch: operation %d/%d failed: %w", i+1, len(ops), err)
			}
		}
		return nil
	})

	if e.analyzer != nil {
		e.analyzer.Record(QuerySample{
			Table:     "batch",
			Template:  fmt.Sprintf("batch flush (%d ops)", len(ops)),
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	}

	if err != nil {
		e.logger.Error("batch flush failed, all operations rolled back", "ops", len(ops), "error", err)
		return err
	}
	return nil
}
