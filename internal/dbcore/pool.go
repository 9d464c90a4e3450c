package dbcore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is a borrowed connection, released back to the pool via Release.
type Conn struct {
	raw *pgxpool.Conn
}

// Exec runs a statement on the borrowed connection.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.raw.Exec(ctx, sql, args...)
}

// Query runs a query on the borrowed connection.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.raw.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the borrowed connection.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.raw.QueryRow(ctx, sql, args...)
}

// Pool implements the Connection Pool & Database Core (§4.2).
type Pool struct {
	pool     *pgxpool.Pool
	config   PoolConfig
	logger   *slog.Logger
	sampler  *sampler
	errCount atomic.Int64
	isClosed atomic.Bool

	acquireTotalNs atomic.Int64
	acquireCount   atomic.Int64
}

// New constructs a Pool without connecting. Call Connect before use.
func New(config PoolConfig, logger *slog.Logger) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{config: config, logger: logger}, nil
}

// Connect establishes the pgxpool and starts the periodic sampler.
func (p *Pool) Connect(ctx context.Context) error {
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}
	if p.pool != nil {
		return ErrAlreadyConnected
	}

	poolConfig, err := pgxpool.ParseConfig(p.config.URI)
	if err != nil {
		return fmt.Errorf("dbcore: parsing DSN: %w", err)
	}

	poolConfig.MaxConns = p.config.MaxConns
	poolConfig.MinConns = p.config.MinConns
	poolConfig.MaxConnLifetime = p.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = p.config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = p.config.HealthCheckPeriod

	connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return fmt.Errorf("dbcore: creating pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return fmt.Errorf("dbcore: pinging database: %w", err)
	}

	p.pool = pool
	p.logger.Info("connected to database pool", "max_conns", p.config.MaxConns, "min_conns", p.config.MinConns)

	p.sampler = newSampler(30*time.Second, p.takeSample)
	p.sampler.start()

	return nil
}

func (p *Pool) takeSample() PoolSample {
	stat := p.pool.Stat()

	var meanAcquireMs float64
	if count := p.acquireCount.Swap(0); count > 0 {
		meanAcquireMs = float64(p.acquireTotalNs.Swap(0)) / float64(count) / float64(time.Millisecond)
	}

	return PoolSample{
		Timestamp:     time.Now(),
		Active:        stat.TotalConns() - stat.IdleConns(),
		Idle:          stat.IdleConns(),
		Waiters:       int32(stat.EmptyAcquireCount()),
		Errors:        p.errCount.Load(),
		MeanAcquireMs: meanAcquireMs,
	}
}

// Samples returns the last up-to-1,024 pool samples, oldest first.
func (p *Pool) Samples() []PoolSample {
	if p.sampler == nil {
		return nil
	}
	return p.sampler.samples()
}

// Disconnect closes the pool and stops the sampler.
func (p *Pool) Disconnect(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	if p.isClosed.Load() {
		return ErrConnectionClosed
	}

	if p.sampler != nil {
		p.sampler.stop()
	}
	p.pool.Close()
	p.isClosed.Store(true)
	return nil
}

// Close is an alias for Disconnect with a background context.
func (p *Pool) Close() error {
	return p.Disconnect(context.Background())
}

// IsConnected reports whether the pool has an active connection set.
func (p *Pool) IsConnected() bool {
	return !p.isClosed.Load() && p.pool != nil
}

// Health runs a lightweight SELECT 1 probe.
func (p *Pool) Health(ctx context.Context) error {
	if p.pool == nil {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	row := p.pool.QueryRow(checkCtx, "SELECT 1")
	if err := row.Scan(&result); err != nil {
		p.errCount.Add(1)
		return fmt.Errorf("%w: %v", ErrHealthCheckFailed, err)
	}
	if result != 1 {
		return ErrHealthCheckFailed
	}
	return nil
}

// Acquire borrows a connection, failing after AcquireTimeout (§4.2: 5s) and
// logging a warning when the wait exceeds SlowAcquireThreshold (100ms).
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	start := time.Now()
	raw, err := p.pool.Acquire(acquireCtx)
	elapsed := time.Since(start)

	if err != nil {
		p.errCount.Add(1)
		if ctx.Err() == nil {
			return nil, ErrAcquireTimeout
		}
		return nil, fmt.Errorf("dbcore: acquiring connection: %w", err)
	}

	p.acquireTotalNs.Add(elapsed.Nanoseconds())
	p.acquireCount.Add(1)

	if elapsed > p.config.SlowAcquireThreshold {
		p.logger.Warn("slow connection acquisition", "duration", elapsed)
	}

	return &Conn{raw: raw}, nil
}

// Release returns a connection to the pool. A connection failing validation
// is discarded by pgxpool automatically; Release is always safe to call.
func (c *Conn) Release() {
	c.raw.Release()
}

// Exec runs a statement against the pool directly (acquire-exec-release in
// one call).
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if p.pool == nil {
		return pgconn.CommandTag{}, ErrNotConnected
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		p.errCount.Add(1)
		p.logger.Error("query execution failed", "duration", time.Since(start), "error", err)
		return tag, err
	}
	return tag, nil
}

// Query runs a query against the pool directly.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.pool == nil {
		return nil, ErrNotConnected
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		p.errCount.Add(1)
		return nil, err
	}
	return rows, nil
}

// QueryRow runs a single-row query against the pool directly.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if p.pool == nil {
		return errorRow{err: ErrNotConnected}
	}
	return p.pool.QueryRow(ctx, sql, args...)
}

// WithinTransaction invokes fn with exactly one connection's transaction.
// It commits on a nil return, rolls back on error or panic, and always
// returns the connection to the pool (§4.2 Failure semantics).
func (p *Pool) WithinTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	if p.pool == nil {
		return ErrNotConnected
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.errCount.Add(1)
		return fmt.Errorf("dbcore: beginning transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			p.logger.Error("transaction rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		p.errCount.Add(1)
		return fmt.Errorf("dbcore: committing transaction: %w", err)
	}
	return nil
}

// Raw returns the underlying pgxpool.Pool for callers that need direct
// access (migrations, admin tooling).
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}

type errorRow struct{ err error }

func (r errorRow) Scan(dest ...any) error { return r.err }
