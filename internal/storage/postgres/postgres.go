package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"agent-pump/internal/storage"
)

// PoolOptions tunes the pool for row-locked read-modify-write transactions.
type PoolOptions struct {
	// MaxConns caps open connections. Zero keeps the pgx default.
	MaxConns int32
	// LockTimeout bounds how long a transaction waits on a row lock.
	// Zero waits forever.
	LockTimeout time.Duration
	// TxAttempts is how many times a transaction is run when it fails with
	// a serialization, deadlock or lock timeout error. Values below 1 mean 1.
	TxAttempts int
}

// DefaultPoolOptions waits at most 5s for a curve or agent row lock and
// retries a conflicting transaction twice.
var DefaultPoolOptions = PoolOptions{
	LockTimeout: 5 * time.Second,
	TxAttempts:  3,
}

const txRetryBackoff = 25 * time.Millisecond

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
	txAttempts int
}

// NewPool creates a Postgres connection pool with DefaultPoolOptions.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	return NewPoolWithOptions(ctx, dsn, DefaultPoolOptions)
}

// NewPoolWithOptions creates a Postgres connection pool.
func NewPoolWithOptions(ctx context.Context, dsn string, opts PoolOptions) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.LockTimeout > 0 {
		config.ConnConfig.RuntimeParams["lock_timeout"] = fmt.Sprintf("%dms", opts.LockTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	attempts := opts.TxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Pool{Pool: pool, txAttempts: attempts}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// withTx runs fn in a transaction and commits it. Lock contention failures
// rerun the whole transaction; once attempts run out the error wraps
// storage.ErrConflict.
func (p *Pool) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= p.txAttempts; attempt++ {
		err = p.runTx(ctx, fn)
		if !isRetryableTxError(err) {
			return err
		}
		if attempt == p.txAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryBackoff):
		}
	}
	return fmt.Errorf("%w: %v", storage.ErrConflict, err)
}

func (p *Pool) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation      = "23505" // unique_violation
	pgErrSerializationFailure = "40001" // serialization_failure
	pgErrDeadlockDetected     = "40P01" // deadlock_detected
	pgErrLockNotAvailable     = "55P03" // lock_not_available, raised by lock_timeout
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return pgErrorCode(err) == pgErrUniqueViolation
}

// isRetryableTxError reports lock contention that a rerun can resolve.
func isRetryableTxError(err error) bool {
	switch pgErrorCode(err) {
	case pgErrSerializationFailure, pgErrDeadlockDetected, pgErrLockNotAvailable:
		return true
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
