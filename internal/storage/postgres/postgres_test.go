package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

func TestPgErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("lock curve: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name      string
		err       error
		duplicate bool
		retryable bool
	}{
		{"unique violation", wrap(pgErrUniqueViolation), true, false},
		{"serialization failure", wrap(pgErrSerializationFailure), false, true},
		{"deadlock", wrap(pgErrDeadlockDetected), false, true},
		{"lock timeout", wrap(pgErrLockNotAvailable), false, true},
		{"check violation", wrap("23514"), false, false},
		{"plain error", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.duplicate, isDuplicateKeyError(tt.err))
			assert.Equal(t, tt.retryable, isRetryableTxError(tt.err))
		})
	}

	assert.True(t, isNotFoundError(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
}

func TestCurveStore_UpdateLockTimeout(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewCurveStore(pool).Insert(ctx, testCurve("mint-1", 0, 1000)))

	holder, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)
	_, err = holder.Exec(ctx, `SELECT mint FROM curves WHERE mint = $1 FOR UPDATE`, "mint-1")
	require.NoError(t, err)

	short, err := NewPoolWithOptions(ctx, pool.Config().ConnString(), PoolOptions{
		LockTimeout: 100 * time.Millisecond,
		TxAttempts:  2,
	})
	require.NoError(t, err)
	defer short.Close()
	store := NewCurveStore(short)

	calls := 0
	_, err = store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Zero(t, calls, "fn must not run without the row lock")

	require.NoError(t, holder.Rollback(ctx))

	got, err := store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
		c.CurrentSupply = 10
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.CurrentSupply)
}
