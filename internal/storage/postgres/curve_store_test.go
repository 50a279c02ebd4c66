package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pump/internal/curve"
	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

func testCurve(mint string, supply int64, createdAt int64) *domain.CurveState {
	return &domain.CurveState{
		Mint:    mint,
		Address: "addr-" + mint,
		AgentID: "agent-1",
		Name:    "Token " + mint,
		Symbol:  "TKN",
		Metadata: domain.LaunchMetadata{
			Description: "desc",
			Twitter:     "@token",
		},
		Params: domain.CurveParams{
			Type:               curve.TypeLinear,
			BasePriceLamports:  1_000_000_000,
			SlopeMilli:         1,
			MaxSupply:          1_000_000,
			MigrationThreshold: 500_000,
		},
		CurrentSupply: supply,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestCurveStore_InsertGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCurveStore(pool)
	ctx := context.Background()

	c := testCurve("mint-1", 0, 1000)
	require.NoError(t, store.Insert(ctx, c))

	got, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	got, err = store.GetByAddress(ctx, "addr-mint-1")
	require.NoError(t, err)
	assert.Equal(t, "mint-1", got.Mint)

	err = store.Insert(ctx, c)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetByAddress(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCurveStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCurveStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, testCurve("mint-1", 0, 1000)))

	got, err := store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
		c.CurrentSupply = 500_000
		c.IsMigrated = true
		c.TradeSeq = 1
		c.UpdatedAt = 2000
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), got.CurrentSupply)

	stored, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.True(t, stored.IsMigrated)
	assert.Equal(t, int64(1), stored.TradeSeq)
	assert.Equal(t, int64(2000), stored.UpdatedAt)

	rejected := errors.New("rejected")
	_, err = store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
		c.CurrentSupply = 1
		return rejected
	})
	assert.ErrorIs(t, err, rejected)

	stored, err = store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), stored.CurrentSupply, "aborted update must not persist")

	_, err = store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
		c.Params.MaxSupply = 10
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Update(ctx, "missing", func(*domain.CurveState) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCurveStore_ConcurrentUpdates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCurveStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, testCurve("mint-1", 0, 1000)))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "mint-1", func(c *domain.CurveState) error {
				c.CurrentSupply += 10
				c.TradeSeq++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), got.CurrentSupply)
	assert.Equal(t, int64(workers), got.TradeSeq)
}

func TestCurveStore_Listings(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCurveStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testCurve("mint-b", 300, 3000)))
	require.NoError(t, store.Insert(ctx, testCurve("mint-a", 300, 1000)))
	require.NoError(t, store.Insert(ctx, testCurve("mint-c", 900, 2000)))

	top, err := store.TopBySupply(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "mint-c", top[0].Mint)
	assert.Equal(t, "mint-a", top[1].Mint, "ties broken by mint")

	byAgent, err := store.GetByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, byAgent, 3)
	assert.Equal(t, "mint-a", byAgent[0].Mint)
	assert.Equal(t, "mint-b", byAgent[2].Mint)

	none, err := store.TopBySupply(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
