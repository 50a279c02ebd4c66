package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pump/internal/domain"
	"agent-pump/internal/idhash"
	"agent-pump/internal/storage"
)

func testFill(mint string, seq int64, side domain.Side, price string, ts int64) *domain.Fill {
	return &domain.Fill{
		FillID:       idhash.ComputeFillID(mint, seq),
		Mint:         mint,
		AgentID:      "agent-1",
		Side:         side,
		Amount:       100,
		TotalPrice:   decimal.RequireFromString(price),
		SupplyBefore: (seq - 1) * 100,
		SupplyAfter:  seq * 100,
		Seq:          seq,
		Timestamp:    ts,
	}
}

func TestFillStore_InsertGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFillStore(conn)
	ctx := context.Background()

	f := testFill("mint-1", 1, domain.SideBuy, "1500.000000000000000001", 1000)
	f.Migrated = true
	require.NoError(t, store.Insert(ctx, f))
	require.NoError(t, store.Insert(ctx, testFill("mint-1", 2, domain.SideSell, "10", 2000)))
	require.NoError(t, store.Insert(ctx, testFill("mint-2", 1, domain.SideBuy, "7", 1500)))

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, f.FillID, got[0].FillID)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.True(t, got[0].Migrated)
	assert.True(t, got[0].TotalPrice.Equal(f.TotalPrice), "price %s", got[0].TotalPrice)
	assert.Equal(t, int64(2), got[1].Seq)

	assert.ErrorIs(t, store.Insert(ctx, f), storage.ErrDuplicateKey)

	ranged, err := store.GetByTimeRange(ctx, "mint-1", 1500, 2000)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, int64(2), ranged[0].Seq)
}

func TestFillStore_VolumeBuckets(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFillStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testFill("mint-1", 1, domain.SideBuy, "100", 1_000)))
	require.NoError(t, store.Insert(ctx, testFill("mint-1", 2, domain.SideSell, "40", 59_000)))
	require.NoError(t, store.Insert(ctx, testFill("mint-1", 3, domain.SideBuy, "5.5", 61_000)))

	buckets, err := store.VolumeBuckets(ctx, "mint-1", 60, 0, 120_000)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, int64(0), buckets[0].TimestampMs)
	assert.True(t, buckets[0].Volume.Equal(decimal.NewFromInt(140)))
	assert.True(t, buckets[0].BuyVolume.Equal(decimal.NewFromInt(100)))
	assert.True(t, buckets[0].SellVolume.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 2, buckets[0].TradeCount)

	assert.Equal(t, int64(60_000), buckets[1].TimestampMs)
	assert.True(t, buckets[1].Volume.Equal(decimal.RequireFromString("5.5")))
	assert.True(t, buckets[1].SellVolume.IsZero())

	_, err = store.VolumeBuckets(ctx, "mint-1", 0, 0, 1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
