package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

func testAgent(id string, reputation int64) *domain.AgentRecord {
	return &domain.AgentRecord{
		ID:          id,
		Owner:       "owner-" + id,
		Name:        "Agent " + id,
		Metadata:    "ipfs://" + id,
		Address:     "addr-" + id,
		Reputation:  reputation,
		TotalVolume: decimal.Zero,
		CreatedAt:   1000,
		UpdatedAt:   1000,
	}
}

func TestAgentStore_InsertGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAgentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testAgent("agent-1", 0)))

	got, err := store.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-agent-1", got.Owner)
	assert.Equal(t, "addr-agent-1", got.Address)
	assert.True(t, got.TotalVolume.IsZero())

	assert.ErrorIs(t, store.Insert(ctx, testAgent("agent-1", 0)), storage.ErrDuplicateKey)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgentStore_UpdateKeepsDecimalPrecision(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAgentStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, testAgent("agent-1", 0)))

	volume := decimal.RequireFromString("1000.500000000000000001")
	_, err := store.Update(ctx, "agent-1", func(a *domain.AgentRecord) error {
		a.TotalVolume = a.TotalVolume.Add(volume)
		a.Reputation = 1000
		a.IsVerified = true
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, got.TotalVolume.Equal(volume), "volume %s", got.TotalVolume)
	assert.Equal(t, int64(1000), got.Reputation)
	assert.True(t, got.IsVerified)

	_, err = store.Update(ctx, "missing", func(*domain.AgentRecord) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgentStore_ConcurrentUpdates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAgentStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, testAgent("agent-1", 0)))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "agent-1", func(a *domain.AgentRecord) error {
				a.TotalVolume = a.TotalVolume.Add(decimal.NewFromInt(5))
				a.Reputation += 5
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, got.TotalVolume.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(100), got.Reputation)
}

func TestAgentStore_TopByReputation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAgentStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testAgent("b", 3000)))
	require.NoError(t, store.Insert(ctx, testAgent("a", 3000)))
	require.NoError(t, store.Insert(ctx, testAgent("c", 5000)))
	require.NoError(t, store.Insert(ctx, testAgent("d", 100)))

	top, err := store.TopByReputation(ctx, 2500, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "c", top[0].ID)
	assert.Equal(t, "a", top[1].ID)
	assert.Equal(t, "b", top[2].ID)

	top, err = store.TopByReputation(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
}
