package storage

import (
	"context"

	"agent-pump/internal/domain"
)

// CurveUpdateFunc mutates a curve in place. Returning an error aborts the
// update and leaves the stored curve untouched.
type CurveUpdateFunc func(c *domain.CurveState) error

// AgentUpdateFunc mutates an agent record in place. Returning an error aborts
// the update and leaves the stored record untouched.
type AgentUpdateFunc func(a *domain.AgentRecord) error

// CurveStore provides access to curves storage, keyed by mint.
type CurveStore interface {
	// Insert adds a new curve. Returns ErrDuplicateKey if mint exists.
	Insert(ctx context.Context, c *domain.CurveState) error

	// Get retrieves a curve by mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.CurveState, error)

	// GetByAddress retrieves a curve by its derived account address.
	// Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.CurveState, error)

	// Update applies fn to the current curve atomically. Concurrent updates
	// of the same mint are serialized. Returns ErrNotFound if not exists.
	Update(ctx context.Context, mint string, fn CurveUpdateFunc) (*domain.CurveState, error)

	// GetByAgent retrieves all curves launched by an agent, ordered by created_at ASC.
	GetByAgent(ctx context.Context, agentID string) ([]*domain.CurveState, error)

	// TopBySupply returns up to limit curves ordered by current supply DESC,
	// ties broken by mint ASC.
	TopBySupply(ctx context.Context, limit int) ([]*domain.CurveState, error)
}

// AgentStore provides access to agents storage, keyed by agent id.
type AgentStore interface {
	// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, a *domain.AgentRecord) error

	// Get retrieves an agent by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.AgentRecord, error)

	// Update applies fn to the current record atomically. Concurrent updates
	// of the same agent are serialized. Returns ErrNotFound if not exists.
	Update(ctx context.Context, id string, fn AgentUpdateFunc) (*domain.AgentRecord, error)

	// TopByReputation returns up to limit agents with reputation >= minReputation,
	// ordered by reputation DESC, ties broken by id ASC.
	TopByReputation(ctx context.Context, minReputation int64, limit int) ([]*domain.AgentRecord, error)
}

// FillStore provides access to trade_fills storage. Append-only.
type FillStore interface {
	// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
	Insert(ctx context.Context, f *domain.Fill) error

	// GetByMint retrieves all fills for a mint, ordered by seq ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Fill, error)

	// GetByTimeRange retrieves fills for a mint within [start, end] (inclusive, ms).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Fill, error)

	// VolumeBuckets aggregates fills for a mint within [start, end] into
	// intervalSeconds buckets, ordered by bucket start ASC. Empty buckets are omitted.
	VolumeBuckets(ctx context.Context, mint string, intervalSeconds int, start, end int64) ([]*domain.VolumeBucket, error)
}
