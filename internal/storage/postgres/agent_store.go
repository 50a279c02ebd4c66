package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"agent-pump/internal/domain"
	"agent-pump/internal/observability"
	"agent-pump/internal/storage"
)

// AgentStore implements storage.AgentStore using PostgreSQL.
// total_volume is NUMERIC and crosses the driver as text.
type AgentStore struct {
	pool *Pool
}

// NewAgentStore creates a new AgentStore.
func NewAgentStore(pool *Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AgentStore = (*AgentStore)(nil)

const agentColumns = `
	id, owner, name, metadata, address,
	reputation, total_launches, total_volume::text, is_verified, created_at, updated_at
`

// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
func (s *AgentStore) Insert(ctx context.Context, a *domain.AgentRecord) error {
	start := time.Now()
	query := `
		INSERT INTO agents (
			id, owner, name, metadata, address,
			reputation, total_launches, total_volume, is_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Owner, a.Name, a.Metadata, a.Address,
		a.Reputation, a.TotalLaunches, a.TotalVolume.String(), a.IsVerified, a.CreatedAt, a.UpdatedAt,
	)
	observability.RecordDBQuery("postgres", "agent_insert", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// Get retrieves an agent by id. Returns ErrNotFound if not exists.
func (s *AgentStore) Get(ctx context.Context, id string) (*domain.AgentRecord, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	a, err := scanAgent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// Update locks the row and applies fn in one transaction, so reputation and
// volume are always written together.
func (s *AgentStore) Update(ctx context.Context, id string, fn storage.AgentUpdateFunc) (*domain.AgentRecord, error) {
	start := time.Now()
	a, err := s.update(ctx, id, fn)
	observability.RecordDBQuery("postgres", "agent_update", time.Since(start).Seconds(), err)
	return a, err
}

func (s *AgentStore) update(ctx context.Context, id string, fn storage.AgentUpdateFunc) (*domain.AgentRecord, error) {
	var out *domain.AgentRecord
	err := s.pool.withTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1 FOR UPDATE`
		a, err := scanAgent(tx.QueryRow(ctx, query, id))
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock agent: %w", err)
		}

		if err := fn(a); err != nil {
			return err
		}
		if a.ID != id {
			return storage.ErrInvalidInput
		}

		_, err = tx.Exec(ctx, `
			UPDATE agents SET
				owner = $2, name = $3, metadata = $4,
				reputation = $5, total_launches = $6, total_volume = $7::numeric,
				is_verified = $8, updated_at = $9
			WHERE id = $1
		`,
			id, a.Owner, a.Name, a.Metadata,
			a.Reputation, a.TotalLaunches, a.TotalVolume.String(),
			a.IsVerified, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update agent: %w", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TopByReputation returns up to limit agents with reputation >= minReputation.
func (s *AgentStore) TopByReputation(ctx context.Context, minReputation int64, limit int) ([]*domain.AgentRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT ` + agentColumns + ` FROM agents
		WHERE reputation >= $1
		ORDER BY reputation DESC, id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, minReputation, limit)
	if err != nil {
		return nil, fmt.Errorf("query top agents: %w", err)
	}
	defer rows.Close()

	var result []*domain.AgentRecord
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent rows: %w", err)
	}
	return result, nil
}

func scanAgent(row rowScanner) (*domain.AgentRecord, error) {
	var a domain.AgentRecord
	var volume string

	err := row.Scan(
		&a.ID, &a.Owner, &a.Name, &a.Metadata, &a.Address,
		&a.Reputation, &a.TotalLaunches, &volume, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.TotalVolume, err = decimal.NewFromString(volume)
	if err != nil {
		return nil, fmt.Errorf("parse total_volume %q: %w", volume, err)
	}
	return &a, nil
}
