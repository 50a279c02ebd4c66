package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agent-pump/internal/curve"
	"agent-pump/internal/domain"
	"agent-pump/internal/observability"
	"agent-pump/internal/storage"
)

// CurveStore implements storage.CurveStore using PostgreSQL.
type CurveStore struct {
	pool *Pool
}

// NewCurveStore creates a new CurveStore.
func NewCurveStore(pool *Pool) *CurveStore {
	return &CurveStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CurveStore = (*CurveStore)(nil)

const curveColumns = `
	mint, address, agent_id, name, symbol,
	description, image, twitter, discord,
	curve_type, base_price_lamports, slope_milli, max_supply, migration_threshold,
	current_supply, is_migrated, trade_seq, created_at, updated_at
`

// Insert adds a new curve. Returns ErrDuplicateKey if mint or address exists.
func (s *CurveStore) Insert(ctx context.Context, c *domain.CurveState) error {
	start := time.Now()
	query := `
		INSERT INTO curves (` + curveColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		c.Mint, c.Address, c.AgentID, c.Name, c.Symbol,
		c.Metadata.Description, c.Metadata.Image, c.Metadata.Twitter, c.Metadata.Discord,
		string(c.Params.Type), c.Params.BasePriceLamports, c.Params.SlopeMilli, c.Params.MaxSupply, c.Params.MigrationThreshold,
		c.CurrentSupply, c.IsMigrated, c.TradeSeq, c.CreatedAt, c.UpdatedAt,
	)
	observability.RecordDBQuery("postgres", "curve_insert", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert curve: %w", err)
	}
	return nil
}

// Get retrieves a curve by mint. Returns ErrNotFound if not exists.
func (s *CurveStore) Get(ctx context.Context, mint string) (*domain.CurveState, error) {
	query := `SELECT ` + curveColumns + ` FROM curves WHERE mint = $1`

	c, err := scanCurve(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get curve: %w", err)
	}
	return c, nil
}

// GetByAddress retrieves a curve by its account address. Returns ErrNotFound if not exists.
func (s *CurveStore) GetByAddress(ctx context.Context, address string) (*domain.CurveState, error) {
	query := `SELECT ` + curveColumns + ` FROM curves WHERE address = $1`

	c, err := scanCurve(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get curve by address: %w", err)
	}
	return c, nil
}

// Update locks the row, applies fn and writes the mutable columns back in one
// transaction. Concurrent updates of the same mint wait on the row lock.
func (s *CurveStore) Update(ctx context.Context, mint string, fn storage.CurveUpdateFunc) (*domain.CurveState, error) {
	start := time.Now()
	c, err := s.update(ctx, mint, fn)
	observability.RecordDBQuery("postgres", "curve_update", time.Since(start).Seconds(), err)
	return c, err
}

func (s *CurveStore) update(ctx context.Context, mint string, fn storage.CurveUpdateFunc) (*domain.CurveState, error) {
	var out *domain.CurveState
	err := s.pool.withTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + curveColumns + ` FROM curves WHERE mint = $1 FOR UPDATE`
		c, err := scanCurve(tx.QueryRow(ctx, query, mint))
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock curve: %w", err)
		}

		before := *c
		if err := fn(c); err != nil {
			return err
		}
		if c.Mint != before.Mint || c.Address != before.Address || c.Params != before.Params {
			return storage.ErrInvalidInput
		}

		_, err = tx.Exec(ctx, `
			UPDATE curves SET
				current_supply = $2, is_migrated = $3, trade_seq = $4, updated_at = $5,
				name = $6, symbol = $7,
				description = $8, image = $9, twitter = $10, discord = $11
			WHERE mint = $1
		`,
			mint, c.CurrentSupply, c.IsMigrated, c.TradeSeq, c.UpdatedAt,
			c.Name, c.Symbol,
			c.Metadata.Description, c.Metadata.Image, c.Metadata.Twitter, c.Metadata.Discord,
		)
		if err != nil {
			return fmt.Errorf("update curve: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByAgent retrieves all curves launched by an agent, ordered by created_at ASC.
func (s *CurveStore) GetByAgent(ctx context.Context, agentID string) ([]*domain.CurveState, error) {
	query := `SELECT ` + curveColumns + ` FROM curves WHERE agent_id = $1 ORDER BY created_at ASC, mint ASC`

	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("query curves by agent: %w", err)
	}
	defer rows.Close()

	return scanCurves(rows)
}

// TopBySupply returns up to limit curves ordered by current supply DESC.
func (s *CurveStore) TopBySupply(ctx context.Context, limit int) ([]*domain.CurveState, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT ` + curveColumns + ` FROM curves ORDER BY current_supply DESC, mint ASC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top curves: %w", err)
	}
	defer rows.Close()

	return scanCurves(rows)
}

// rowScanner is implemented by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCurve(row rowScanner) (*domain.CurveState, error) {
	var c domain.CurveState
	var curveType string

	err := row.Scan(
		&c.Mint, &c.Address, &c.AgentID, &c.Name, &c.Symbol,
		&c.Metadata.Description, &c.Metadata.Image, &c.Metadata.Twitter, &c.Metadata.Discord,
		&curveType, &c.Params.BasePriceLamports, &c.Params.SlopeMilli, &c.Params.MaxSupply, &c.Params.MigrationThreshold,
		&c.CurrentSupply, &c.IsMigrated, &c.TradeSeq, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Params.Type = curve.Type(curveType)
	return &c, nil
}

type pgRows interface {
	rowScanner
	Next() bool
	Err() error
}

func scanCurves(rows pgRows) ([]*domain.CurveState, error) {
	var result []*domain.CurveState
	for rows.Next() {
		c, err := scanCurve(rows)
		if err != nil {
			return nil, fmt.Errorf("scan curve row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curve rows: %w", err)
	}
	return result, nil
}
