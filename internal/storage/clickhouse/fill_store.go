package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agent-pump/internal/domain"
	"agent-pump/internal/observability"
	"agent-pump/internal/storage"
)

// FillStore implements storage.FillStore using ClickHouse.
type FillStore struct {
	conn *Conn
}

// NewFillStore creates a new FillStore.
func NewFillStore(conn *Conn) *FillStore {
	return &FillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const fillColumns = `
	fill_id, mint, agent_id, side, amount, total_price,
	supply_before, supply_after, migrated, seq, timestamp_ms
`

// Insert adds a new fill. MergeTree does not enforce uniqueness, so the
// fill id is checked before insert. Returns ErrDuplicateKey if it exists.
func (s *FillStore) Insert(ctx context.Context, f *domain.Fill) error {
	start := time.Now()
	err := s.insert(ctx, f)
	observability.RecordDBQuery("clickhouse", "fill_insert", time.Since(start).Seconds(), err)
	return err
}

func (s *FillStore) insert(ctx context.Context, f *domain.Fill) error {
	exists, err := s.exists(ctx, f.Mint, f.FillID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO trade_fills (`+fillColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var migrated uint8
	if f.Migrated {
		migrated = 1
	}
	err = batch.Append(
		f.FillID, f.Mint, f.AgentID, string(f.Side), f.Amount, f.TotalPrice,
		f.SupplyBefore, f.SupplyAfter, migrated, uint64(f.Seq), uint64(f.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all fills for a mint, ordered by seq ASC.
func (s *FillStore) GetByMint(ctx context.Context, mint string) ([]*domain.Fill, error) {
	query := `SELECT ` + fillColumns + ` FROM trade_fills WHERE mint = ? ORDER BY seq ASC`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query fills by mint: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByTimeRange retrieves fills for a mint within [start, end] (inclusive).
func (s *FillStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Fill, error) {
	query := `
		SELECT ` + fillColumns + ` FROM trade_fills
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query fills by time range: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// VolumeBuckets aggregates fills into intervalSeconds buckets aligned to the
// Unix epoch. Empty buckets are omitted.
func (s *FillStore) VolumeBuckets(ctx context.Context, mint string, intervalSeconds int, start, end int64) ([]*domain.VolumeBucket, error) {
	if intervalSeconds <= 0 {
		return nil, storage.ErrInvalidInput
	}
	intervalMs := uint64(intervalSeconds) * 1000

	query := `
		SELECT
			intDiv(timestamp_ms, ?) * ? AS bucket,
			sum(total_price),
			sumIf(total_price, side = 'buy'),
			sumIf(total_price, side = 'sell'),
			count()
		FROM trade_fills
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		GROUP BY bucket
		ORDER BY bucket ASC
	`

	qStart := time.Now()
	rows, err := s.conn.Query(ctx, query, intervalMs, intervalMs, mint, uint64(start), uint64(end))
	observability.RecordDBQuery("clickhouse", "fill_volume", time.Since(qStart).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query volume buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*domain.VolumeBucket
	for rows.Next() {
		var (
			bucket             uint64
			total, buys, sells decimal.Decimal
			count              uint64
		)
		if err := rows.Scan(&bucket, &total, &buys, &sells, &count); err != nil {
			return nil, fmt.Errorf("scan volume bucket row: %w", err)
		}
		buckets = append(buckets, &domain.VolumeBucket{
			Mint:            mint,
			TimestampMs:     int64(bucket),
			IntervalSeconds: intervalSeconds,
			Volume:          total,
			BuyVolume:       buys,
			SellVolume:      sells,
			TradeCount:      int(count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume bucket rows: %w", err)
	}
	return buckets, nil
}

func (s *FillStore) exists(ctx context.Context, mint, fillID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM trade_fills WHERE mint = ? AND fill_id = ?`, mint, fillID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanFills(rows chRows) ([]*domain.Fill, error) {
	var fills []*domain.Fill

	for rows.Next() {
		var f domain.Fill
		var side string
		var migrated uint8
		var seq, timestampMs uint64

		err := rows.Scan(
			&f.FillID, &f.Mint, &f.AgentID, &side, &f.Amount, &f.TotalPrice,
			&f.SupplyBefore, &f.SupplyAfter, &migrated, &seq, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		f.Side = domain.Side(side)
		f.Migrated = migrated == 1
		f.Seq = int64(seq)
		f.Timestamp = int64(timestampMs)
		fills = append(fills, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
