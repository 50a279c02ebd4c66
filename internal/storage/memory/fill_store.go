package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Fill   // keyed by fill_id
	byMint map[string][]*domain.Fill // insertion order per mint
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data:   make(map[string]*domain.Fill),
		byMint: make(map[string][]*domain.Fill),
	}
}

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *FillStore) Insert(_ context.Context, f *domain.Fill) error {
	if f == nil || f.FillID == "" || f.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *f
	s.data[f.FillID] = &copy
	s.byMint[f.Mint] = append(s.byMint[f.Mint], &copy)
	return nil
}

// GetByMint retrieves all fills for a mint, ordered by seq ASC.
func (s *FillStore) GetByMint(_ context.Context, mint string) ([]*domain.Fill, error) {
	return s.collect(mint, func(*domain.Fill) bool { return true }), nil
}

// GetByTimeRange retrieves fills for a mint within [start, end] (inclusive).
func (s *FillStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Fill, error) {
	return s.collect(mint, func(f *domain.Fill) bool {
		return f.Timestamp >= start && f.Timestamp <= end
	}), nil
}

// VolumeBuckets aggregates fills within [start, end] into intervalSeconds buckets.
func (s *FillStore) VolumeBuckets(_ context.Context, mint string, intervalSeconds int, start, end int64) ([]*domain.VolumeBucket, error) {
	if intervalSeconds <= 0 {
		return nil, storage.ErrInvalidInput
	}
	intervalMs := int64(intervalSeconds) * 1000

	fills := s.collect(mint, func(f *domain.Fill) bool {
		return f.Timestamp >= start && f.Timestamp <= end
	})

	buckets := make(map[int64]*domain.VolumeBucket)
	for _, f := range fills {
		ts := f.Timestamp - f.Timestamp%intervalMs
		b, ok := buckets[ts]
		if !ok {
			b = &domain.VolumeBucket{
				Mint:            mint,
				TimestampMs:     ts,
				IntervalSeconds: intervalSeconds,
				Volume:          decimal.Zero,
				BuyVolume:       decimal.Zero,
				SellVolume:      decimal.Zero,
			}
			buckets[ts] = b
		}
		b.Volume = b.Volume.Add(f.TotalPrice)
		if f.Side == domain.SideBuy {
			b.BuyVolume = b.BuyVolume.Add(f.TotalPrice)
		} else {
			b.SellVolume = b.SellVolume.Add(f.TotalPrice)
		}
		b.TradeCount++
	}

	result := make([]*domain.VolumeBucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

func (s *FillStore) collect(mint string, keep func(*domain.Fill) bool) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Fill
	for _, f := range s.byMint[mint] {
		if keep(f) {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result
}

var _ storage.FillStore = (*FillStore)(nil)
