package memory

import (
	"context"
	"sort"
	"sync"

	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

// CurveStore is an in-memory implementation of storage.CurveStore.
type CurveStore struct {
	mu        sync.RWMutex
	data      map[string]*domain.CurveState // keyed by mint
	byAddress map[string]string             // curve address -> mint
}

// NewCurveStore creates a new in-memory curve store.
func NewCurveStore() *CurveStore {
	return &CurveStore{
		data:      make(map[string]*domain.CurveState),
		byAddress: make(map[string]string),
	}
}

// Insert adds a new curve. Returns ErrDuplicateKey if mint exists.
func (s *CurveStore) Insert(_ context.Context, c *domain.CurveState) error {
	if c == nil || c.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	if c.Address != "" {
		if _, exists := s.byAddress[c.Address]; exists {
			return storage.ErrDuplicateKey
		}
		s.byAddress[c.Address] = c.Mint
	}

	copy := *c
	s.data[c.Mint] = &copy
	return nil
}

// Get retrieves a curve by mint. Returns ErrNotFound if not exists.
func (s *CurveStore) Get(_ context.Context, mint string) (*domain.CurveState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

// GetByAddress retrieves a curve by its derived account address.
func (s *CurveStore) GetByAddress(ctx context.Context, address string) (*domain.CurveState, error) {
	s.mu.RLock()
	mint, ok := s.byAddress[address]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.Get(ctx, mint)
}

// Update applies fn to a copy of the curve and stores it if fn succeeds.
// The write lock is held for the whole call, serializing all updates.
func (s *CurveStore) Update(_ context.Context, mint string, fn storage.CurveUpdateFunc) (*domain.CurveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}

	next := *c
	if err := fn(&next); err != nil {
		return nil, err
	}
	if next.Mint != mint || next.Address != c.Address {
		return nil, storage.ErrInvalidInput
	}

	s.data[mint] = &next
	out := next
	return &out, nil
}

// GetByAgent retrieves all curves launched by an agent, ordered by created_at ASC.
func (s *CurveStore) GetByAgent(_ context.Context, agentID string) ([]*domain.CurveState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CurveState
	for _, c := range s.data {
		if c.AgentID == agentID {
			copy := *c
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

// TopBySupply returns up to limit curves ordered by current supply DESC.
func (s *CurveStore) TopBySupply(_ context.Context, limit int) ([]*domain.CurveState, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CurveState, 0, len(s.data))
	for _, c := range s.data {
		copy := *c
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CurrentSupply != result[j].CurrentSupply {
			return result[i].CurrentSupply > result[j].CurrentSupply
		}
		return result[i].Mint < result[j].Mint
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.CurveStore = (*CurveStore)(nil)
