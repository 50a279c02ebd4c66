package memory

import (
	"context"
	"sort"
	"sync"

	"agent-pump/internal/domain"
	"agent-pump/internal/storage"
)

// AgentStore is an in-memory implementation of storage.AgentStore.
type AgentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AgentRecord // keyed by agent id
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		data: make(map[string]*domain.AgentRecord),
	}
}

// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
func (s *AgentStore) Insert(_ context.Context, a *domain.AgentRecord) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[a.ID] = &copy
	return nil
}

// Get retrieves an agent by id. Returns ErrNotFound if not exists.
func (s *AgentStore) Get(_ context.Context, id string) (*domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

// Update applies fn to a copy of the record and stores it if fn succeeds.
func (s *AgentStore) Update(_ context.Context, id string, fn storage.AgentUpdateFunc) (*domain.AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	next := *a
	if err := fn(&next); err != nil {
		return nil, err
	}
	if next.ID != id {
		return nil, storage.ErrInvalidInput
	}

	s.data[id] = &next
	out := next
	return &out, nil
}

// TopByReputation returns up to limit agents with reputation >= minReputation,
// ordered by reputation DESC.
func (s *AgentStore) TopByReputation(_ context.Context, minReputation int64, limit int) ([]*domain.AgentRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AgentRecord
	for _, a := range s.data {
		if a.Reputation >= minReputation {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Reputation != result[j].Reputation {
			return result[i].Reputation > result[j].Reputation
		}
		return result[i].ID < result[j].ID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.AgentStore = (*AgentStore)(nil)
