package storage

import (
	"context"
	"sync"

	"BProject/model"
)

// Store is the durable persistence contract a board session uses to survive
// reloads: the current document plus the bounded activity ledger, keyed by
// document ID. Backing medium is the implementation's business.
type Store interface {
	LoadBoard(ctx context.Context, docID string) (*model.DocumentState, bool, error)
	SaveBoard(ctx context.Context, docID string, state *model.DocumentState) error
	LoadActivities(ctx context.Context, docID string) ([]*model.ActivityEntry, error)
	SaveActivities(ctx context.Context, docID string, entries []*model.ActivityEntry) error
}

// MemStore is the in-memory Store used by tests and standalone sessions.
type MemStore struct {
	mu         sync.RWMutex
	boards     map[string]*model.DocumentState
	activities map[string][]*model.ActivityEntry
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		boards:     make(map[string]*model.DocumentState),
		activities: make(map[string][]*model.ActivityEntry),
	}
}

func (s *MemStore) LoadBoard(_ context.Context, docID string) (*model.DocumentState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.boards[docID]
	if !ok {
		return nil, false, nil
	}
	return st.Clone(), true, nil
}

func (s *MemStore) SaveBoard(_ context.Context, docID string, state *model.DocumentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[docID] = state.Clone()
	return nil
}

func (s *MemStore) LoadActivities(_ context.Context, docID string) ([]*model.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.activities[docID]
	out := make([]*model.ActivityEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemStore) SaveActivities(_ context.Context, docID string, entries []*model.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*model.ActivityEntry, len(entries))
	copy(cp, entries)
	s.activities[docID] = cp
	return nil
}
