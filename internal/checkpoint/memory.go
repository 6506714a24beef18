package checkpoint

import (
	"context"
	"sync"
)

// InMemoryStore is a threadsafe in-memory Store for tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	progress map[string]ProgressRecord
	paused   map[string]PausedRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		progress: make(map[string]ProgressRecord),
		paused:   make(map[string]PausedRecord),
	}
}

func (s *InMemoryStore) SaveProgress(ctx context.Context, campaignID string, rec ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[campaignID] = rec
	return nil
}

func (s *InMemoryStore) LoadProgress(ctx context.Context, campaignID string) (*ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.progress[campaignID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) ClearProgress(ctx context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, campaignID)
	return nil
}

func (s *InMemoryStore) SavePaused(ctx context.Context, campaignID string, rec PausedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[campaignID] = rec
	return nil
}

func (s *InMemoryStore) LoadPaused(ctx context.Context, campaignID string) (*PausedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.paused[campaignID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) ClearPaused(ctx context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, campaignID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
