package drafts

import (
	"context"
	"sync"

	"dcr-backend/internal/models"
)

// MemoryStore is the in-process fallback used when Redis is unavailable, and
// the store of choice in tests. Snapshots are deep-copied on the way in and
// out so callers never share row slices with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]*models.ReportData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]*models.ReportData)}
}

func (s *MemoryStore) Save(ctx context.Context, project, dateKey string, data *models.ReportData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[draftKey(project, dateKey)] = data.Clone()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, project, dateKey string) (*models.ReportData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.drafts[draftKey(project, dateKey)]
	if !ok {
		return nil, false
	}
	return data.Clone(), true
}

func (s *MemoryStore) Remove(ctx context.Context, project, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, draftKey(project, dateKey))
	return nil
}

// Len reports the number of stored drafts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}
