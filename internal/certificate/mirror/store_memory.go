package mirror

import (
	"context"
	"sync"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/requestcontext"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[models.CertificateIdentity]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[models.CertificateIdentity]Entry)}
}

func (s *InMemoryStore) Save(ctx context.Context, rec models.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rec.Identity]; ok {
		return nil
	}
	s.entries[rec.Identity] = newEntry(rec, requestcontext.Now(ctx))
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id models.CertificateIdentity) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
