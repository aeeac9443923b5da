package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/complyra/ragsafe/internal/models"
)

// MemoryStore is an in-process audit store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) MarkReviewed(_ context.Context, id string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].HumanReviewed = true
			s.entries[i].Approved = approved
			return nil
		}
	}
	return fmt.Errorf("audit entry %s not found", id)
}
