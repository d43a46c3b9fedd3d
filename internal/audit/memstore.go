package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory audit Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []model.AuditEntry
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append inserts one entry.
func (s *MemoryStore) Append(_ context.Context, entry model.AuditEntry) (model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// History returns all entries for a traveler, oldest first.
func (s *MemoryStore) History(_ context.Context, travelerID int64) ([]model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.AuditEntry
	for _, e := range s.entries {
		if e.TravelerID == travelerID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Len returns the total number of entries. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
