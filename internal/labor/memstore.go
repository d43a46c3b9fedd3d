package labor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory labor Store for testing and single-instance
// deployments. One mutex covers the active-entry check and the insert, so
// the invariant holds under concurrent Create calls.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]model.LaborEntry
}

// NewMemoryStore creates a new in-memory labor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, entries: make(map[int64]model.LaborEntry)}
}

// Create inserts a new entry, rejecting a second active entry per employee.
func (s *MemoryStore) Create(_ context.Context, e model.LaborEntry) (model.LaborEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Active() {
		for _, existing := range s.entries {
			if existing.EmployeeID == e.EmployeeID && existing.Active() {
				return model.LaborEntry{}, model.NewConflictError(
					fmt.Sprintf("employee %d already has an active labor entry", e.EmployeeID),
				)
			}
		}
	}

	e.ID = s.nextID
	s.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.ID] = e
	return e, nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (model.LaborEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return model.LaborEntry{}, model.NewNotFoundError(fmt.Sprintf("labor entry %d not found", id))
	}
	return e, nil
}

// Update persists changes to an existing entry.
func (s *MemoryStore) Update(_ context.Context, e model.LaborEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("labor entry %d not found", e.ID))
	}
	s.entries[e.ID] = e
	return nil
}

// ActiveFor returns the employee's single active entry.
func (s *MemoryStore) ActiveFor(_ context.Context, employeeID int64) (model.LaborEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.EmployeeID == employeeID && e.Active() {
			return e, true, nil
		}
	}
	return model.LaborEntry{}, false, nil
}

func (s *MemoryStore) list(filter func(model.LaborEntry) bool) []model.LaborEntry {
	var result []model.LaborEntry
	for _, e := range s.entries {
		if filter(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

// ListForTraveler returns a traveler's entries, newest first.
func (s *MemoryStore) ListForTraveler(_ context.Context, travelerID int64) ([]model.LaborEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(e model.LaborEntry) bool { return e.TravelerID == travelerID }), nil
}

// ListForEmployee returns an employee's entries, newest first.
func (s *MemoryStore) ListForEmployee(_ context.Context, employeeID int64) ([]model.LaborEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(e model.LaborEntry) bool { return e.EmployeeID == employeeID }), nil
}

// ListSince returns entries created at or after the cutoff.
func (s *MemoryStore) ListSince(_ context.Context, cutoff time.Time, employeeID int64) ([]model.LaborEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(e model.LaborEntry) bool {
		if e.CreatedAt.Before(cutoff) {
			return false
		}
		return employeeID == 0 || e.EmployeeID == employeeID
	}), nil
}

// DeleteForTraveler removes the traveler's entries.
func (s *MemoryStore) DeleteForTraveler(_ context.Context, travelerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.TravelerID == travelerID {
			delete(s.entries, id)
		}
	}
	return nil
}
