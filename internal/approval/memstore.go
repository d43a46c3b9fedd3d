package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory approval Store for testing and
// single-instance deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	approvals map[int64]model.Approval
}

// NewMemoryStore creates a new in-memory approval store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, approvals: make(map[int64]model.Approval)}
}

// Create inserts a new PENDING approval.
func (s *MemoryStore) Create(_ context.Context, a model.Approval) (model.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID
	s.nextID++
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.approvals[a.ID] = a
	return a, nil
}

// Get retrieves an approval by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (model.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approvals[id]
	if !ok {
		return model.Approval{}, model.NewNotFoundError(fmt.Sprintf("approval %d not found", id))
	}
	return a, nil
}

// Update persists a decision. Only a PENDING approval can be decided, so
// two racing deciders cannot both win.
func (s *MemoryStore) Update(_ context.Context, a model.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.approvals[a.ID]
	if !ok {
		return model.NewNotFoundError(fmt.Sprintf("approval %d not found", a.ID))
	}
	if existing.Decided() {
		return model.NewConflictError("approval has already been decided")
	}
	s.approvals[a.ID] = a
	return nil
}

func (s *MemoryStore) list(filter func(model.Approval) bool, newestFirst bool) []model.Approval {
	var result []model.Approval
	for _, a := range s.approvals {
		if filter(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if newestFirst {
			return result[i].ID > result[j].ID
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ListPending returns all PENDING approvals, oldest first.
func (s *MemoryStore) ListPending(_ context.Context) ([]model.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a model.Approval) bool { return a.Status == model.ApprovalPending }, false), nil
}

// ListByRequester returns the user's approvals, newest first.
func (s *MemoryStore) ListByRequester(_ context.Context, userID int64) ([]model.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a model.Approval) bool { return a.RequestedBy == userID }, true), nil
}

// ListForTraveler returns the traveler's approvals, newest first.
func (s *MemoryStore) ListForTraveler(_ context.Context, travelerID int64) ([]model.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(a model.Approval) bool { return a.TravelerID == travelerID }, true), nil
}

// DeleteForTraveler removes the traveler's approvals.
func (s *MemoryStore) DeleteForTraveler(_ context.Context, travelerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.approvals {
		if a.TravelerID == travelerID {
			delete(s.approvals, id)
		}
	}
	return nil
}
