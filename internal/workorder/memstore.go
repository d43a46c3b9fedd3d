package workorder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory work order Store for testing and
// single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[string]model.WorkOrder // keyed by work order number
}

// NewMemoryStore creates a new in-memory work order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, orders: make(map[string]model.WorkOrder)}
}

// Put seeds the store with a work order. Used for loading reference data
// and in tests.
func (s *MemoryStore) Put(wo model.WorkOrder) model.WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wo.ID == 0 {
		wo.ID = s.nextID
		s.nextID++
	}
	s.orders[wo.WorkOrderNumber] = wo
	return wo
}

// GetByNumber retrieves an active work order.
func (s *MemoryStore) GetByNumber(_ context.Context, number string) (model.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wo, ok := s.orders[number]
	if !ok || !wo.IsActive {
		return model.WorkOrder{}, model.NewNotFoundError(fmt.Sprintf("work order %q not found", number))
	}
	return wo, nil
}

// List returns all active work orders ordered by work order number.
func (s *MemoryStore) List(_ context.Context) ([]model.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.WorkOrder
	for _, wo := range s.orders {
		if wo.IsActive {
			result = append(result, wo)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WorkOrderNumber < result[j].WorkOrderNumber
	})
	return result, nil
}
