package traveler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// MemoryStore is an in-memory traveler Store for testing and
// single-instance deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	travelers   map[int64]model.Traveler
	steps       map[int64]model.ProcessStep // keyed by step ID
	subSteps    map[int64]model.SubStep
	manualSteps map[int64]model.ManualStep
}

// NewMemoryStore creates a new in-memory traveler store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		travelers:   make(map[int64]model.Traveler),
		steps:       make(map[int64]model.ProcessStep),
		subSteps:    make(map[int64]model.SubStep),
		manualSteps: make(map[int64]model.ManualStep),
	}
}

func (s *MemoryStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Create inserts the traveler with all of its steps.
func (s *MemoryStore) Create(_ context.Context, t model.Traveler, steps []model.ProcessStep, manual []model.ManualStep) (model.Traveler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.travelers {
		if existing.TravelerNumber == t.TravelerNumber {
			return model.Traveler{}, model.NewConflictError(
				fmt.Sprintf("traveler number %q already exists", t.TravelerNumber),
			)
		}
	}

	now := time.Now().UTC()
	t.ID = s.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.travelers[t.ID] = t

	for _, step := range steps {
		step.TravelerID = t.ID
		step.ID = s.id()
		subs := step.SubSteps
		step.SubSteps = nil
		s.steps[step.ID] = step
		for _, sub := range subs {
			sub.ProcessStepID = step.ID
			sub.ID = s.id()
			s.subSteps[sub.ID] = sub
		}
	}
	for _, ms := range manual {
		ms.TravelerID = t.ID
		ms.ID = s.id()
		if ms.CreatedAt.IsZero() {
			ms.CreatedAt = now
		}
		s.manualSteps[ms.ID] = ms
	}
	return t, nil
}

// Get retrieves a traveler by ID.
func (s *MemoryStore) Get(_ context.Context, id int64) (model.Traveler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.travelers[id]
	if !ok {
		return model.Traveler{}, model.NewNotFoundError(fmt.Sprintf("traveler %d not found", id))
	}
	return t, nil
}

// GetByNumber retrieves a traveler by its traveler number.
func (s *MemoryStore) GetByNumber(_ context.Context, number string) (model.Traveler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.travelers {
		if t.TravelerNumber == number {
			return t, nil
		}
	}
	return model.Traveler{}, model.NewNotFoundError(fmt.Sprintf("traveler %q not found", number))
}

func matches(t model.Traveler, f ListFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.WorkCenter != "" && t.WorkCenter != f.WorkCenter {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.TravelerNumber), needle) &&
			!strings.Contains(strings.ToLower(t.JobNumber), needle) &&
			!strings.Contains(strings.ToLower(t.PartNumber), needle) {
			return false
		}
	}
	return true
}

// List returns travelers matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]model.Traveler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Traveler
	for _, t := range s.travelers {
		if matches(t, f) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil, nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

// Update persists the traveler's mutable fields.
func (s *MemoryStore) Update(_ context.Context, t model.Traveler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.travelers[t.ID]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("traveler %d not found", t.ID))
	}
	t.UpdatedAt = time.Now().UTC()
	s.travelers[t.ID] = t
	return nil
}

// Delete removes the traveler and its steps.
func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.travelers[id]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("traveler %d not found", id))
	}
	delete(s.travelers, id)
	for stepID, step := range s.steps {
		if step.TravelerID != id {
			continue
		}
		for subID, sub := range s.subSteps {
			if sub.ProcessStepID == stepID {
				delete(s.subSteps, subID)
			}
		}
		delete(s.steps, stepID)
	}
	for msID, ms := range s.manualSteps {
		if ms.TravelerID == id {
			delete(s.manualSteps, msID)
		}
	}
	return nil
}

// subStepOrdinal extracts the numeric suffix of a "1.2"-style step number
// so "1.10" sorts after "1.9".
func subStepOrdinal(n string) int {
	if i := strings.LastIndex(n, "."); i >= 0 {
		if v, err := strconv.Atoi(n[i+1:]); err == nil {
			return v
		}
	}
	return 0
}

func (s *MemoryStore) subStepsFor(stepID int64) []model.SubStep {
	var subs []model.SubStep
	for _, sub := range s.subSteps {
		if sub.ProcessStepID == stepID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		a, b := subStepOrdinal(subs[i].StepNumber), subStepOrdinal(subs[j].StepNumber)
		if a != b {
			return a < b
		}
		return subs[i].StepNumber < subs[j].StepNumber
	})
	return subs
}

// Steps returns the traveler's process steps with sub-steps.
func (s *MemoryStore) Steps(_ context.Context, travelerID int64) ([]model.ProcessStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ProcessStep
	for _, step := range s.steps {
		if step.TravelerID == travelerID {
			step.SubSteps = s.subStepsFor(step.ID)
			result = append(result, step)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StepNumber < result[j].StepNumber })
	return result, nil
}

// GetStep retrieves one process step with its sub-steps.
func (s *MemoryStore) GetStep(_ context.Context, stepID int64) (model.ProcessStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.steps[stepID]
	if !ok {
		return model.ProcessStep{}, model.NewNotFoundError(fmt.Sprintf("process step %d not found", stepID))
	}
	step.SubSteps = s.subStepsFor(stepID)
	return step, nil
}

// UpdateStep persists a step's completion state.
func (s *MemoryStore) UpdateStep(_ context.Context, step model.ProcessStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[step.ID]; !ok {
		return model.NewNotFoundError(fmt.Sprintf("process step %d not found", step.ID))
	}
	step.SubSteps = nil
	s.steps[step.ID] = step
	return nil
}

// ManualSteps returns the traveler's manual steps in insertion order.
func (s *MemoryStore) ManualSteps(_ context.Context, travelerID int64) ([]model.ManualStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ManualStep
	for _, ms := range s.manualSteps {
		if ms.TravelerID == travelerID {
			result = append(result, ms)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AddManualStep appends an ad-hoc instruction to the traveler.
func (s *MemoryStore) AddManualStep(_ context.Context, ms model.ManualStep) (model.ManualStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.travelers[ms.TravelerID]; !ok {
		return model.ManualStep{}, model.NewNotFoundError(fmt.Sprintf("traveler %d not found", ms.TravelerID))
	}
	ms.ID = s.id()
	if ms.CreatedAt.IsZero() {
		ms.CreatedAt = time.Now().UTC()
	}
	s.manualSteps[ms.ID] = ms
	return ms, nil
}

// MemorySequencer is a mutex-guarded per-key counter.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemorySequencer creates a new in-memory sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int64)}
}

// Next returns the next sequence value for the key, starting at 1.
func (s *MemorySequencer) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
