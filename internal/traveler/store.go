// Package traveler implements the traveler lifecycle: creation with process
// steps, typed partial updates behind the approval gate, status transitions,
// step completion, and hard deletes.
package traveler

import (
	"context"

	"github.com/nexusmfg/traveler/model"
)

// ListFilter narrows a traveler listing. Zero values match everything.
type ListFilter struct {
	Status     model.TravelerStatus
	Type       model.TravelerType
	WorkCenter string
	// Search matches substrings of traveler number, job number, and part
	// number, case-insensitively.
	Search string
	Limit  int
	Offset int
}

// Store persists travelers together with their process, sub, and manual
// steps. Create is atomic: a failure partway through leaves nothing behind.
type Store interface {
	// Create inserts the traveler and all of its steps in one unit.
	// Returns CONFLICT if the traveler number is already taken.
	Create(ctx context.Context, t model.Traveler, steps []model.ProcessStep, manual []model.ManualStep) (model.Traveler, error)

	// Get retrieves a traveler by ID. Returns NOT_FOUND if absent.
	Get(ctx context.Context, id int64) (model.Traveler, error)

	// GetByNumber retrieves a traveler by its traveler number.
	GetByNumber(ctx context.Context, number string) (model.Traveler, error)

	// List returns travelers matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]model.Traveler, error)

	// Update persists the traveler's mutable fields and bumps updated_at.
	Update(ctx context.Context, t model.Traveler) error

	// Delete removes the traveler and its steps. Returns NOT_FOUND if the
	// traveler does not exist. Audit entries are kept elsewhere and
	// survive.
	Delete(ctx context.Context, id int64) error

	// Steps returns the traveler's process steps with sub-steps, ordered
	// by step number.
	Steps(ctx context.Context, travelerID int64) ([]model.ProcessStep, error)

	// GetStep retrieves one process step with its sub-steps.
	GetStep(ctx context.Context, stepID int64) (model.ProcessStep, error)

	// UpdateStep persists a step's completion state.
	UpdateStep(ctx context.Context, s model.ProcessStep) error

	// ManualSteps returns the traveler's manual steps in insertion order.
	ManualSteps(ctx context.Context, travelerID int64) ([]model.ManualStep, error)

	// AddManualStep appends an ad-hoc instruction to the traveler.
	AddManualStep(ctx context.Context, ms model.ManualStep) (model.ManualStep, error)
}

// Sequencer hands out monotonically increasing sequence numbers per key.
// Implementations must be safe under concurrent callers; two calls never
// return the same value for the same key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}
