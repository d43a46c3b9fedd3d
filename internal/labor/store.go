// Package labor tracks time-logged work sessions against travelers and
// their steps. The central invariant: at most one active entry (no end
// time, not completed) per employee across the whole system.
package labor

import (
	"context"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// Store persists labor entries.
type Store interface {
	// Create inserts a new entry. Returns CONFLICT if the employee
	// already has an active entry anywhere in the system. The check and
	// the insert are atomic.
	Create(ctx context.Context, e model.LaborEntry) (model.LaborEntry, error)

	// Get retrieves an entry by ID. Returns NOT_FOUND if absent.
	Get(ctx context.Context, id int64) (model.LaborEntry, error)

	// Update persists end time, hours, description, and completion.
	Update(ctx context.Context, e model.LaborEntry) error

	// ActiveFor returns the employee's single active entry, or false when
	// there is none.
	ActiveFor(ctx context.Context, employeeID int64) (model.LaborEntry, bool, error)

	// ListForTraveler returns a traveler's entries, newest first.
	ListForTraveler(ctx context.Context, travelerID int64) ([]model.LaborEntry, error)

	// ListForEmployee returns an employee's entries, newest first.
	ListForEmployee(ctx context.Context, employeeID int64) ([]model.LaborEntry, error)

	// ListSince returns entries created at or after the cutoff. A zero
	// employeeID means all employees.
	ListSince(ctx context.Context, cutoff time.Time, employeeID int64) ([]model.LaborEntry, error)

	// DeleteForTraveler removes the traveler's entries during a hard
	// delete.
	DeleteForTraveler(ctx context.Context, travelerID int64) error
}
