// Package user manages system accounts and the admin operations on them.
package user

import (
	"context"

	"github.com/nexusmfg/traveler/model"
)

// Store persists user accounts.
type Store interface {
	// Create inserts a new user. Returns CONFLICT if the username or email
	// is already taken.
	Create(ctx context.Context, u model.User) (model.User, error)

	// Get retrieves a user by ID. Returns NOT_FOUND if absent.
	Get(ctx context.Context, id int64) (model.User, error)

	// GetByUsername retrieves a user by username. Returns NOT_FOUND if
	// absent.
	GetByUsername(ctx context.Context, username string) (model.User, error)

	// List returns all users ordered by ID.
	List(ctx context.Context) ([]model.User, error)

	// Update persists role, active-flag, approver-flag, and password
	// changes. Returns NOT_FOUND if the user does not exist.
	Update(ctx context.Context, u model.User) error
}
