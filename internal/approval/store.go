// Package approval implements the two-person approval workflow: gated
// changes from non-approvers wait as PENDING requests until a designated
// approver decides them.
package approval

import (
	"context"

	"github.com/nexusmfg/traveler/model"
)

// Store persists approval requests.
type Store interface {
	// Create inserts a new PENDING approval.
	Create(ctx context.Context, a model.Approval) (model.Approval, error)

	// Get retrieves an approval by ID. Returns NOT_FOUND if absent.
	Get(ctx context.Context, id int64) (model.Approval, error)

	// Update persists a decision. Returns NOT_FOUND if absent and
	// CONFLICT if the approval is no longer PENDING.
	Update(ctx context.Context, a model.Approval) error

	// ListPending returns all PENDING approvals, oldest first.
	ListPending(ctx context.Context) ([]model.Approval, error)

	// ListByRequester returns all approvals requested by the user, any
	// status, newest first.
	ListByRequester(ctx context.Context, userID int64) ([]model.Approval, error)

	// ListForTraveler returns all approvals tied to a traveler, newest
	// first.
	ListForTraveler(ctx context.Context, travelerID int64) ([]model.Approval, error)

	// DeleteForTraveler removes the traveler's approvals during a hard
	// delete.
	DeleteForTraveler(ctx context.Context, travelerID int64) error
}
