// Package notify delivers best-effort notifications for traveler events.
// Delivery is fire-and-forget: failures are logged and never surface to the
// operation that triggered them.
package notify

import (
	"context"

	"github.com/nexusmfg/traveler/model"
)

// Event is one notification to deliver.
type Event struct {
	// Kind is one of "traveler_created", "approval_requested", "decision".
	Kind        string
	Traveler    model.Traveler
	Approval    *model.Approval
	Actor       model.Actor
	RequestType model.RequestType
	// Recipients are email addresses; empty means "all designated
	// approvers" resolved by the sender.
	Recipients []string
}

const (
	KindTravelerCreated   = "traveler_created"
	KindApprovalRequested = "approval_requested"
	KindDecision          = "decision"
)

// Sender performs the actual delivery of one event.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Notifier is the interface the lifecycle and approval services talk to.
// Implementations must not block the caller on delivery.
type Notifier interface {
	// NotifyTravelerCreated announces a new traveler created by a
	// non-approver.
	NotifyTravelerCreated(ctx context.Context, t model.Traveler, creator model.Actor)

	// NotifyApprovalRequested tells designated approvers a change is
	// waiting on them.
	NotifyApprovalRequested(ctx context.Context, t model.Traveler, requester model.Actor, reqType model.RequestType)

	// NotifyDecision tells the requester their request was decided.
	NotifyDecision(ctx context.Context, t model.Traveler, a model.Approval, approver model.Actor)
}
