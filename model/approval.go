package model

import "time"

// ApprovalStatus is the decision state of an approval request.
// PENDING is the only non-terminal state.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// RequestType classifies what a pending approval would do if approved.
type RequestType string

const (
	RequestEdit     RequestType = "EDIT"
	RequestComplete RequestType = "COMPLETE"
	RequestCancel   RequestType = "CANCEL"
)

// ValidRequestType reports whether t is one of the defined request types.
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestEdit, RequestComplete, RequestCancel:
		return true
	}
	return false
}

// Approval is a gated, pending decision tied to one requested change on one
// traveler. Once decided, its status never changes again.
type Approval struct {
	ID              int64          `json:"id"`
	TravelerID      int64          `json:"traveler_id"`
	RequestedBy     int64          `json:"requested_by"`
	RequestType     RequestType    `json:"request_type"`
	RequestDetails  string         `json:"request_details"` // serialized change set
	Status          ApprovalStatus `json:"status"`
	DecidedBy       *int64         `json:"decided_by,omitempty"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Decided reports whether the approval has reached a terminal state.
func (a *Approval) Decided() bool {
	return a.Status != ApprovalPending
}
