package model

import "time"

// AuditAction is the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditCreated           AuditAction = "CREATED"
	AuditUpdated           AuditAction = "UPDATED"
	AuditStatusChanged     AuditAction = "STATUS_CHANGED"
	AuditCompleted         AuditAction = "COMPLETED"
	AuditStepCompleted     AuditAction = "STEP_COMPLETED"
	AuditDeleted           AuditAction = "DELETED"
	AuditApprovalRequested AuditAction = "APPROVAL_REQUESTED"
	AuditApproved          AuditAction = "APPROVED"
	AuditRejected          AuditAction = "REJECTED"
)

// AuditEntry is one immutable record in a traveler's history. Entries are
// only ever appended; nothing updates or deletes them. Entries survive the
// hard delete of their traveler for compliance review.
type AuditEntry struct {
	ID           int64         `json:"id"`
	TravelerID   int64         `json:"traveler_id"`
	UserID       int64         `json:"user_id"`
	Action       AuditAction   `json:"action"`
	FieldChanged string        `json:"field_changed,omitempty"`
	OldValue     string        `json:"old_value,omitempty"`
	NewValue     string        `json:"new_value,omitempty"`
	Origin       RequestOrigin `json:"origin"`
	CreatedAt    time.Time     `json:"created_at"`
}
