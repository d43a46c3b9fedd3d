package model

import (
	"fmt"
	"strconv"
	"time"
)

// TravelerType classifies the kind of manufacturing job a traveler tracks.
type TravelerType string

const (
	TypePCB        TravelerType = "PCB"
	TypeAssembly   TravelerType = "ASSY"
	TypeCable      TravelerType = "CABLE"
	TypeCableAssy  TravelerType = "CABLE_ASSY"
	TypeMechanical TravelerType = "MECHANICAL"
	TypeTest       TravelerType = "TEST"
)

// ValidTravelerType reports whether t is one of the defined traveler types.
func ValidTravelerType(t TravelerType) bool {
	switch t {
	case TypePCB, TypeAssembly, TypeCable, TypeCableAssy, TypeMechanical, TypeTest:
		return true
	}
	return false
}

// Priority orders travelers on the shop floor.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidPriority reports whether p is one of the defined priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TravelerStatus is a traveler's position in its lifecycle.
type TravelerStatus string

const (
	StatusCreated    TravelerStatus = "CREATED"
	StatusInProgress TravelerStatus = "IN_PROGRESS"
	StatusOnHold     TravelerStatus = "ON_HOLD"
	StatusCompleted  TravelerStatus = "COMPLETED"
	StatusCancelled  TravelerStatus = "CANCELLED"
)

// statusEdges defines the allowed lifecycle transitions. COMPLETED and
// CANCELLED are terminal. A traveler on hold can resume, finish, or be
// cancelled.
var statusEdges = map[TravelerStatus][]TravelerStatus{
	StatusCreated:    {StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusInProgress, StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold:     {StatusInProgress, StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a traveler may move from one status to
// another.
func CanTransition(from, to TravelerStatus) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Traveler is the manufacturing job-tracking document that accompanies a job
// through the factory floor.
type Traveler struct {
	ID              int64          `json:"id"`
	TravelerNumber  string         `json:"traveler_number"`
	JobNumber       string         `json:"job_number"`
	WorkOrderNumber string         `json:"work_order_number,omitempty"`
	Type            TravelerType   `json:"traveler_type"`
	PartNumber      string         `json:"part_number,omitempty"`
	PartDescription string         `json:"part_description,omitempty"`
	Revision        string         `json:"revision,omitempty"`
	Quantity        int            `json:"quantity"`
	CustomerCode    string         `json:"customer_code,omitempty"`
	CustomerName    string         `json:"customer_name,omitempty"`
	Priority        Priority       `json:"priority"`
	WorkCenter      string         `json:"work_center"`
	Status          TravelerStatus `json:"status"`
	Notes           string         `json:"notes,omitempty"`
	CreatedBy       int64          `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// ProcessStep is one ordered unit of work within a traveler's process
// template. Step numbers are unique per traveler but not required to be
// contiguous.
type ProcessStep struct {
	ID             int64      `json:"id"`
	TravelerID     int64      `json:"traveler_id"`
	StepNumber     int        `json:"step_number"`
	Operation      string     `json:"operation"`
	WorkCenterCode string     `json:"work_center_code,omitempty"`
	Instructions   string     `json:"instructions,omitempty"`
	EstimatedTime  *int       `json:"estimated_time,omitempty"` // minutes
	IsRequired     bool       `json:"is_required"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedBy    *int64     `json:"completed_by,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	SubSteps       []SubStep  `json:"sub_steps,omitempty"`
}

// SubStep is a finer checklist item within a process step. Step numbers use
// the "1.1", "1.2" convention, ordered by numeric suffix within the parent.
type SubStep struct {
	ID            int64  `json:"id"`
	ProcessStepID int64  `json:"process_step_id"`
	StepNumber    string `json:"step_number"`
	Description   string `json:"description"`
}

// ManualStep is an ad-hoc instruction added to a traveler outside its
// process template. Append-only; no completion tracking.
type ManualStep struct {
	ID          int64     `json:"id"`
	TravelerID  int64     `json:"traveler_id"`
	Description string    `json:"description"`
	AddedBy     int64     `json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubStepInput describes a sub-step to create.
type SubStepInput struct {
	StepNumber  string `json:"step_number"`
	Description string `json:"description"`
}

// StepInput describes a process step to create, with its sub-steps.
type StepInput struct {
	StepNumber     int            `json:"step_number"`
	Operation      string         `json:"operation"`
	WorkCenterCode string         `json:"work_center_code"`
	Instructions   string         `json:"instructions"`
	EstimatedTime  *int           `json:"estimated_time"`
	IsRequired     bool           `json:"is_required"`
	SubSteps       []SubStepInput `json:"sub_steps"`
}

// TravelerInput is the full field set for creating a traveler.
type TravelerInput struct {
	JobNumber       string       `json:"job_number"`
	WorkOrderNumber string       `json:"work_order_number"`
	Type            TravelerType `json:"traveler_type"`
	PartNumber      string       `json:"part_number"`
	PartDescription string       `json:"part_description"`
	Revision        string       `json:"revision"`
	Quantity        int          `json:"quantity"`
	CustomerCode    string       `json:"customer_code"`
	CustomerName    string       `json:"customer_name"`
	Priority        Priority     `json:"priority"`
	WorkCenter      string       `json:"work_center"`
	Notes           string       `json:"notes"`
	Steps           []StepInput  `json:"process_steps"`
	ManualSteps     []string     `json:"manual_steps"`
}

// Validate checks the required fields and value constraints for creation.
func (in *TravelerInput) Validate() error {
	var details []FieldError
	if in.JobNumber == "" {
		details = append(details, FieldError{Field: "job_number", Code: "required", Message: "job number is required"})
	}
	if in.Type == "" {
		details = append(details, FieldError{Field: "traveler_type", Code: "required", Message: "traveler type is required"})
	} else if !ValidTravelerType(in.Type) {
		details = append(details, FieldError{Field: "traveler_type", Code: "invalid", Message: fmt.Sprintf("unknown traveler type %q", in.Type)})
	}
	if in.WorkCenter == "" {
		details = append(details, FieldError{Field: "work_center", Code: "required", Message: "work center is required"})
	}
	if in.Quantity <= 0 {
		details = append(details, FieldError{Field: "quantity", Code: "invalid", Message: "quantity must be greater than zero"})
	}
	if in.Priority != "" && !ValidPriority(in.Priority) {
		details = append(details, FieldError{Field: "priority", Code: "invalid", Message: fmt.Sprintf("unknown priority %q", in.Priority)})
	}
	seen := make(map[int]bool, len(in.Steps))
	for _, s := range in.Steps {
		if seen[s.StepNumber] {
			details = append(details, FieldError{Field: "process_steps", Code: "duplicate", Message: fmt.Sprintf("duplicate step number %d", s.StepNumber)})
		}
		seen[s.StepNumber] = true
	}
	if len(details) > 0 {
		return NewValidationError(details)
	}
	return nil
}

// TravelerUpdate is a typed partial update. Nil fields are left unchanged;
// unknown fields are rejected at the transport boundary rather than applied
// reflectively.
type TravelerUpdate struct {
	JobNumber       *string       `json:"job_number,omitempty"`
	WorkOrderNumber *string       `json:"work_order_number,omitempty"`
	Type            *TravelerType `json:"traveler_type,omitempty"`
	PartNumber      *string       `json:"part_number,omitempty"`
	PartDescription *string       `json:"part_description,omitempty"`
	Revision        *string       `json:"revision,omitempty"`
	Quantity        *int          `json:"quantity,omitempty"`
	CustomerCode    *string       `json:"customer_code,omitempty"`
	CustomerName    *string       `json:"customer_name,omitempty"`
	Priority        *Priority     `json:"priority,omitempty"`
	WorkCenter      *string       `json:"work_center,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
}

// IsEmpty reports whether the update carries no changes.
func (u *TravelerUpdate) IsEmpty() bool {
	return u.JobNumber == nil && u.WorkOrderNumber == nil && u.Type == nil &&
		u.PartNumber == nil && u.PartDescription == nil && u.Revision == nil &&
		u.Quantity == nil && u.CustomerCode == nil && u.CustomerName == nil &&
		u.Priority == nil && u.WorkCenter == nil && u.Notes == nil
}

// Validate checks value constraints on the fields present in the update.
func (u *TravelerUpdate) Validate() error {
	var details []FieldError
	if u.Quantity != nil && *u.Quantity <= 0 {
		details = append(details, FieldError{Field: "quantity", Code: "invalid", Message: "quantity must be greater than zero"})
	}
	if u.Type != nil && !ValidTravelerType(*u.Type) {
		details = append(details, FieldError{Field: "traveler_type", Code: "invalid", Message: fmt.Sprintf("unknown traveler type %q", *u.Type)})
	}
	if u.Priority != nil && !ValidPriority(*u.Priority) {
		details = append(details, FieldError{Field: "priority", Code: "invalid", Message: fmt.Sprintf("unknown priority %q", *u.Priority)})
	}
	if len(details) > 0 {
		return NewValidationError(details)
	}
	return nil
}

// FieldChange records one field mutation for the audit trail.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// Apply mutates t with the fields present in the update and returns one
// FieldChange per field that actually changed.
func (u *TravelerUpdate) Apply(t *Traveler) []FieldChange {
	var changes []FieldChange
	set := func(field, oldV, newV string, apply func()) {
		if oldV == newV {
			return
		}
		apply()
		changes = append(changes, FieldChange{Field: field, OldValue: oldV, NewValue: newV})
	}

	if u.JobNumber != nil {
		set("job_number", t.JobNumber, *u.JobNumber, func() { t.JobNumber = *u.JobNumber })
	}
	if u.WorkOrderNumber != nil {
		set("work_order_number", t.WorkOrderNumber, *u.WorkOrderNumber, func() { t.WorkOrderNumber = *u.WorkOrderNumber })
	}
	if u.Type != nil {
		set("traveler_type", string(t.Type), string(*u.Type), func() { t.Type = *u.Type })
	}
	if u.PartNumber != nil {
		set("part_number", t.PartNumber, *u.PartNumber, func() { t.PartNumber = *u.PartNumber })
	}
	if u.PartDescription != nil {
		set("part_description", t.PartDescription, *u.PartDescription, func() { t.PartDescription = *u.PartDescription })
	}
	if u.Revision != nil {
		set("revision", t.Revision, *u.Revision, func() { t.Revision = *u.Revision })
	}
	if u.Quantity != nil {
		set("quantity", strconv.Itoa(t.Quantity), strconv.Itoa(*u.Quantity), func() { t.Quantity = *u.Quantity })
	}
	if u.CustomerCode != nil {
		set("customer_code", t.CustomerCode, *u.CustomerCode, func() { t.CustomerCode = *u.CustomerCode })
	}
	if u.CustomerName != nil {
		set("customer_name", t.CustomerName, *u.CustomerName, func() { t.CustomerName = *u.CustomerName })
	}
	if u.Priority != nil {
		set("priority", string(t.Priority), string(*u.Priority), func() { t.Priority = *u.Priority })
	}
	if u.WorkCenter != nil {
		set("work_center", t.WorkCenter, *u.WorkCenter, func() { t.WorkCenter = *u.WorkCenter })
	}
	if u.Notes != nil {
		set("notes", t.Notes, *u.Notes, func() { t.Notes = *u.Notes })
	}
	return changes
}
