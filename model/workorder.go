package model

import "time"

// WorkOrder is a reference record used to auto-populate a new traveler's
// fields and initial process steps. Read-only from the lifecycle manager's
// perspective.
type WorkOrder struct {
	ID              int64        `json:"id"`
	JobNumber       string       `json:"job_number"`
	WorkOrderNumber string       `json:"work_order_number"`
	Type            TravelerType `json:"traveler_type"`
	PartNumber      string       `json:"part_number"`
	PartDescription string       `json:"part_description"`
	Revision        string       `json:"revision"`
	Quantity        int          `json:"quantity"`
	CustomerCode    string       `json:"customer_code"`
	CustomerName    string       `json:"customer_name"`
	WorkCenter      string       `json:"work_center"`
	Priority        Priority     `json:"priority"`
	ProcessTemplate string       `json:"-"` // serialized []StepInput
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
}
