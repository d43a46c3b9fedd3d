package model

import (
	"math"
	"time"
)

// LaborEntry is a time-tracked work session an employee logs against a
// traveler, optionally tied to one of its process steps.
type LaborEntry struct {
	ID          int64      `json:"id"`
	TravelerID  int64      `json:"traveler_id"`
	StepID      *int64     `json:"step_id,omitempty"`
	EmployeeID  int64      `json:"employee_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	HoursWorked float64    `json:"hours_worked"`
	Description string     `json:"description,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Active reports whether the entry is still running. At most one active
// entry may exist per employee across the whole system.
func (e *LaborEntry) Active() bool {
	return e.EndTime == nil && !e.IsCompleted
}

// RecomputeHours recalculates HoursWorked from the start/end pair, rounded
// to two decimals. Runs every time the end time changes, not only once.
func (e *LaborEntry) RecomputeHours() {
	if e.EndTime == nil {
		return
	}
	hours := e.EndTime.Sub(e.StartTime).Hours()
	e.HoursWorked = math.Round(hours*100) / 100
}

// LaborUpdate is a typed partial update to a labor entry.
type LaborUpdate struct {
	EndTime     *time.Time `json:"end_time,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsCompleted *bool      `json:"is_completed,omitempty"`
}

// LaborSummary aggregates labor activity over a trailing period.
type LaborSummary struct {
	PeriodDays       int     `json:"period_days"`
	TotalHours       float64 `json:"total_hours"`
	TotalEntries     int     `json:"total_entries"`
	CompletedEntries int     `json:"completed_entries"`
	ActiveEntries    int     `json:"active_entries"`
	CompletionRate   float64 `json:"completion_rate"` // percent, one decimal
}
