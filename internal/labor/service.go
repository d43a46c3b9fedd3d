package labor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/model"
)

// TravelerSource resolves travelers and steps referenced by labor entries.
type TravelerSource interface {
	Get(ctx context.Context, id int64) (model.Traveler, error)
	GetStep(ctx context.Context, stepID int64) (model.ProcessStep, error)
}

// Service is the labor tracking component.
type Service struct {
	store     Store
	travelers TravelerSource
	auditor   *audit.Recorder
	logger    *zap.Logger
}

// NewService creates the labor tracking service.
func NewService(store Store, travelers TravelerSource, auditor *audit.Recorder, logger *zap.Logger) *Service {
	return &Service{store: store, travelers: travelers, auditor: auditor, logger: logger}
}

// StartInput is the field set for starting a labor entry.
type StartInput struct {
	TravelerID  int64      `json:"traveler_id"`
	StepID      *int64     `json:"step_id"`
	StartTime   *time.Time `json:"start_time"`
	Description string     `json:"description"`
}

// Start opens a labor entry for the acting user. Fails with CONFLICT if
// they already have one running.
func (s *Service) Start(ctx context.Context, in StartInput, actor *model.Actor) (model.LaborEntry, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return model.LaborEntry{}, model.NewForbiddenError("insufficient permissions to log labor")
	}

	if _, err := s.travelers.Get(ctx, in.TravelerID); err != nil {
		return model.LaborEntry{}, err
	}
	if in.StepID != nil {
		step, err := s.travelers.GetStep(ctx, *in.StepID)
		if err != nil {
			return model.LaborEntry{}, err
		}
		if step.TravelerID != in.TravelerID {
			return model.LaborEntry{}, model.NewValidationError([]model.FieldError{
				{Field: "step_id", Code: "invalid", Message: "step does not belong to the traveler"},
			})
		}
	}

	start := time.Now().UTC()
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	}

	entry, err := s.store.Create(ctx, model.LaborEntry{
		TravelerID:  in.TravelerID,
		StepID:      in.StepID,
		EmployeeID:  actor.UserID,
		StartTime:   start,
		Description: in.Description,
	})
	if err != nil {
		return model.LaborEntry{}, err
	}

	if err := s.auditor.Record(ctx, in.TravelerID, actor, model.AuditUpdated, "labor_entry", "", "started"); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", in.TravelerID), zap.Error(err))
	}
	return entry, nil
}

// Update applies a partial update to an entry. Only the owner or an
// ADMIN/SUPERVISOR may touch it. Hours are recomputed every time the end
// time changes.
func (s *Service) Update(ctx context.Context, id int64, upd model.LaborUpdate, actor *model.Actor) (model.LaborEntry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return model.LaborEntry{}, err
	}
	if e.EmployeeID != actor.UserID && !actor.HasRole(model.RoleAdmin, model.RoleSupervisor) {
		return model.LaborEntry{}, model.NewForbiddenError("labor entries can only be changed by their owner or a supervisor")
	}

	if upd.EndTime != nil {
		end := upd.EndTime.UTC()
		if end.Before(e.StartTime) {
			return model.LaborEntry{}, model.NewValidationError([]model.FieldError{
				{Field: "end_time", Code: "invalid", Message: "end time precedes start time"},
			})
		}
		e.EndTime = &end
		e.RecomputeHours()
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.IsCompleted != nil {
		e.IsCompleted = *upd.IsCompleted
	}

	if err := s.store.Update(ctx, e); err != nil {
		return model.LaborEntry{}, err
	}

	if e.IsCompleted {
		if err := s.auditor.Record(ctx, e.TravelerID, actor, model.AuditUpdated, "labor_entry", "", "completed"); err != nil {
			s.logger.Error("audit append failed", zap.Int64("traveler_id", e.TravelerID), zap.Error(err))
		}
	}
	return e, nil
}

// ActiveEntry returns the acting user's running entry, or nil when there is
// none.
func (s *Service) ActiveEntry(ctx context.Context, actor *model.Actor) (*model.LaborEntry, error) {
	e, ok, err := s.store.ActiveFor(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// ListForTraveler returns a traveler's labor entries, newest first.
func (s *Service) ListForTraveler(ctx context.Context, travelerID int64) ([]model.LaborEntry, error) {
	if _, err := s.travelers.Get(ctx, travelerID); err != nil {
		return nil, err
	}
	return s.store.ListForTraveler(ctx, travelerID)
}

// ListMine returns the acting user's entries, newest first.
func (s *Service) ListMine(ctx context.Context, actor *model.Actor) ([]model.LaborEntry, error) {
	return s.store.ListForEmployee(ctx, actor.UserID)
}

// Summary aggregates labor over the trailing periodDays. ADMIN and
// SUPERVISOR see everyone; anyone else sees only their own entries.
func (s *Service) Summary(ctx context.Context, periodDays int, actor *model.Actor) (model.LaborSummary, error) {
	if periodDays <= 0 {
		periodDays = 7
	}

	var employeeID int64
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor) {
		employeeID = actor.UserID
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -periodDays)
	entries, err := s.store.ListSince(ctx, cutoff, employeeID)
	if err != nil {
		return model.LaborSummary{}, err
	}

	summary := model.LaborSummary{PeriodDays: periodDays, TotalEntries: len(entries)}
	for _, e := range entries {
		summary.TotalHours += e.HoursWorked
		if e.IsCompleted {
			summary.CompletedEntries++
		}
		if e.Active() {
			summary.ActiveEntries++
		}
	}
	summary.TotalHours = math.Round(summary.TotalHours*100) / 100
	if summary.TotalEntries > 0 {
		rate := float64(summary.CompletedEntries) / float64(summary.TotalEntries) * 100
		summary.CompletionRate = math.Round(rate*10) / 10
	}
	return summary, nil
}
