package traveler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approver"
	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/internal/notify"
	"github.com/nexusmfg/traveler/internal/workorder"
	"github.com/nexusmfg/traveler/model"
)

// createNumberRetries bounds how many fresh sequence values Create tries
// when the unique constraint on traveler_number fires.
const createNumberRetries = 3

// ApprovalGateway records a pending approval for a deferred change. The
// approval service implements it; wired in at startup.
type ApprovalGateway interface {
	Request(ctx context.Context, travelerID int64, reqType model.RequestType, details string, actor *model.Actor) (model.Approval, error)
}

// Cascader removes a traveler's dependent records during a hard delete.
type Cascader interface {
	DeleteForTraveler(ctx context.Context, travelerID int64) error
}

// Service is the traveler lifecycle manager. Every traveler mutation goes
// through it: creation, gated edits, status transitions, step completion,
// and admin hard deletes.
type Service struct {
	store      Store
	seq        Sequencer
	catalog    *Catalog
	policy     *approver.Policy
	auditor    *audit.Recorder
	notifier   notify.Notifier
	workOrders workorder.Store
	approvals  ApprovalGateway
	cascaders  []Cascader
	logger     *zap.Logger
}

// NewService creates the lifecycle manager. workOrders may be nil when no
// work order source is configured.
func NewService(
	store Store,
	seq Sequencer,
	catalog *Catalog,
	policy *approver.Policy,
	auditor *audit.Recorder,
	notifier notify.Notifier,
	workOrders workorder.Store,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		seq:        seq,
		catalog:    catalog,
		policy:     policy,
		auditor:    auditor,
		notifier:   notifier,
		workOrders: workOrders,
		logger:     logger,
	}
}

// SetApprovals wires in the approval gateway. Separate from the constructor
// because the approval service in turn needs this service as its applier.
func (s *Service) SetApprovals(gw ApprovalGateway) {
	s.approvals = gw
}

// AddCascade registers a store whose records must go when a traveler is
// hard-deleted.
func (s *Service) AddCascade(c Cascader) {
	s.cascaders = append(s.cascaders, c)
}

// Detail is a traveler with its full step set.
type Detail struct {
	model.Traveler
	Steps       []model.ProcessStep `json:"process_steps"`
	ManualSteps []model.ManualStep  `json:"manual_steps"`
}

// UpdateResult distinguishes an applied change from one deferred to the
// approval workflow. Exactly one of Traveler and Approval is set.
type UpdateResult struct {
	Applied  bool            `json:"applied"`
	Traveler *model.Traveler `json:"traveler,omitempty"`
	Approval *model.Approval `json:"approval,omitempty"`
}

func stepsFromInputs(inputs []model.StepInput) []model.ProcessStep {
	steps := make([]model.ProcessStep, 0, len(inputs))
	for _, in := range inputs {
		step := model.ProcessStep{
			StepNumber:     in.StepNumber,
			Operation:      in.Operation,
			WorkCenterCode: in.WorkCenterCode,
			Instructions:   in.Instructions,
			EstimatedTime:  in.EstimatedTime,
			IsRequired:     in.IsRequired,
		}
		for _, sub := range in.SubSteps {
			step.SubSteps = append(step.SubSteps, model.SubStep{
				StepNumber:  sub.StepNumber,
				Description: sub.Description,
			})
		}
		steps = append(steps, step)
	}
	return steps
}

// Create persists a new traveler with its process and manual steps as one
// atomic unit, numbers it, and records the CREATED audit entry. When the
// input names a work order and carries no explicit steps, the work order's
// fields and template seed the traveler.
func (s *Service) Create(ctx context.Context, in model.TravelerInput, actor *model.Actor) (model.Traveler, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return model.Traveler{}, model.NewForbiddenError("insufficient permissions to create travelers")
	}
	if err := in.Validate(); err != nil {
		return model.Traveler{}, err
	}

	if in.WorkOrderNumber != "" && s.workOrders != nil {
		wo, err := s.workOrders.GetByNumber(ctx, in.WorkOrderNumber)
		if err != nil {
			return model.Traveler{}, err
		}
		if in.PartNumber == "" {
			in.PartNumber = wo.PartNumber
		}
		if in.PartDescription == "" {
			in.PartDescription = wo.PartDescription
		}
		if in.Revision == "" {
			in.Revision = wo.Revision
		}
		if in.CustomerCode == "" {
			in.CustomerCode = wo.CustomerCode
		}
		if in.CustomerName == "" {
			in.CustomerName = wo.CustomerName
		}
		if len(in.Steps) == 0 {
			steps, err := workorder.TemplateSteps(wo)
			if err != nil {
				return model.Traveler{}, err
			}
			in.Steps = steps
		}
	}
	if len(in.Steps) == 0 && s.catalog != nil {
		in.Steps = s.catalog.StepsFor(in.Type)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityNormal
	}

	identifier := in.WorkOrderNumber
	if identifier == "" {
		identifier = in.JobNumber
	}

	t := model.Traveler{
		JobNumber:       in.JobNumber,
		WorkOrderNumber: in.WorkOrderNumber,
		Type:            in.Type,
		PartNumber:      in.PartNumber,
		PartDescription: in.PartDescription,
		Revision:        in.Revision,
		Quantity:        in.Quantity,
		CustomerCode:    in.CustomerCode,
		CustomerName:    in.CustomerName,
		Priority:        in.Priority,
		WorkCenter:      in.WorkCenter,
		Status:          model.StatusCreated,
		Notes:           in.Notes,
		CreatedBy:       actor.UserID,
	}
	steps := stepsFromInputs(in.Steps)
	manual := make([]model.ManualStep, 0, len(in.ManualSteps))
	for _, desc := range in.ManualSteps {
		manual = append(manual, model.ManualStep{Description: desc, AddedBy: actor.UserID})
	}

	// The unique constraint on traveler_number is the backstop for the
	// sequencer; a collision just means another sequence value.
	var created model.Traveler
	for attempt := 0; ; attempt++ {
		seq, err := s.seq.Next(ctx, sequenceKey(identifier, in.Type))
		if err != nil {
			return model.Traveler{}, err
		}
		t.TravelerNumber = FormatNumber(identifier, in.Type, time.Now().UTC(), seq)

		created, err = s.store.Create(ctx, t, steps, manual)
		if err == nil {
			break
		}
		if model.IsCode(err, model.ErrConflict) && attempt < createNumberRetries {
			continue
		}
		return model.Traveler{}, err
	}

	if err := s.auditor.Record(ctx, created.ID, actor, model.AuditCreated, "", "", string(created.Status)); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", created.ID), zap.Error(err))
	}

	// Creation always succeeds; non-approvers only trigger a heads-up to
	// the approver group.
	if !s.policy.IsApprover(actor) && s.notifier != nil {
		s.notifier.NotifyTravelerCreated(ctx, created, *actor)
	}

	s.logger.Info("traveler created",
		zap.String("traveler_number", created.TravelerNumber),
		zap.String("job_number", created.JobNumber),
		zap.Int64("created_by", actor.UserID),
	)
	return created, nil
}

// Get returns a traveler with its steps.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	steps, err := s.store.Steps(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	manual, err := s.store.ManualSteps(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Traveler: t, Steps: steps, ManualSteps: manual}, nil
}

// List returns travelers matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]model.Traveler, error) {
	return s.store.List(ctx, f)
}

// History returns the traveler's audit trail, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]model.AuditEntry, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.auditor.History(ctx, id)
}

// applyUpdate mutates the traveler with the change set and writes one
// UPDATED audit entry per changed field.
func (s *Service) applyUpdate(ctx context.Context, t model.Traveler, upd model.TravelerUpdate, actor *model.Actor) (model.Traveler, error) {
	changes := upd.Apply(&t)
	if len(changes) == 0 {
		return t, nil
	}
	if err := s.store.Update(ctx, t); err != nil {
		return model.Traveler{}, err
	}
	for _, c := range changes {
		if err := s.auditor.Record(ctx, t.ID, actor, model.AuditUpdated, c.Field, c.OldValue, c.NewValue); err != nil {
			s.logger.Error("audit append failed", zap.Int64("traveler_id", t.ID), zap.Error(err))
		}
	}
	return t, nil
}

// Update applies a typed partial update. Designated approvers see it
// applied immediately; anyone else gets a PENDING approval instead, with
// the traveler left untouched.
func (s *Service) Update(ctx context.Context, id int64, upd model.TravelerUpdate, actor *model.Actor) (UpdateResult, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return UpdateResult{}, model.NewForbiddenError("insufficient permissions to update travelers")
	}
	if upd.IsEmpty() {
		return UpdateResult{}, model.NewBadRequestError("update carries no fields")
	}
	if err := upd.Validate(); err != nil {
		return UpdateResult{}, err
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}

	if !s.policy.IsApprover(actor) {
		details, err := json.Marshal(upd)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("encode change set: %w", err)
		}
		a, err := s.approvals.Request(ctx, id, model.RequestEdit, string(details), actor)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Applied: false, Approval: &a}, nil
	}

	updated, err := s.applyUpdate(ctx, t, upd, actor)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Applied: true, Traveler: &updated}, nil
}

// applyTransition moves the traveler to a new status, keeping completed_at
// in lockstep with COMPLETED, and records the audit entry.
func (s *Service) applyTransition(ctx context.Context, t model.Traveler, newStatus model.TravelerStatus, actor *model.Actor) (model.Traveler, error) {
	if !model.CanTransition(t.Status, newStatus) {
		return model.Traveler{}, model.NewInvalidTransitionError(
			fmt.Sprintf("cannot transition traveler from %s to %s", t.Status, newStatus),
		)
	}

	oldStatus := t.Status
	t.Status = newStatus
	if newStatus == model.StatusCompleted {
		now := time.Now().UTC()
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}

	if err := s.store.Update(ctx, t); err != nil {
		return model.Traveler{}, err
	}

	action := model.AuditStatusChanged
	if newStatus == model.StatusCompleted {
		action = model.AuditCompleted
	}
	if err := s.auditor.Record(ctx, t.ID, actor, action, "status", string(oldStatus), string(newStatus)); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", t.ID), zap.Error(err))
	}

	s.logger.Info("traveler status changed",
		zap.String("traveler_number", t.TravelerNumber),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
	)
	return t, nil
}

type statusChange struct {
	Status model.TravelerStatus `json:"status"`
}

// requestTypeForStatus maps a requested transition to its approval request
// type.
func requestTypeForStatus(status model.TravelerStatus) model.RequestType {
	switch status {
	case model.StatusCompleted:
		return model.RequestComplete
	case model.StatusCancelled:
		return model.RequestCancel
	}
	return model.RequestEdit
}

// TransitionStatus moves a traveler along its lifecycle. The same approval
// gate as Update applies to non-approvers.
func (s *Service) TransitionStatus(ctx context.Context, id int64, newStatus model.TravelerStatus, actor *model.Actor) (UpdateResult, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return UpdateResult{}, model.NewForbiddenError("insufficient permissions to change traveler status")
	}
	switch newStatus {
	case model.StatusCreated, model.StatusInProgress, model.StatusOnHold, model.StatusCompleted, model.StatusCancelled:
	default:
		return UpdateResult{}, model.NewValidationError([]model.FieldError{
			{Field: "status", Code: "invalid", Message: fmt.Sprintf("unknown status %q", newStatus)},
		})
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}

	if !s.policy.IsApprover(actor) {
		details, err := json.Marshal(statusChange{Status: newStatus})
		if err != nil {
			return UpdateResult{}, fmt.Errorf("encode change set: %w", err)
		}
		a, err := s.approvals.Request(ctx, id, requestTypeForStatus(newStatus), string(details), actor)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Applied: false, Approval: &a}, nil
	}

	updated, err := s.applyTransition(ctx, t, newStatus, actor)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Applied: true, Traveler: &updated}, nil
}

// Delete hard-deletes a traveler and everything it owns. Audit entries are
// kept for compliance. Admin only.
func (s *Service) Delete(ctx context.Context, id int64, actor *model.Actor) error {
	if actor.Role != model.RoleAdmin {
		return model.NewForbiddenError("only administrators can delete travelers")
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, c := range s.cascaders {
		if err := c.DeleteForTraveler(ctx, id); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.auditor.Record(ctx, id, actor, model.AuditDeleted, "", t.TravelerNumber, ""); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", id), zap.Error(err))
	}

	s.logger.Info("traveler deleted",
		zap.String("traveler_number", t.TravelerNumber),
		zap.Int64("deleted_by", actor.UserID),
	)
	return nil
}

// CompleteStep marks a process step done by the acting user.
func (s *Service) CompleteStep(ctx context.Context, stepID int64, actor *model.Actor) (model.ProcessStep, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return model.ProcessStep{}, model.NewForbiddenError("insufficient permissions to complete steps")
	}

	step, err := s.store.GetStep(ctx, stepID)
	if err != nil {
		return model.ProcessStep{}, err
	}
	if step.IsCompleted {
		return model.ProcessStep{}, model.NewConflictError(
			fmt.Sprintf("step %d is already completed", step.StepNumber),
		)
	}

	now := time.Now().UTC()
	step.IsCompleted = true
	step.CompletedBy = &actor.UserID
	step.CompletedAt = &now
	if err := s.store.UpdateStep(ctx, step); err != nil {
		return model.ProcessStep{}, err
	}

	if err := s.auditor.Record(ctx, step.TravelerID, actor, model.AuditStepCompleted,
		fmt.Sprintf("step_%d", step.StepNumber), "", step.Operation); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", step.TravelerID), zap.Error(err))
	}
	return step, nil
}

// AddManualStep appends an ad-hoc instruction to a traveler.
func (s *Service) AddManualStep(ctx context.Context, travelerID int64, description string, actor *model.Actor) (model.ManualStep, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor, model.RoleOperator) {
		return model.ManualStep{}, model.NewForbiddenError("insufficient permissions to add manual steps")
	}
	if description == "" {
		return model.ManualStep{}, model.NewValidationError([]model.FieldError{
			{Field: "description", Code: "required", Message: "description is required"},
		})
	}
	if _, err := s.store.Get(ctx, travelerID); err != nil {
		return model.ManualStep{}, err
	}

	ms, err := s.store.AddManualStep(ctx, model.ManualStep{
		TravelerID:  travelerID,
		Description: description,
		AddedBy:     actor.UserID,
	})
	if err != nil {
		return model.ManualStep{}, err
	}

	if err := s.auditor.Record(ctx, travelerID, actor, model.AuditUpdated, "manual_step", "", description); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", travelerID), zap.Error(err))
	}
	return ms, nil
}

// ApplyEdit replays an approved EDIT change set onto the traveler. Called
// by the approval service once a request is approved.
func (s *Service) ApplyEdit(ctx context.Context, travelerID int64, details string, actor *model.Actor) error {
	var upd model.TravelerUpdate
	if err := json.Unmarshal([]byte(details), &upd); err != nil {
		return model.NewBadRequestError("stored change set is malformed")
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	t, err := s.store.Get(ctx, travelerID)
	if err != nil {
		return err
	}
	_, err = s.applyUpdate(ctx, t, upd, actor)
	return err
}

// ApplyStatusChange replays an approved COMPLETE/CANCEL/status change.
func (s *Service) ApplyStatusChange(ctx context.Context, travelerID int64, details string, actor *model.Actor) error {
	var sc statusChange
	if err := json.Unmarshal([]byte(details), &sc); err != nil {
		return model.NewBadRequestError("stored change set is malformed")
	}
	t, err := s.store.Get(ctx, travelerID)
	if err != nil {
		return err
	}
	_, err = s.applyTransition(ctx, t, sc.Status, actor)
	return err
}
