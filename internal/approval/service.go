package approval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approver"
	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/internal/notify"
	"github.com/nexusmfg/traveler/model"
)

// TravelerSource resolves travelers referenced by approval requests.
type TravelerSource interface {
	Get(ctx context.Context, id int64) (model.Traveler, error)
}

// Applier replays an approved change set onto its traveler. The lifecycle
// manager implements it; wired in at startup.
type Applier interface {
	ApplyEdit(ctx context.Context, travelerID int64, details string, actor *model.Actor) error
	ApplyStatusChange(ctx context.Context, travelerID int64, details string, actor *model.Actor) error
}

// Service is the approval workflow. Requests are recorded as PENDING and
// decided exactly once; an approved change set is replayed onto the
// traveler before the decision is persisted, so a replay failure leaves the
// request PENDING.
type Service struct {
	store     Store
	travelers TravelerSource
	policy    *approver.Policy
	auditor   *audit.Recorder
	notifier  notify.Notifier
	applier   Applier
	logger    *zap.Logger
}

// NewService creates the approval workflow service.
func NewService(
	store Store,
	travelers TravelerSource,
	policy *approver.Policy,
	auditor *audit.Recorder,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		travelers: travelers,
		policy:    policy,
		auditor:   auditor,
		notifier:  notifier,
		logger:    logger,
	}
}

// SetApplier wires in the change replayer. Separate from the constructor
// because the lifecycle manager in turn sends its deferred changes here.
func (s *Service) SetApplier(a Applier) {
	s.applier = a
}

// Request records a PENDING approval for a deferred change and notifies
// the approver group.
func (s *Service) Request(ctx context.Context, travelerID int64, reqType model.RequestType, details string, actor *model.Actor) (model.Approval, error) {
	if !model.ValidRequestType(reqType) {
		return model.Approval{}, model.NewValidationError([]model.FieldError{
			{Field: "request_type", Code: "invalid", Message: "unknown request type"},
		})
	}

	t, err := s.travelers.Get(ctx, travelerID)
	if err != nil {
		return model.Approval{}, err
	}

	a, err := s.store.Create(ctx, model.Approval{
		TravelerID:     travelerID,
		RequestedBy:    actor.UserID,
		RequestType:    reqType,
		RequestDetails: details,
		Status:         model.ApprovalPending,
	})
	if err != nil {
		return model.Approval{}, err
	}

	if err := s.auditor.Record(ctx, travelerID, actor, model.AuditApprovalRequested, "", "", string(reqType)); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", travelerID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyApprovalRequested(ctx, t, *actor, reqType)
	}

	s.logger.Info("approval requested",
		zap.Int64("approval_id", a.ID),
		zap.String("traveler_number", t.TravelerNumber),
		zap.String("request_type", string(reqType)),
		zap.Int64("requested_by", actor.UserID),
	)
	return a, nil
}

func (s *Service) decide(ctx context.Context, id int64, actor *model.Actor) (model.Approval, model.Traveler, error) {
	if !s.policy.IsApprover(actor) {
		return model.Approval{}, model.Traveler{}, model.NewForbiddenError("only designated approvers can decide requests")
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Approval{}, model.Traveler{}, err
	}
	if a.Decided() {
		return model.Approval{}, model.Traveler{}, model.NewConflictError("approval has already been decided")
	}
	t, err := s.travelers.Get(ctx, a.TravelerID)
	if err != nil {
		return model.Approval{}, model.Traveler{}, err
	}
	return a, t, nil
}

// Approve grants the request and replays its stored change set onto the
// traveler. The replay happens first: if it fails, the request stays
// PENDING and the error is returned.
func (s *Service) Approve(ctx context.Context, id int64, actor *model.Actor) (model.Approval, error) {
	a, t, err := s.decide(ctx, id, actor)
	if err != nil {
		return model.Approval{}, err
	}

	switch a.RequestType {
	case model.RequestEdit:
		err = s.applier.ApplyEdit(ctx, a.TravelerID, a.RequestDetails, actor)
	case model.RequestComplete, model.RequestCancel:
		err = s.applier.ApplyStatusChange(ctx, a.TravelerID, a.RequestDetails, actor)
	}
	if err != nil {
		return model.Approval{}, err
	}

	now := time.Now().UTC()
	a.Status = model.ApprovalApproved
	a.DecidedBy = &actor.UserID
	a.DecidedAt = &now
	if err := s.store.Update(ctx, a); err != nil {
		return model.Approval{}, err
	}

	if err := s.auditor.Record(ctx, a.TravelerID, actor, model.AuditApproved, "", "", string(a.RequestType)); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", a.TravelerID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyDecision(ctx, t, a, *actor)
	}

	s.logger.Info("approval granted",
		zap.Int64("approval_id", a.ID),
		zap.String("traveler_number", t.TravelerNumber),
		zap.Int64("decided_by", actor.UserID),
	)
	return a, nil
}

// Reject denies the request. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, id int64, reason string, actor *model.Actor) (model.Approval, error) {
	if reason == "" {
		return model.Approval{}, model.NewValidationError([]model.FieldError{
			{Field: "rejection_reason", Code: "required", Message: "a reason is required to reject a request"},
		})
	}

	a, t, err := s.decide(ctx, id, actor)
	if err != nil {
		return model.Approval{}, err
	}

	now := time.Now().UTC()
	a.Status = model.ApprovalRejected
	a.DecidedBy = &actor.UserID
	a.DecidedAt = &now
	a.RejectionReason = reason
	if err := s.store.Update(ctx, a); err != nil {
		return model.Approval{}, err
	}

	if err := s.auditor.Record(ctx, a.TravelerID, actor, model.AuditRejected, "", "", reason); err != nil {
		s.logger.Error("audit append failed", zap.Int64("traveler_id", a.TravelerID), zap.Error(err))
	}
	if s.notifier != nil {
		s.notifier.NotifyDecision(ctx, t, a, *actor)
	}

	s.logger.Info("approval rejected",
		zap.Int64("approval_id", a.ID),
		zap.String("traveler_number", t.TravelerNumber),
		zap.Int64("decided_by", actor.UserID),
	)
	return a, nil
}

// ListPending returns all undecided requests. Restricted to designated
// approvers.
func (s *Service) ListPending(ctx context.Context, actor *model.Actor) ([]model.Approval, error) {
	if !s.policy.IsApprover(actor) {
		return nil, model.NewForbiddenError("only designated approvers can list pending requests")
	}
	return s.store.ListPending(ctx)
}

// ListMine returns the acting user's own requests, any status.
func (s *Service) ListMine(ctx context.Context, actor *model.Actor) ([]model.Approval, error) {
	return s.store.ListByRequester(ctx, actor.UserID)
}

// ListForTraveler returns a traveler's requests, newest first.
func (s *Service) ListForTraveler(ctx context.Context, travelerID int64) ([]model.Approval, error) {
	if _, err := s.travelers.Get(ctx, travelerID); err != nil {
		return nil, err
	}
	return s.store.ListForTraveler(ctx, travelerID)
}
