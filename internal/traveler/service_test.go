package traveler

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approver"
	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/model"
)

// fakeGateway records approval requests without a real approval service.
type fakeGateway struct {
	requests []model.Approval
}

func (g *fakeGateway) Request(_ context.Context, travelerID int64, reqType model.RequestType, details string, actor *model.Actor) (model.Approval, error) {
	a := model.Approval{
		ID:             int64(len(g.requests) + 1),
		TravelerID:     travelerID,
		RequestedBy:    actor.UserID,
		RequestType:    reqType,
		RequestDetails: details,
		Status:         model.ApprovalPending,
	}
	g.requests = append(g.requests, a)
	return a, nil
}

type testEnv struct {
	svc      *Service
	store    *MemoryStore
	auditMem *audit.MemoryStore
	gateway  *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	auditMem := audit.NewMemoryStore()
	gw := &fakeGateway{}
	svc := NewService(
		store,
		NewMemorySequencer(),
		BuiltinCatalog(),
		approver.New([]string{"plant_manager"}),
		audit.NewRecorder(auditMem),
		nil,
		nil,
		zap.NewNop(),
	)
	svc.SetApprovals(gw)
	return &testEnv{svc: svc, store: store, auditMem: auditMem, gateway: gw}
}

func approverActor() *model.Actor {
	return &model.Actor{UserID: 1, Username: "lead", Role: model.RoleSupervisor, IsApprover: true}
}

func operatorActor() *model.Actor {
	return &model.Actor{UserID: 2, Username: "op", Role: model.RoleOperator}
}

func pcbInput() model.TravelerInput {
	return model.TravelerInput{
		JobNumber:  "8414L",
		Type:       model.TypePCB,
		Quantity:   250,
		WorkCenter: "SMT",
		Steps: []model.StepInput{
			{StepNumber: 1, Operation: "Kitting", SubSteps: []model.SubStepInput{
				{StepNumber: "1.1", Description: "Pull parts"},
				{StepNumber: "1.2", Description: "Verify counts"},
			}},
		},
	}
}

func TestCreateTraveler(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != model.StatusCreated {
		t.Errorf("got status %q, want %q", created.Status, model.StatusCreated)
	}
	if !strings.HasPrefix(created.TravelerNumber, "8414L-PCB-") {
		t.Errorf("unexpected traveler number %q", created.TravelerNumber)
	}
	if !strings.HasSuffix(created.TravelerNumber, "-0001") {
		t.Errorf("first traveler should get sequence 0001, got %q", created.TravelerNumber)
	}

	detail, err := env.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(detail.Steps))
	}
	if len(detail.Steps[0].SubSteps) != 2 {
		t.Errorf("got %d sub-steps, want 2", len(detail.Steps[0].SubSteps))
	}

	history, err := env.svc.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Action != model.AuditCreated {
		t.Fatalf("expected exactly one CREATED entry, got %+v", history)
	}
}

func TestCreateTravelerValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := pcbInput()
	in.Quantity = 0
	if _, err := env.svc.Create(ctx, in, approverActor()); !model.IsCode(err, model.ErrValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	in = pcbInput()
	in.JobNumber = ""
	if _, err := env.svc.Create(ctx, in, approverActor()); !model.IsCode(err, model.ErrValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	viewer := &model.Actor{UserID: 9, Username: "guest", Role: model.RoleViewer}
	if _, err := env.svc.Create(ctx, pcbInput(), viewer); !model.IsCode(err, model.ErrForbidden) {
		t.Fatalf("expected FORBIDDEN for viewer, got %v", err)
	}
}

func TestCreateSeedsTemplateSteps(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := pcbInput()
	in.Steps = nil
	created, err := env.svc.Create(ctx, in, approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	steps, err := env.store.Steps(ctx, created.ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("expected template-seeded steps for PCB")
	}
}

func TestSequenceNumbersIncrement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.TravelerNumber == second.TravelerNumber {
		t.Fatalf("traveler numbers must be unique, both got %q", first.TravelerNumber)
	}
	if !strings.HasSuffix(second.TravelerNumber, "-0002") {
		t.Errorf("second traveler should get sequence 0002, got %q", second.TravelerNumber)
	}
}

func TestUpdateByApproverApplies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	qty := 300
	res, err := env.svc.Update(ctx, created.ID, model.TravelerUpdate{Quantity: &qty}, approverActor())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Applied || res.Traveler == nil {
		t.Fatal("approver update should apply directly")
	}
	if res.Traveler.Quantity != 300 {
		t.Errorf("got quantity %d, want 300", res.Traveler.Quantity)
	}

	history, _ := env.svc.History(ctx, created.ID)
	var updates int
	for _, e := range history {
		if e.Action == model.AuditUpdated && e.FieldChanged == "quantity" {
			updates++
			if e.OldValue != "250" || e.NewValue != "300" {
				t.Errorf("audit entry got %q -> %q, want 250 -> 300", e.OldValue, e.NewValue)
			}
		}
	}
	if updates != 1 {
		t.Errorf("got %d quantity audit entries, want 1", updates)
	}
}

func TestUpdateByOperatorDefers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	qty := 300
	res, err := env.svc.Update(ctx, created.ID, model.TravelerUpdate{Quantity: &qty}, operatorActor())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Applied || res.Approval == nil {
		t.Fatal("operator update should defer to approval")
	}
	if res.Approval.RequestType != model.RequestEdit {
		t.Errorf("got request type %q, want EDIT", res.Approval.RequestType)
	}

	// The traveler row must be untouched.
	got, err := env.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != 250 {
		t.Errorf("deferred update mutated quantity to %d", got.Quantity)
	}
	if len(env.gateway.requests) != 1 {
		t.Fatalf("got %d approval requests, want 1", len(env.gateway.requests))
	}
}

func TestAllowlistedUserBypassesGate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Not flagged as approver, but on the configured allowlist.
	manager := &model.Actor{UserID: 5, Username: "plant_manager", Role: model.RoleSupervisor}
	notes := "expedite"
	res, err := env.svc.Update(ctx, created.ID, model.TravelerUpdate{Notes: &notes}, manager)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Applied {
		t.Fatal("allowlisted user should bypass the approval gate")
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := env.svc.TransitionStatus(ctx, created.ID, model.StatusInProgress, approverActor())
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if res.Traveler.Status != model.StatusInProgress {
		t.Errorf("got status %q, want IN_PROGRESS", res.Traveler.Status)
	}
	if res.Traveler.CompletedAt != nil {
		t.Error("completed_at must stay nil outside COMPLETED")
	}

	res, err = env.svc.TransitionStatus(ctx, created.ID, model.StatusCompleted, approverActor())
	if err != nil {
		t.Fatalf("TransitionStatus to COMPLETED: %v", err)
	}
	if res.Traveler.CompletedAt == nil {
		t.Fatal("completed_at must be set when status is COMPLETED")
	}

	// COMPLETED is terminal.
	_, err = env.svc.TransitionStatus(ctx, created.ID, model.StatusInProgress, approverActor())
	if !model.IsCode(err, model.ErrInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestTransitionByOperatorDefers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := env.svc.TransitionStatus(ctx, created.ID, model.StatusCancelled, operatorActor())
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if res.Applied {
		t.Fatal("operator transition should defer to approval")
	}
	if res.Approval.RequestType != model.RequestCancel {
		t.Errorf("got request type %q, want CANCEL", res.Approval.RequestType)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.svc.Delete(ctx, created.ID, approverActor()); !model.IsCode(err, model.ErrForbidden) {
		t.Fatalf("expected FORBIDDEN for supervisor, got %v", err)
	}

	admin := &model.Actor{UserID: 1, Username: "root", Role: model.RoleAdmin}
	if err := env.svc.Delete(ctx, created.ID, admin); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.store.Get(ctx, created.ID); !model.IsCode(err, model.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}

	// Audit history survives the delete.
	history, err := env.auditMem.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var deleted bool
	for _, e := range history {
		if e.Action == model.AuditDeleted {
			deleted = true
		}
	}
	if !deleted {
		t.Error("expected a DELETED audit entry to survive the hard delete")
	}
}

func TestCompleteStep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	steps, err := env.store.Steps(ctx, created.ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}

	actor := operatorActor()
	done, err := env.svc.CompleteStep(ctx, steps[0].ID, actor)
	if err != nil {
		t.Fatalf("CompleteStep: %v", err)
	}
	if !done.IsCompleted || done.CompletedBy == nil || *done.CompletedBy != actor.UserID {
		t.Errorf("step not marked complete by actor: %+v", done)
	}
	if done.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}

	if _, err := env.svc.CompleteStep(ctx, steps[0].ID, actor); !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("expected CONFLICT on double completion, got %v", err)
	}
}

func TestApplyEditReplaysStoredChangeSet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.svc.Create(ctx, pcbInput(), approverActor())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := env.svc.ApplyEdit(ctx, created.ID, `{"quantity": 500}`, approverActor()); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}
	got, err := env.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != 500 {
		t.Errorf("got quantity %d, want 500", got.Quantity)
	}

	if err := env.svc.ApplyEdit(ctx, created.ID, `not json`, approverActor()); !model.IsCode(err, model.ErrBadRequest) {
		t.Fatalf("expected BAD_REQUEST for malformed change set, got %v", err)
	}
}
