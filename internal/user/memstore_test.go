package user

import (
	"context"
	"testing"

	"github.com/nexusmfg/traveler/model"
)

func TestMemoryStoreCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	u, err := store.Create(ctx, model.User{Username: "jdoe", Email: "jdoe@example.com", Role: model.RoleOperator, IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected assigned ID")
	}

	got, err := store.GetByUsername(ctx, "jdoe")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("got ID %d, want %d", got.ID, u.ID)
	}
}

func TestMemoryStoreDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Create(ctx, model.User{Username: "jdoe", Email: "a@example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := store.Create(ctx, model.User{Username: "jdoe", Email: "b@example.com"})
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	_, err = store.Create(ctx, model.User{Username: "other", Email: "a@example.com"})
	if !model.IsCode(err, model.ErrConflict) {
		t.Fatalf("expected CONFLICT on duplicate email, got %v", err)
	}
}

func TestServiceCreateRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	operator := &model.Actor{UserID: 7, Username: "op", Role: model.RoleOperator}
	_, err := svc.Create(ctx, CreateInput{Username: "x", Email: "x@example.com"}, operator)
	if !model.IsCode(err, model.ErrForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	admin := &model.Actor{UserID: 1, Username: "root", Role: model.RoleAdmin}
	u, err := svc.Create(ctx, CreateInput{Username: "x", Email: "x@example.com"}, admin)
	if err != nil {
		t.Fatalf("Create as admin: %v", err)
	}
	if u.Role != model.RoleOperator {
		t.Errorf("got default role %q, want %q", u.Role, model.RoleOperator)
	}
	if !u.IsActive {
		t.Error("new users should be active")
	}
}

func TestServiceUpdateGuards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)
	admin := &model.Actor{UserID: 1, Username: "root", Role: model.RoleAdmin}

	created, err := store.Create(ctx, model.User{Username: "op", Email: "op@example.com", Role: model.RoleOperator, IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approver := true
	got, err := svc.Update(ctx, created.ID, UpdateInput{IsApprover: &approver}, admin)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.IsApprover {
		t.Error("expected approver flag set")
	}

	// An admin cannot deactivate themselves.
	self, err := store.Create(ctx, model.User{Username: "root", Email: "root@example.com", Role: model.RoleAdmin, IsActive: true})
	if err != nil {
		t.Fatalf("Create admin: %v", err)
	}
	admin.UserID = self.ID
	inactive := false
	_, err = svc.Update(ctx, self.ID, UpdateInput{IsActive: &inactive}, admin)
	if !model.IsCode(err, model.ErrBadRequest) {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}
