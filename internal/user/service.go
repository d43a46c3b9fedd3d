package user

import (
	"context"
	"fmt"

	"github.com/nexusmfg/traveler/model"
)

// Service exposes the admin-facing account operations. Password hashing
// happens upstream; the service stores whatever opaque hash it is given.
type Service struct {
	store Store
}

// NewService creates a new user Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateInput is the field set for creating a user.
type CreateInput struct {
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         model.Role `json:"role"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsApprover   bool       `json:"is_approver"`
}

// Create adds a new account. Restricted to administrators.
func (s *Service) Create(ctx context.Context, in CreateInput, actor *model.Actor) (model.User, error) {
	if actor.Role != model.RoleAdmin {
		return model.User{}, model.NewForbiddenError("only administrators can create users")
	}

	var details []model.FieldError
	if in.Username == "" {
		details = append(details, model.FieldError{Field: "username", Code: "required", Message: "username is required"})
	}
	if in.Email == "" {
		details = append(details, model.FieldError{Field: "email", Code: "required", Message: "email is required"})
	}
	if in.Role == "" {
		in.Role = model.RoleOperator
	} else if !model.ValidRole(in.Role) {
		details = append(details, model.FieldError{Field: "role", Code: "invalid", Message: fmt.Sprintf("unknown role %q", in.Role)})
	}
	if len(details) > 0 {
		return model.User{}, model.NewValidationError(details)
	}

	return s.store.Create(ctx, model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsApprover:   in.IsApprover,
		IsActive:     true,
	})
}

// List returns all accounts. Restricted to ADMIN and SUPERVISOR.
func (s *Service) List(ctx context.Context, actor *model.Actor) ([]model.User, error) {
	if !actor.HasRole(model.RoleAdmin, model.RoleSupervisor) {
		return nil, model.NewForbiddenError("insufficient permissions to list users")
	}
	return s.store.List(ctx)
}

// Get returns one account. Users may read themselves; ADMIN and SUPERVISOR
// may read anyone.
func (s *Service) Get(ctx context.Context, id int64, actor *model.Actor) (model.User, error) {
	if id != actor.UserID && !actor.HasRole(model.RoleAdmin, model.RoleSupervisor) {
		return model.User{}, model.NewForbiddenError("insufficient permissions to view this user")
	}
	return s.store.Get(ctx, id)
}

// UpdateInput holds the mutable account fields. Nil pointers are left as-is.
type UpdateInput struct {
	Role       *model.Role `json:"role"`
	IsActive   *bool       `json:"is_active"`
	IsApprover *bool       `json:"is_approver"`
}

// Update changes role, active, or approver flags. Restricted to
// administrators; admins cannot deactivate their own account.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, actor *model.Actor) (model.User, error) {
	if actor.Role != model.RoleAdmin {
		return model.User{}, model.NewForbiddenError("only administrators can modify users")
	}

	u, err := s.store.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	if in.Role != nil {
		if !model.ValidRole(*in.Role) {
			return model.User{}, model.NewValidationError([]model.FieldError{
				{Field: "role", Code: "invalid", Message: fmt.Sprintf("unknown role %q", *in.Role)},
			})
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		if id == actor.UserID && !*in.IsActive {
			return model.User{}, model.NewBadRequestError("cannot deactivate your own account")
		}
		u.IsActive = *in.IsActive
	}
	if in.IsApprover != nil {
		u.IsApprover = *in.IsApprover
	}

	if err := s.store.Update(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}
