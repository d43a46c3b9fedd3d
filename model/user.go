package model

import (
	"strings"
	"time"
)

// Role is a user's access level within the shop floor system.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleOperator   Role = "OPERATOR"
	RoleViewer     Role = "VIEWER"
)

// ValidRole reports whether r is one of the defined roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// User is a system account. Immutable after creation except for role, active
// flag, and password changes performed by an administrator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	IsApprover   bool      `json:"is_approver"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns "First Last", falling back to the username when no
// name parts are set.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Actor converts the user record into a request Actor.
func (u *User) Actor() *Actor {
	return &Actor{
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		IsApprover: u.IsApprover,
	}
}
