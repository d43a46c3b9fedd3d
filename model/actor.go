package model

import (
	"context"
	"errors"
	"fmt"
)

// Actor carries the authenticated user and request metadata for the lifetime
// of a request. It is immutable after construction and safe for concurrent
// reads.
type Actor struct {
	UserID     int64
	Username   string
	Email      string
	Role       Role
	IsApprover bool

	Origin        RequestOrigin
	CorrelationID string
	TraceID       string
}

// RequestOrigin records where a request came from, for the audit trail.
type RequestOrigin struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Validate checks that all mandatory fields are present.
// UserID and Username must be set.
func (a *Actor) Validate() error {
	var errs []error
	if a.UserID == 0 {
		errs = append(errs, fmt.Errorf("UserID is required"))
	}
	if a.Username == "" {
		errs = append(errs, fmt.Errorf("Username is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasRole returns true if the actor holds any of the given roles.
func (a *Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type actorKey struct{}

// WithActor attaches an Actor to the given context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the Actor from the context, or returns nil if not
// present.
func ActorFrom(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}

// MustActor extracts the Actor from the context, panicking if it is not
// present. This is safe to call in handlers that are guaranteed to run behind
// the authentication middleware.
func MustActor(ctx context.Context) *Actor {
	actor := ActorFrom(ctx)
	if actor == nil {
		panic("model: Actor not found in context")
	}
	return actor
}
