// Package approver decides which users hold traveler approval authority.
package approver

import "github.com/nexusmfg/traveler/model"

// Policy is the capability predicate behind the two-person approval rule.
// A user qualifies when their is_approver flag is set, or when their
// username is on the configured allowlist. The allowlist keeps the workflow
// usable before role and flag data is fully configured; it is injected at
// construction, never hardcoded.
type Policy struct {
	allow map[string]bool
}

// New creates a Policy from the allowlisted usernames.
func New(allowlist []string) *Policy {
	allow := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		if name != "" {
			allow[name] = true
		}
	}
	return &Policy{allow: allow}
}

// IsApprover reports whether the actor may decide approvals and bypass the
// approval gate.
func (p *Policy) IsApprover(actor *model.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.IsApprover || p.allow[actor.Username]
}
