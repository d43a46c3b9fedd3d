package approver

import (
	"testing"

	"github.com/nexusmfg/traveler/model"
)

func TestPolicy_flag(t *testing.T) {
	p := New(nil)

	if !p.IsApprover(&model.Actor{UserID: 1, Username: "casey", IsApprover: true}) {
		t.Error("flagged user should be an approver")
	}
	if p.IsApprover(&model.Actor{UserID: 2, Username: "casey"}) {
		t.Error("unflagged, unlisted user should not be an approver")
	}
}

func TestPolicy_allowlist(t *testing.T) {
	p := New([]string{"kris", "adam"})

	if !p.IsApprover(&model.Actor{UserID: 1, Username: "kris"}) {
		t.Error("allowlisted user should be an approver even without the flag")
	}
	if !p.IsApprover(&model.Actor{UserID: 2, Username: "adam"}) {
		t.Error("allowlisted user should be an approver even without the flag")
	}
	if p.IsApprover(&model.Actor{UserID: 3, Username: "mallory"}) {
		t.Error("unlisted user should not be an approver")
	}
}

func TestPolicy_nilActor(t *testing.T) {
	p := New([]string{"kris"})
	if p.IsApprover(nil) {
		t.Error("nil actor should never be an approver")
	}
}

func TestPolicy_emptyNamesIgnored(t *testing.T) {
	p := New([]string{"", "kris"})
	if p.IsApprover(&model.Actor{UserID: 1, Username: ""}) {
		t.Error("empty username should never match the allowlist")
	}
}
