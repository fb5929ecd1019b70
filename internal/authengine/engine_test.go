package authengine

import (
	"context"
	"testing"
)

func TestDecideMissingUsername(t *testing.T) {
	e := &Engine{}
	outcome, reason := e.decide(context.Background(), "", "somepassword")

	if outcome != reject {
		t.Errorf("outcome = %v, want reject", outcome)
	}
	if reason != ReasonMissingUsername {
		t.Errorf("reason = %q, want %q", reason, ReasonMissingUsername)
	}
}

func TestDecideMissingPassword(t *testing.T) {
	e := &Engine{}
	outcome, reason := e.decide(context.Background(), "alice", "")

	if outcome != reject {
		t.Errorf("outcome = %v, want reject", outcome)
	}
	if reason != ReasonMissingPassword {
		t.Errorf("reason = %q, want %q", reason, ReasonMissingPassword)
	}
}

func TestReasonTooManySessions(t *testing.T) {
	got := reasonTooManySessions(3)
	want := "Maximum concurrent sessions (3) reached"
	if got != want {
		t.Errorf("reasonTooManySessions(3) = %q, want %q", got, want)
	}
}
