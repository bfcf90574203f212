package fsm

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusPending, StatusAssigned) {
		t.Fatal("expected pending -> assigned to be allowed")
	}
	if !CanTransition(StatusTimedout, StatusPending) {
		t.Fatal("expected timedout -> pending to be allowed")
	}
	if !CanTransition(StatusStarted, StatusCompleted) {
		t.Fatal("expected started -> completed to be allowed")
	}
	if !CanTransition(StatusWithdrawAfter24, StatusTimedout) {
		t.Fatal("expected withdrawafter24 -> timedout to be allowed")
	}
	if CanTransition(StatusPending, StatusCompleted) {
		t.Fatal("unexpected transition allowed")
	}
	if CanTransition(StatusWithdrawBefore24, StatusPending) {
		t.Fatal("withdrawbefore24 has no outgoing transitions")
	}
	if CanTransition(StatusNotCarriedOutCustomer, StatusPending) {
		t.Fatal("not_carried_out_customer has no outgoing transitions")
	}
	if CanTransition(StatusAssigned, StatusCompleted) {
		t.Fatal("assigned -> completed must go through started")
	}
}

func TestCommentRequired(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCompleted, StatusTimedout, true},
		{StatusCompleted, StatusWithdrawBefore24, false},
		{StatusStarted, StatusCompleted, true},
		{StatusStarted, StatusWithdrawAfter24, true},
		{StatusPending, StatusTimedout, true},
		{StatusPending, StatusAssigned, false},
		{StatusAssigned, StatusTimedout, true},
		{StatusAssigned, StatusWithdrawBefore24, false},
		{StatusWithdrawAfter24, StatusTimedout, true},
	}
	for _, c := range cases {
		if got := CommentRequired(c.from, c.to); got != c.want {
			t.Fatalf("CommentRequired(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(StatusCompleted, StatusTimedout, ""); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for missing comment, got %v", err)
	}
	if err := Validate(StatusCompleted, StatusTimedout, "no show"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(StatusCompleted, StatusAssigned, "x"); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for illegal target, got %v", err)
	}
}

func TestKnown(t *testing.T) {
	if !Known(StatusNotCarriedOutCustomer) {
		t.Fatal("expected not_carried_out_customer to be known")
	}
	if Known(Status("withdrawnbefore24")) {
		t.Fatal("legacy misspelled status must not be known")
	}
}
