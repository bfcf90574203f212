package fsm

import (
	"context"
	"database/sql"
	"fmt"
)

// Status is a job lifecycle status.
type Status string

// Status constants used by the booking state machine.
const (
	StatusPending               Status = "pending"
	StatusAssigned              Status = "assigned"
	StatusStarted               Status = "started"
	StatusCompleted             Status = "completed"
	StatusWithdrawBefore24      Status = "withdrawbefore24"
	StatusWithdrawAfter24       Status = "withdrawafter24"
	StatusTimedout              Status = "timedout"
	StatusNotCarriedOutCustomer Status = "not_carried_out_customer"
)

// ErrIllegalTransition is returned when a requested target status is not in
// the legal-target set of the current status, or a mandatory admin comment
// is missing. No state is mutated and no notification is sent in that case.
var ErrIllegalTransition = fmt.Errorf("illegal status transition")

type rule struct {
	// commentRequired rejects the transition when the admin comment is empty.
	commentRequired bool
}

// transitions lists the legal admin-edit targets per current status.
var transitions = map[Status]map[Status]rule{
	StatusTimedout: {
		StatusPending:  {},
		StatusAssigned: {},
	},
	StatusCompleted: {
		StatusWithdrawBefore24: {},
		StatusWithdrawAfter24:  {},
		StatusTimedout:         {commentRequired: true},
	},
	StatusStarted: {
		StatusWithdrawBefore24: {commentRequired: true},
		StatusWithdrawAfter24:  {commentRequired: true},
		StatusTimedout:         {commentRequired: true},
		StatusCompleted:        {commentRequired: true},
	},
	StatusPending: {
		StatusWithdrawBefore24: {},
		StatusWithdrawAfter24:  {},
		StatusTimedout:         {commentRequired: true},
		StatusAssigned:         {},
	},
	StatusWithdrawAfter24: {
		StatusTimedout: {commentRequired: true},
	},
	StatusAssigned: {
		StatusWithdrawBefore24: {},
		StatusWithdrawAfter24:  {},
		StatusTimedout:         {commentRequired: true},
	},
}

// Known reports whether s is one of the modeled statuses.
func Known(s Status) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusStarted, StatusCompleted,
		StatusWithdrawBefore24, StatusWithdrawAfter24, StatusTimedout,
		StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// CanTransition returns whether an admin edit may move a job from the current
// status to the target status.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CommentRequired reports whether the transition demands a non-empty admin
// comment. It returns false for transitions that are not legal at all.
func CommentRequired(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	r, ok := allowed[to]
	return ok && r.commentRequired
}

// Validate checks the transition against the table and the comment rule.
func Validate(from, to Status, adminComments string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if CommentRequired(from, to) && adminComments == "" {
		return fmt.Errorf("%w: %s -> %s requires an admin comment", ErrIllegalTransition, from, to)
	}
	return nil
}

// Apply updates a job status using optimistic validation. The UPDATE is
// guarded by the expected current status so that two racing writers cannot
// both succeed.
func Apply(ctx context.Context, tx *sql.Tx, jobID int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ? AND status = ?`, to, jobID, from)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
