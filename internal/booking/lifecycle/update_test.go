package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/models"
)

func TestUpdateChangesLanguageAndDue(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(pendingJob(1, now.Add(48*time.Hour)))

	job, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		FromLanguageID: 6,
		DueDate:        "04/04/2026",
		DueTime:        "09:00",
	}, now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if job.FromLanguageID != 6 {
		t.Fatalf("language = %d, want 6", job.FromLanguageID)
	}
	if len(changes) != 2 {
		t.Fatalf("expected lang and due records, got %v", changes)
	}
	if changes[0].Field != "lang" || changes[0].Old != "Spanish" || changes[0].New != "French" {
		t.Fatalf("unexpected lang record %v", changes[0])
	}

	// a future booking change notifies the customer
	if len(f.notifier.emails) == 0 {
		t.Fatal("change notices expected for a future booking")
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(pendingJob(1, now.Add(48*time.Hour)))

	req := UpdateRequest{FromLanguageID: 6}
	if _, changes, err := f.svc.Update(context.Background(), 1, req, now); err != nil || len(changes) != 1 {
		t.Fatalf("first update: changes=%v err=%v", changes, err)
	}

	_, changes, err := f.svc.Update(context.Background(), 1, req, now)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("replaying the same edit must be a no-op, got %v", changes)
	}
}

func TestUpdateSuppressesNoticesForPastBookings(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(pendingJob(1, now.Add(-2*time.Hour)))

	_, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{FromLanguageID: 6}, now)
	if err != nil || len(changes) != 1 {
		t.Fatalf("update: changes=%v err=%v", changes, err)
	}
	if len(f.notifier.emails)+len(f.notifier.pushes) != 0 {
		t.Fatal("no notices for a booking whose time has passed")
	}
}

func TestUpdateIllegalStatusLeavesJobUntouched(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(-48*time.Hour))
	job.Status = fsm.StatusCompleted
	f := newFixture(job)

	_, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{Status: fsm.StatusStarted}, now)
	if !errors.Is(err, fsm.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	stored, _ := f.jobs.GetByID(context.Background(), 1)
	if stored.Status != fsm.StatusCompleted {
		t.Fatalf("stored status must be untouched, got %s", stored.Status)
	}
	if len(f.notifier.emails)+len(f.notifier.pushes) != 0 {
		t.Fatal("an illegal transition must not notify anyone")
	}
}

func TestUpdateCompletedToTimedoutNeedsComment(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(-48*time.Hour))
	job.Status = fsm.StatusCompleted
	job.AdminComments = ""
	f := newFixture(job)

	_, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{Status: fsm.StatusTimedout}, now)
	if !errors.Is(err, fsm.ErrIllegalTransition) {
		t.Fatalf("missing comment must reject the move, got %v", err)
	}

	// with a comment the same move is legal
	_, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		Status:        fsm.StatusTimedout,
		AdminComments: "session never took place",
	}, now)
	if err != nil {
		t.Fatalf("Update with comment: %v", err)
	}
	if len(changes) != 1 || changes[0].New != string(fsm.StatusTimedout) {
		t.Fatalf("expected a status record, got %v", changes)
	}
}

func TestUpdateTimedoutToPendingRenotifiesPool(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(48*time.Hour))
	job.Status = fsm.StatusTimedout
	f := newFixture(job)
	f.matcher.candidates = []models.TranslatorProfile{{UserID: 8, Email: "eight@example.com"}}

	updated, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{Status: fsm.StatusPending}, now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != fsm.StatusPending {
		t.Fatalf("status = %s, want pending", updated.Status)
	}

	found := false
	for _, p := range f.notifier.pushes {
		if p.payload.NotificationType == "suitable_job" {
			found = true
		}
	}
	if !found {
		t.Fatal("resending a timed-out booking must renotify the pool")
	}

	// the offer window restarts from the edit
	if !updated.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want reset to %v", updated.CreatedAt, now)
	}
	stored, _ := f.jobs.GetByID(context.Background(), 1)
	if !stored.CreatedAt.Equal(now) {
		t.Fatalf("stored created_at = %v, want %v", stored.CreatedAt, now)
	}
}

func TestUpdateAssignSchedulesSessionReminders(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	job := pendingJob(1, due)
	job.Status = fsm.StatusTimedout
	f := newFixture(job)

	updated, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		TranslatorID: 8,
		Status:       fsm.StatusAssigned,
	}, now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != fsm.StatusAssigned {
		t.Fatalf("status = %s, want assigned", updated.Status)
	}

	active, err := f.assignments.Active(context.Background(), 1)
	if err != nil || active.UserID != 8 {
		t.Fatalf("active assignment = %v err=%v, want translator 8", active, err)
	}

	if len(f.notifier.scheduled) != 1 {
		t.Fatalf("expected one scheduled reminder, got %d", len(f.notifier.scheduled))
	}
	reminder := f.notifier.scheduled[0]
	if reminder.payload.NotificationType != "session_start_remind" {
		t.Fatalf("reminder type = %s, want session_start_remind", reminder.payload.NotificationType)
	}
	if !reminder.deliverAt.Equal(due) {
		t.Fatalf("reminder scheduled for %v, want %v", reminder.deliverAt, due)
	}
	var customer, translator bool
	for _, r := range reminder.recipients {
		if r.UserID == 100 {
			customer = true
		}
		if r.UserID == 8 {
			translator = true
		}
	}
	if !customer || !translator {
		t.Fatalf("reminder must reach both sides, got %v", reminder.recipients)
	}
}

func TestUpdateAssignWithoutTranslatorRejected(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(48*time.Hour))
	job.Status = fsm.StatusTimedout
	f := newFixture(job)

	_, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{Status: fsm.StatusAssigned}, now)
	if !errors.Is(err, fsm.ErrIllegalTransition) {
		t.Fatalf("assigning without a translator must be rejected, got %v", err)
	}

	stored, _ := f.jobs.GetByID(context.Background(), 1)
	if stored.Status != fsm.StatusTimedout {
		t.Fatalf("stored status must be untouched, got %s", stored.Status)
	}
}

func TestUpdateReassignsTranslatorByEmail(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(48*time.Hour))
	job.Status = fsm.StatusAssigned
	f := newFixture(job)
	f.assignments.assign(1, 7, now.Add(-time.Hour))

	_, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{TranslatorEmail: "eight@example.com"}, now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(changes) != 1 || changes[0].Field != "translator" || changes[0].New != "8" {
		t.Fatalf("expected a translator record for user 8, got %v", changes)
	}

	active, err := f.assignments.Active(context.Background(), 1)
	if err != nil || active.UserID != 8 {
		t.Fatalf("active assignment = %v err=%v, want translator 8", active, err)
	}
}

func TestUpdateUnknownTranslatorEmailRejected(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(48*time.Hour))
	job.Status = fsm.StatusAssigned
	f := newFixture(job)
	f.assignments.assign(1, 7, now.Add(-time.Hour))

	_, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{TranslatorEmail: "nobody@example.com"}, now)
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	active, _ := f.assignments.Active(context.Background(), 1)
	if active.UserID != 7 {
		t.Fatalf("assignment must be untouched, got %v", active)
	}
}

func TestUpdateStartedToCompletedNeedsSessionTime(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(-2*time.Hour))
	job.Status = fsm.StatusStarted
	f := newFixture(job)
	f.assignments.assign(1, 7, now.Add(-24*time.Hour))

	_, _, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		Status:        fsm.StatusCompleted,
		AdminComments: "ended on the customer's request",
	}, now)
	if !errors.Is(err, fsm.ErrIllegalTransition) {
		t.Fatalf("completing without a session time must be rejected, got %v", err)
	}
	stored, _ := f.jobs.GetByID(context.Background(), 1)
	if stored.Status != fsm.StatusStarted {
		t.Fatalf("stored status must be untouched, got %s", stored.Status)
	}

	// with the session time supplied the same move succeeds and the
	// submitted duration is recorded verbatim
	_, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{
		Status:        fsm.StatusCompleted,
		SessionTime:   "01:15:00",
		AdminComments: "ended on the customer's request",
	}, now)
	if err != nil {
		t.Fatalf("Update with session time: %v", err)
	}
	if len(changes) == 0 {
		t.Fatal("expected a status record")
	}
	stored, _ = f.jobs.GetByID(context.Background(), 1)
	if stored.Status != fsm.StatusCompleted || stored.SessionTime != "01:15:00" {
		t.Fatalf("stored = %s/%q, want completed with 01:15:00", stored.Status, stored.SessionTime)
	}
	if f.assignments.completed[1].UserID != 7 {
		t.Fatal("the bound translator must be credited")
	}
}

func TestUpdateReassignsTranslator(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	job := pendingJob(1, now.Add(48*time.Hour))
	job.Status = fsm.StatusAssigned
	f := newFixture(job)
	f.assignments.assign(1, 7, now.Add(-time.Hour))

	_, changes, err := f.svc.Update(context.Background(), 1, UpdateRequest{TranslatorID: 8}, now)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(changes) != 1 || changes[0].Field != "translator" {
		t.Fatalf("expected a translator record, got %v", changes)
	}

	active, err := f.assignments.Active(context.Background(), 1)
	if err != nil || active.UserID != 8 {
		t.Fatalf("active assignment = %v err=%v, want translator 8", active, err)
	}

	// the new translator is told, the old one released
	var newNotified, oldNotified bool
	for _, e := range f.notifier.emails {
		if e.to == "eight@example.com" {
			newNotified = true
		}
		if e.to == "seven@example.com" {
			oldNotified = true
		}
	}
	if !newNotified || !oldNotified {
		t.Fatalf("both translators must be mailed, got %v", f.notifier.emails)
	}
}
