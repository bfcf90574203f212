package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/booking/notify"
	"tolkback/internal/models"
)

// cancellationBoundary separates a free customer withdrawal from a charged
// one, and a permitted translator cancellation from a rejected one.
const cancellationBoundary = 24 * time.Hour

// Accept books a pending job for a translator. The status flip is
// compare-and-set, so of two racing accepts exactly one succeeds; the loser
// gets models.ErrJobTaken. A translator already booked at the same due time
// gets models.ErrAlreadyBooked before anything is written.
func (s *Service) Accept(ctx context.Context, jobID, translatorID int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("accept booking: %w", err)
	}
	if job.Status != fsm.StatusPending {
		return models.Job{}, models.ErrJobTaken
	}

	busy, err := s.assignments.HasDueConflict(ctx, translatorID, job.Due, job.ID)
	if err != nil {
		return models.Job{}, fmt.Errorf("accept booking: %w", err)
	}
	if busy {
		return models.Job{}, models.ErrAlreadyBooked
	}

	if err := s.jobs.AcceptPending(ctx, jobID, translatorID, now); err != nil {
		return models.Job{}, err
	}
	job.Status = fsm.StatusAssigned

	s.logger.Info("booking accepted",
		zap.Int64("job_id", jobID),
		zap.Int64("translator_id", translatorID),
	)
	s.sendAcceptanceNotices(ctx, job, translatorID)
	return job, nil
}

func (s *Service) sendAcceptanceNotices(ctx context.Context, job models.Job, translatorID int64) {
	language, _ := s.users.LanguageName(ctx, job.FromLanguageID)
	customer, err := s.users.Customer(ctx, job.UserID)
	if err != nil {
		s.logger.Error("acceptance notice skipped", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Booking confirmation for booking #%d", job.ID)
	body := fmt.Sprintf(
		"Your %s interpretation booking #%d on %s has been accepted by a translator. "+
			"You will find the details on your bookings page.",
		language, job.ID, job.Due.Format("2006-01-02 15:04"),
	)
	s.notifier.DispatchEmail(ctx, customer.Email, customer.Name, subject, body)

	s.notifier.DispatchPush(ctx,
		"Booking accepted",
		fmt.Sprintf("Your booking #%d on %s was accepted.", job.ID, job.Due.Format("2006-01-02 15:04")),
		[]notify.Recipient{customerRecipient(customer)},
		notify.Payload{
			JobID:            job.ID,
			NotificationType: notify.TypeJobAccepted,
			Language:         language,
			Due:              job.Due,
		},
	)

	s.scheduleSessionStartReminders(ctx, job, translatorID)
}

// scheduleSessionStartReminders queues a reminder for both sides of a freshly
// bound booking, delivered at the session's due time through the deferred
// push queue.
func (s *Service) scheduleSessionStartReminders(ctx context.Context, job models.Job, translatorID int64) {
	var recipients []notify.Recipient
	if customer, err := s.users.Customer(ctx, job.UserID); err == nil {
		recipients = append(recipients, customerRecipient(customer))
	}
	if contact, err := s.users.Contact(ctx, translatorID); err == nil {
		recipients = append(recipients, contactRecipient(contact))
	}
	if len(recipients) == 0 {
		return
	}
	s.notifier.SchedulePush(ctx,
		"Session reminder",
		fmt.Sprintf("Your interpretation session for booking #%d starts at %s.",
			job.ID, job.Due.Format("2006-01-02 15:04")),
		recipients,
		notify.Payload{
			JobID:            job.ID,
			NotificationType: notify.TypeSessionStartRemind,
			Due:              job.Due,
		},
		job.Due,
	)
}

// CancelByCustomer withdraws a booking on the customer's request. More than a
// day ahead of the session the withdrawal is free; closer than that it is
// charged, and the two cases land in different statuses. The bound translator,
// if any, is released and notified.
func (s *Service) CancelByCustomer(ctx context.Context, jobID int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}

	target := fsm.StatusWithdrawAfter24
	if job.Due.Sub(now) >= cancellationBoundary {
		target = fsm.StatusWithdrawBefore24
	}
	if err := fsm.Validate(job.Status, target, job.AdminComments); err != nil {
		return models.Job{}, err
	}

	withdrawAt := now
	if err := s.jobs.SetStatus(ctx, jobID, job.Status, target, models.StatusChange{WithdrawAt: &withdrawAt}); err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}

	assignment, err := s.assignments.Active(ctx, jobID)
	switch {
	case errors.Is(err, models.ErrNoActiveAssignment):
		// pending job, nobody to release
	case err != nil:
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	default:
		if err := s.assignments.Cancel(ctx, jobID, now); err != nil {
			return models.Job{}, fmt.Errorf("cancel booking: %w", err)
		}
		s.notifyTranslatorCancelled(ctx, job, assignment.UserID)
	}

	job.Status = target
	job.WithdrawAt = &withdrawAt
	s.logger.Info("booking withdrawn by customer",
		zap.Int64("job_id", jobID),
		zap.String("status", string(target)),
	)
	return job, nil
}

func (s *Service) notifyTranslatorCancelled(ctx context.Context, job models.Job, translatorID int64) {
	contact, err := s.users.Contact(ctx, translatorID)
	if err != nil {
		s.logger.Error("cancellation notice skipped", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	s.notifier.DispatchPush(ctx,
		"Booking cancelled",
		fmt.Sprintf("The customer cancelled booking #%d on %s. Check your bookings for details.",
			job.ID, job.Due.Format("2006-01-02 15:04")),
		[]notify.Recipient{contactRecipient(contact)},
		notify.Payload{
			JobID:            job.ID,
			NotificationType: notify.TypeJobCancelled,
			Due:              job.Due,
		},
	)
}

// CancelByTranslator lets the bound translator back out of a booking more
// than a day ahead: the job reopens to the pool with a fresh expiry window
// and the rest of the candidates are renotified. Within a day the request is
// rejected with models.ErrLateCancellation and the booking stays untouched.
func (s *Service) CancelByTranslator(ctx context.Context, jobID, translatorID int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}
	assignment, err := s.assignments.Active(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}
	if assignment.UserID != translatorID {
		return models.Job{}, models.ErrNoActiveAssignment
	}

	if job.Due.Sub(now) <= cancellationBoundary {
		return models.Job{}, models.ErrLateCancellation
	}

	expires := willExpireAt(job.Due, now)
	if err := s.jobs.SetStatus(ctx, jobID, job.Status, fsm.StatusPending, models.StatusChange{WillExpireAt: &expires}); err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}
	if err := s.assignments.Delete(ctx, jobID); err != nil {
		return models.Job{}, fmt.Errorf("cancel booking: %w", err)
	}

	job.Status = fsm.StatusPending
	job.WillExpireAt = expires

	s.logger.Info("booking released by translator",
		zap.Int64("job_id", jobID),
		zap.Int64("translator_id", translatorID),
	)

	s.notifyCustomerCancelled(ctx, job)
	s.NotifySuitableTranslators(ctx, job, translatorID)
	return job, nil
}

func (s *Service) notifyCustomerCancelled(ctx context.Context, job models.Job) {
	customer, err := s.users.Customer(ctx, job.UserID)
	if err != nil {
		s.logger.Error("cancellation notice skipped", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	s.notifier.DispatchPush(ctx,
		"Translator cancelled",
		fmt.Sprintf("Your translator cancelled booking #%d on %s. We are looking for a replacement.",
			job.ID, job.Due.Format("2006-01-02 15:04")),
		[]notify.Recipient{customerRecipient(customer)},
		notify.Payload{
			JobID:            job.ID,
			NotificationType: notify.TypeJobCancelled,
			Due:              job.Due,
		},
	)
}

// End closes a started session: the job moves to completed with the session
// length recorded, the assignment is marked finished by whoever ended it, and
// both parties get the session summary mail, the customer's as invoice basis
// and the translator's as payroll basis.
func (s *Service) End(ctx context.Context, jobID, endedBy int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("end session: %w", err)
	}
	if job.Status != fsm.StatusStarted {
		return models.Job{}, fmt.Errorf("%w: %s -> %s", fsm.ErrIllegalTransition, job.Status, fsm.StatusCompleted)
	}
	assignment, err := s.assignments.Active(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("end session: %w", err)
	}

	sessionTime := formatSessionTime(job.Due, now)
	endAt := now
	if err := s.jobs.SetStatus(ctx, jobID, job.Status, fsm.StatusCompleted, models.StatusChange{
		SessionTime: &sessionTime,
		EndAt:       &endAt,
	}); err != nil {
		return models.Job{}, fmt.Errorf("end session: %w", err)
	}
	if err := s.assignments.Complete(ctx, jobID, endedBy, now); err != nil {
		return models.Job{}, fmt.Errorf("end session: %w", err)
	}

	job.Status = fsm.StatusCompleted
	job.SessionTime = sessionTime
	job.EndAt = &endAt

	s.logger.Info("session ended",
		zap.Int64("job_id", jobID),
		zap.Int64("ended_by", endedBy),
		zap.String("session_time", sessionTime),
	)
	s.sendSessionEndedNotices(ctx, job, assignment.UserID)
	return job, nil
}

func (s *Service) sendSessionEndedNotices(ctx context.Context, job models.Job, translatorID int64) {
	duration := prettySessionTime(job.SessionTime)
	subject := fmt.Sprintf("Information about your session (booking #%d)", job.ID)

	if customer, err := s.users.Customer(ctx, job.UserID); err == nil {
		body := fmt.Sprintf(
			"Your interpretation session for booking #%d lasted %s. "+
				"This time is the basis for your invoice.",
			job.ID, duration,
		)
		s.notifier.DispatchEmail(ctx, customer.Email, customer.Name, subject, body)
	} else {
		s.logger.Error("session-ended notice skipped", zap.Int64("job_id", job.ID), zap.Error(err))
	}

	if contact, err := s.users.Contact(ctx, translatorID); err == nil {
		body := fmt.Sprintf(
			"Your interpretation session for booking #%d lasted %s. "+
				"This time is the basis for your payroll.",
			job.ID, duration,
		)
		s.notifier.DispatchEmail(ctx, contact.Email, contact.Name, subject, body)
	} else {
		s.logger.Error("session-ended notice skipped", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

// CustomerNotCall closes a started phone session the customer never joined.
// The translator is still credited, so the assignment completes normally.
func (s *Service) CustomerNotCall(ctx context.Context, jobID int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("close session: %w", err)
	}
	if job.Status != fsm.StatusStarted {
		return models.Job{}, fmt.Errorf("%w: %s -> %s", fsm.ErrIllegalTransition, job.Status, fsm.StatusNotCarriedOutCustomer)
	}
	assignment, err := s.assignments.Active(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("close session: %w", err)
	}

	endAt := now
	if err := s.jobs.SetStatus(ctx, jobID, job.Status, fsm.StatusNotCarriedOutCustomer, models.StatusChange{EndAt: &endAt}); err != nil {
		return models.Job{}, fmt.Errorf("close session: %w", err)
	}
	if err := s.assignments.Complete(ctx, jobID, assignment.UserID, now); err != nil {
		return models.Job{}, fmt.Errorf("close session: %w", err)
	}

	job.Status = fsm.StatusNotCarriedOutCustomer
	job.EndAt = &endAt
	s.logger.Info("session closed, customer did not call", zap.Int64("job_id", jobID))
	return job, nil
}

// Reopen puts a closed booking back on the market. A timed-out booking is
// cloned into a fresh pending job so its timeout history survives; any other
// closed booking is reset in place with a fresh created-at and expiry window.
// A still-bound translator is released first, and either way the candidate
// pool is renotified. Reopening is an admin action and does not consult the
// admin-edit transition table.
func (s *Service) Reopen(ctx context.Context, jobID int64, now time.Time) (models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("reopen booking: %w", err)
	}

	if _, err := s.assignments.Active(ctx, jobID); err == nil {
		if err := s.assignments.Cancel(ctx, jobID, now); err != nil {
			return models.Job{}, fmt.Errorf("reopen booking: %w", err)
		}
	} else if !errors.Is(err, models.ErrNoActiveAssignment) {
		return models.Job{}, fmt.Errorf("reopen booking: %w", err)
	}

	expires := willExpireAt(job.Due, now)
	reopened := job
	if job.Status == fsm.StatusTimedout {
		reopened, err = s.jobs.ReopenAsNew(ctx, job, now, expires)
		if err != nil {
			return models.Job{}, fmt.Errorf("reopen booking: %w", err)
		}
	} else {
		createdAt := now
		if err := s.jobs.SetStatus(ctx, jobID, job.Status, fsm.StatusPending, models.StatusChange{
			CreatedAt:    &createdAt,
			WillExpireAt: &expires,
		}); err != nil {
			return models.Job{}, fmt.Errorf("reopen booking: %w", err)
		}
		reopened.Status = fsm.StatusPending
		reopened.CreatedAt = createdAt
		reopened.WillExpireAt = expires
	}

	s.logger.Info("booking reopened",
		zap.Int64("job_id", jobID),
		zap.Int64("reopened_as", reopened.ID),
	)
	s.NotifySuitableTranslators(ctx, reopened, 0)
	return reopened, nil
}

// formatSessionTime renders the elapsed session length as HH:MM:SS.
func formatSessionTime(due, endedAt time.Time) string {
	d := endedAt.Sub(due)
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// prettySessionTime turns HH:MM:SS into a sentence fragment like
// "1 hour 30 minutes".
func prettySessionTime(sessionTime string) string {
	var h, m, sec int
	if _, err := fmt.Sscanf(sessionTime, "%d:%d:%d", &h, &m, &sec); err != nil {
		return sessionTime
	}
	switch {
	case h == 0:
		return fmt.Sprintf("%d minutes", m)
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%d hours %d minutes", h, m)
	}
}

func customerRecipient(c models.Customer) notify.Recipient {
	return notify.Recipient{
		UserID:             c.ID,
		Email:              c.Email,
		Phone:              c.Phone,
		NotGetNighttime:    c.NotGetNighttime,
		NotGetNotification: c.NotGetNotification,
	}
}

func contactRecipient(t models.ActiveTranslator) notify.Recipient {
	return notify.Recipient{
		UserID:             t.UserID,
		Email:              t.Email,
		Phone:              t.Phone,
		NotGetNighttime:    t.NotGetNighttime,
		NotGetNotification: t.NotGetNotification,
	}
}
