package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/booking/notify"
	"tolkback/internal/models"
)

// UpdateRequest is an admin edit of an existing booking. Zero-valued fields
// are left unchanged, which also makes a replay of the same request a no-op.
// A reassignment may name the translator by id or, when the id is absent, by
// email. SessionTime is mandatory when the target status is completed.
type UpdateRequest struct {
	FromLanguageID  int64      `json:"from_language_id,omitempty"`
	DueDate         string     `json:"due_date,omitempty"`
	DueTime         string     `json:"due_time,omitempty"`
	TranslatorID    int64      `json:"translator_id,omitempty"`
	TranslatorEmail string     `json:"translator_email,omitempty"`
	Status          fsm.Status `json:"status,omitempty"`
	SessionTime     string     `json:"session_time,omitempty"`
	AdminComments   string     `json:"admin_comments,omitempty"`
	Reference       string     `json:"reference,omitempty"`
}

// Update applies an admin edit in a fixed order: language, due time,
// translator reassignment, then status. Each applied change is returned as an
// old/new record. Change notices are suppressed once the session time has
// passed; an illegal status target rejects the whole status step with
// fsm.ErrIllegalTransition and leaves the stored status untouched.
func (s *Service) Update(ctx context.Context, jobID int64, req UpdateRequest, now time.Time) (models.Job, []models.ChangeRecord, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return models.Job{}, nil, fmt.Errorf("update booking: %w", err)
	}

	var changes []models.ChangeRecord
	detailsDirty := false

	if req.AdminComments != "" && req.AdminComments != job.AdminComments {
		job.AdminComments = req.AdminComments
		detailsDirty = true
	}
	if req.Reference != "" && req.Reference != job.Reference {
		job.Reference = req.Reference
		detailsDirty = true
	}

	langChanged, err := s.applyLanguageChange(ctx, &job, req, &changes)
	if err != nil {
		return models.Job{}, nil, err
	}
	detailsDirty = detailsDirty || langChanged

	dueChanged, err := s.applyDueChange(&job, req, now, &changes)
	if err != nil {
		return models.Job{}, nil, err
	}
	detailsDirty = detailsDirty || dueChanged

	if detailsDirty {
		if err := s.jobs.UpdateDetails(ctx, job); err != nil {
			return models.Job{}, nil, fmt.Errorf("update booking: %w", err)
		}
	}

	translatorID, err := s.resolveTranslatorID(ctx, req)
	if err != nil {
		return models.Job{}, nil, err
	}

	translatorChanged, oldTranslatorID, err := s.applyTranslatorChange(ctx, job, translatorID, now, &changes)
	if err != nil {
		return models.Job{}, nil, err
	}

	if err := s.applyStatusChange(ctx, &job, req, translatorID, now, &changes); err != nil {
		return models.Job{}, nil, err
	}

	// notices are pointless once the session time has passed
	if job.Due.After(now) {
		if langChanged || dueChanged {
			s.sendChangeNotices(ctx, job, changes)
		}
		if translatorChanged {
			s.sendReassignmentNotices(ctx, job, oldTranslatorID, translatorID)
		}
	}

	if len(changes) > 0 {
		s.logger.Info("booking updated",
			zap.Int64("job_id", jobID),
			zap.Int("changes", len(changes)),
		)
	}
	return job, changes, nil
}

func (s *Service) applyLanguageChange(ctx context.Context, job *models.Job, req UpdateRequest, changes *[]models.ChangeRecord) (bool, error) {
	if req.FromLanguageID == 0 || req.FromLanguageID == job.FromLanguageID {
		return false, nil
	}
	oldName, err := s.users.LanguageName(ctx, job.FromLanguageID)
	if err != nil {
		return false, fmt.Errorf("update booking: %w", err)
	}
	newName, err := s.users.LanguageName(ctx, req.FromLanguageID)
	if err != nil {
		return false, fmt.Errorf("update booking: %w", err)
	}
	*changes = append(*changes, models.ChangeRecord{Field: "lang", Old: oldName, New: newName})
	job.FromLanguageID = req.FromLanguageID
	return true, nil
}

func (s *Service) applyDueChange(job *models.Job, req UpdateRequest, now time.Time, changes *[]models.ChangeRecord) (bool, error) {
	if req.DueDate == "" || req.DueTime == "" {
		return false, nil
	}
	due, err := time.Parse(dueLayout, req.DueDate+" "+req.DueTime)
	if err != nil {
		return false, models.NewValidationError("due_date", "invalid date or time")
	}
	if due.Equal(job.Due) {
		return false, nil
	}
	*changes = append(*changes, models.ChangeRecord{
		Field: "due",
		Old:   job.Due.Format("2006-01-02 15:04"),
		New:   due.Format("2006-01-02 15:04"),
	})
	job.Due = due
	job.WillExpireAt = willExpireAt(due, now)
	return true, nil
}

// resolveTranslatorID turns the request's translator reference into a user id:
// the id when given, otherwise an email lookup. Zero means no reassignment was
// requested; an unknown email surfaces models.ErrUserNotFound.
func (s *Service) resolveTranslatorID(ctx context.Context, req UpdateRequest) (int64, error) {
	if req.TranslatorID != 0 {
		return req.TranslatorID, nil
	}
	if req.TranslatorEmail == "" {
		return 0, nil
	}
	contact, err := s.users.TranslatorByEmail(ctx, req.TranslatorEmail)
	if err != nil {
		return 0, fmt.Errorf("update booking: %w", err)
	}
	return contact.UserID, nil
}

func (s *Service) applyTranslatorChange(ctx context.Context, job models.Job, translatorID int64, now time.Time, changes *[]models.ChangeRecord) (bool, int64, error) {
	if translatorID == 0 {
		return false, 0, nil
	}

	var oldTranslatorID int64
	current, err := s.assignments.Active(ctx, job.ID)
	switch {
	case errors.Is(err, models.ErrNoActiveAssignment):
	case err != nil:
		return false, 0, fmt.Errorf("update booking: %w", err)
	default:
		oldTranslatorID = current.UserID
	}

	changed, err := s.assignments.Replace(ctx, job.ID, translatorID, now)
	if err != nil {
		return false, 0, fmt.Errorf("update booking: %w", err)
	}
	if !changed {
		return false, 0, nil
	}

	*changes = append(*changes, models.ChangeRecord{
		Field: "translator",
		Old:   strconv.FormatInt(oldTranslatorID, 10),
		New:   strconv.FormatInt(translatorID, 10),
	})
	return true, oldTranslatorID, nil
}

func (s *Service) applyStatusChange(ctx context.Context, job *models.Job, req UpdateRequest, translatorID int64, now time.Time, changes *[]models.ChangeRecord) error {
	if req.Status == "" || req.Status == job.Status {
		return nil
	}
	if !fsm.Known(req.Status) {
		return fmt.Errorf("%w: unknown status %q", fsm.ErrIllegalTransition, req.Status)
	}
	if err := fsm.Validate(job.Status, req.Status, job.AdminComments); err != nil {
		return err
	}

	from := job.Status
	change := models.StatusChange{}
	if req.AdminComments != "" {
		comments := req.AdminComments
		change.AdminComments = &comments
	}

	switch req.Status {
	case fsm.StatusPending:
		// back on the market: the offer window restarts from now
		createdAt := now
		expires := willExpireAt(job.Due, now)
		change.CreatedAt = &createdAt
		change.WillExpireAt = &expires
		job.CreatedAt = createdAt
		job.WillExpireAt = expires
	case fsm.StatusAssigned:
		if translatorID == 0 {
			return fmt.Errorf("%w: %s -> %s requires a translator", fsm.ErrIllegalTransition, from, req.Status)
		}
	case fsm.StatusWithdrawBefore24, fsm.StatusWithdrawAfter24:
		withdrawAt := now
		change.WithdrawAt = &withdrawAt
		job.WithdrawAt = &withdrawAt
	case fsm.StatusCompleted:
		if req.SessionTime == "" {
			return fmt.Errorf("%w: %s -> %s requires a session time", fsm.ErrIllegalTransition, from, req.Status)
		}
		customer, err := s.users.Customer(ctx, job.UserID)
		if err != nil || customer.Email == "" {
			return fmt.Errorf("%w: %s -> %s requires a customer email", fsm.ErrIllegalTransition, from, req.Status)
		}
		sessionTime := req.SessionTime
		endAt := now
		change.SessionTime = &sessionTime
		change.EndAt = &endAt
		job.SessionTime = sessionTime
		job.EndAt = &endAt
	}

	if err := s.jobs.SetStatus(ctx, job.ID, from, req.Status, change); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	job.Status = req.Status
	*changes = append(*changes, models.ChangeRecord{
		Field: "status",
		Old:   string(from),
		New:   string(req.Status),
	})

	switch req.Status {
	case fsm.StatusPending:
		// renotify the pool, e.g. an admin resending a timed-out booking
		s.NotifySuitableTranslators(ctx, *job, 0)
	case fsm.StatusAssigned:
		s.sendAcceptanceNotices(ctx, *job, translatorID)
	case fsm.StatusWithdrawBefore24, fsm.StatusWithdrawAfter24:
		s.releaseAfterWithdrawal(ctx, *job, now)
	case fsm.StatusCompleted:
		if assignment, err := s.assignments.Active(ctx, job.ID); err == nil {
			if err := s.assignments.Complete(ctx, job.ID, assignment.UserID, now); err != nil {
				return fmt.Errorf("update booking: %w", err)
			}
			s.sendSessionEndedNotices(ctx, *job, assignment.UserID)
		}
	}
	return nil
}

func (s *Service) releaseAfterWithdrawal(ctx context.Context, job models.Job, now time.Time) {
	assignment, err := s.assignments.Active(ctx, job.ID)
	if err != nil {
		return
	}
	if err := s.assignments.Cancel(ctx, job.ID, now); err != nil {
		s.logger.Error("assignment release failed", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	s.notifyTranslatorCancelled(ctx, job, assignment.UserID)
}

func (s *Service) sendChangeNotices(ctx context.Context, job models.Job, changes []models.ChangeRecord) {
	body := fmt.Sprintf("Booking #%d has been changed:", job.ID)
	for _, c := range changes {
		if c.Field == "lang" || c.Field == "due" {
			body += fmt.Sprintf(" %s %s -> %s.", c.Field, c.Old, c.New)
		}
	}
	subject := fmt.Sprintf("Changed booking #%d", job.ID)

	if customer, err := s.users.Customer(ctx, job.UserID); err == nil {
		s.notifier.DispatchEmail(ctx, customer.Email, customer.Name, subject, body)
	}
	if assignment, err := s.assignments.Active(ctx, job.ID); err == nil {
		if contact, err := s.users.Contact(ctx, assignment.UserID); err == nil {
			s.notifier.DispatchEmail(ctx, contact.Email, contact.Name, subject, body)
		}
	}
}

func (s *Service) sendReassignmentNotices(ctx context.Context, job models.Job, oldTranslatorID, newTranslatorID int64) {
	subject := fmt.Sprintf("Changed booking #%d", job.ID)
	due := job.Due.Format("2006-01-02 15:04")

	if customer, err := s.users.Customer(ctx, job.UserID); err == nil {
		s.notifier.DispatchEmail(ctx, customer.Email, customer.Name, subject,
			fmt.Sprintf("A new translator has been assigned to your booking #%d on %s.", job.ID, due))
	}
	if contact, err := s.users.Contact(ctx, newTranslatorID); err == nil {
		s.notifier.DispatchEmail(ctx, contact.Email, contact.Name, subject,
			fmt.Sprintf("You have been assigned booking #%d on %s.", job.ID, due))
		s.notifier.DispatchPush(ctx, "Booking assigned",
			fmt.Sprintf("You have been assigned booking #%d on %s.", job.ID, due),
			[]notify.Recipient{contactRecipient(contact)},
			notify.Payload{JobID: job.ID, NotificationType: notify.TypeJobAccepted, Due: job.Due},
		)
	}
	if oldTranslatorID != 0 {
		if contact, err := s.users.Contact(ctx, oldTranslatorID); err == nil {
			s.notifier.DispatchEmail(ctx, contact.Email, contact.Name, subject,
				fmt.Sprintf("You are no longer assigned to booking #%d on %s.", job.ID, due))
		}
	}
}
