package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/booking/matching"
	"tolkback/internal/booking/notify"
	"tolkback/internal/models"
	"tolkback/internal/timeutil"
)

// Jobs is the job persistence slice the service needs.
type Jobs interface {
	GetByID(ctx context.Context, id int64) (models.Job, error)
	Create(ctx context.Context, job models.Job) (models.Job, error)
	UpdateDetails(ctx context.Context, job models.Job) error
	SetStatus(ctx context.Context, jobID int64, from, to fsm.Status, change models.StatusChange) error
	AcceptPending(ctx context.Context, jobID, translatorID int64, now time.Time) error
	PendingJobs(ctx context.Context) ([]models.Job, error)
	ReopenAsNew(ctx context.Context, original models.Job, now, willExpireAt time.Time) (models.Job, error)
}

// Assignments is the translator-binding persistence slice.
type Assignments interface {
	Active(ctx context.Context, jobID int64) (models.TranslatorAssignment, error)
	Replace(ctx context.Context, jobID, newTranslatorID int64, now time.Time) (bool, error)
	Cancel(ctx context.Context, jobID int64, now time.Time) error
	Complete(ctx context.Context, jobID, completedBy int64, now time.Time) error
	Delete(ctx context.Context, jobID int64) error
	HasDueConflict(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error)
}

// Users reads customer and translator contact data.
type Users interface {
	Profile(ctx context.Context, userID int64) (models.TranslatorProfile, error)
	Customer(ctx context.Context, userID int64) (models.Customer, error)
	Contact(ctx context.Context, userID int64) (models.ActiveTranslator, error)
	TranslatorByEmail(ctx context.Context, email string) (models.ActiveTranslator, error)
	LanguageName(ctx context.Context, languageID int64) (string, error)
}

// Matcher computes the candidate translator set for a job.
type Matcher interface {
	PotentialTranslatorsFor(ctx context.Context, job models.Job) ([]models.TranslatorProfile, error)
}

// Notifier fans notifications out to push, SMS and email. Implementations
// never return delivery errors; a committed booking change must stand even
// when a provider is down.
type Notifier interface {
	DispatchPush(ctx context.Context, title, body string, recipients []notify.Recipient, payload notify.Payload)
	SchedulePush(ctx context.Context, title, body string, recipients []notify.Recipient, payload notify.Payload, deliverAt time.Time)
	DispatchSMS(ctx context.Context, recipients []notify.Recipient, text string) int
	DispatchEmail(ctx context.Context, to, toName, subject, body string)
}

// Service implements the booking lifecycle: creation, admin edits, accept,
// cancel, session end and reopening. Every operation takes the current time
// explicitly so the clock is controlled in tests.
type Service struct {
	jobs        Jobs
	assignments Assignments
	users       Users
	matcher     Matcher
	notifier    Notifier
	location    matching.LocationChecker
	logger      *zap.Logger
}

// NewService constructs a Service.
func NewService(jobs Jobs, assignments Assignments, users Users, matcher Matcher, notifier Notifier, location matching.LocationChecker, logger *zap.Logger) *Service {
	return &Service{
		jobs:        jobs,
		assignments: assignments,
		users:       users,
		matcher:     matcher,
		notifier:    notifier,
		location:    location,
		logger:      logger,
	}
}

// Get returns one booking by id.
func (s *Service) Get(ctx context.Context, jobID int64) (models.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// jobTypeForConsumer derives the job pool from the customer's consumer type.
// The mapping is fixed at creation and never revisited.
func jobTypeForConsumer(consumerType string) models.JobType {
	switch consumerType {
	case "rwsconsumer":
		return models.JobTypeRWS
	case "ngo":
		return models.JobTypeUnpaid
	default:
		return models.JobTypePaid
	}
}

func willExpireAt(due, createdAt time.Time) time.Time {
	return timeutil.WillExpireAt(due, createdAt)
}
