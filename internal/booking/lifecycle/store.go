package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/models"
)

// dueLayout is the wire format the booking form submits dates in.
const dueLayout = "01/02/2006 15:04"

// immediateLeadTime is how far ahead an emergency booking is due.
const immediateLeadTime = 5 * time.Minute

// StoreRequest is the input to Store.
type StoreRequest struct {
	UserID         int64  `json:"user_id"`
	FromLanguageID int64  `json:"from_language_id"`
	Immediate      bool   `json:"immediate"`
	DueDate        string `json:"due_date"`
	DueTime        string `json:"due_time"`
	Duration       int    `json:"duration"`
	Gender         string `json:"gender"`
	Certified      string `json:"certified"`
	PhoneEnabled   bool   `json:"customer_phone_type"`
	PhysicalOnly   bool   `json:"customer_physical_type"`
	Town           string `json:"town"`
	Address        string `json:"address"`
	Instructions   string `json:"instructions"`
	Reference      string `json:"reference"`

	SpecificTranslatorID int64 `json:"specific_translator_id"`
	ByAdmin              bool  `json:"by_admin"`
}

// Store validates and creates a new pending booking. The job pool is derived
// from the customer's consumer type and the expiry window from how far ahead
// the session is due. Immediate bookings get a short synthetic due time and
// are forced to phone.
func (s *Service) Store(ctx context.Context, req StoreRequest, now time.Time) (models.Job, error) {
	customer, err := s.users.Customer(ctx, req.UserID)
	if err != nil {
		return models.Job{}, fmt.Errorf("store booking: %w", err)
	}

	if req.FromLanguageID == 0 {
		return models.Job{}, models.NewValidationError("from_language_id", "you must fill in all fields")
	}

	var due time.Time
	phoneEnabled := req.PhoneEnabled
	if req.Immediate {
		due = now.Add(immediateLeadTime)
		phoneEnabled = true
	} else {
		if req.DueDate == "" || req.DueTime == "" {
			return models.Job{}, models.NewValidationError("due_date", "you must fill in all fields")
		}
		if req.Duration == 0 {
			return models.Job{}, models.NewValidationError("duration", "you must fill in all fields")
		}
		due, err = time.Parse(dueLayout, req.DueDate+" "+req.DueTime)
		if err != nil {
			return models.Job{}, models.NewValidationError("due_date", "invalid date or time")
		}
		if due.Before(now) {
			return models.Job{}, models.NewValidationError("due_date", "can't create booking in past")
		}
	}

	job := models.Job{
		UserID:               customer.ID,
		UserEmail:            customer.Email,
		Status:               fsm.StatusPending,
		FromLanguageID:       req.FromLanguageID,
		Immediate:            req.Immediate,
		Due:                  due,
		Duration:             req.Duration,
		Gender:               models.Gender(req.Gender),
		Certified:            models.Certification(req.Certified),
		JobType:              jobTypeForConsumer(customer.ConsumerType),
		PhoneEnabled:         phoneEnabled,
		PhysicalOnly:         req.PhysicalOnly,
		Town:                 req.Town,
		Address:              req.Address,
		Instructions:         req.Instructions,
		Reference:            req.Reference,
		SpecificTranslatorID: req.SpecificTranslatorID,
		CreatedAt:            now,
		WillExpireAt:         willExpireAt(due, now),
		ByAdmin:              req.ByAdmin,
	}

	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		return models.Job{}, fmt.Errorf("store booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.Int64("job_id", created.ID),
		zap.Int64("user_id", created.UserID),
		zap.String("job_type", string(created.JobType)),
		zap.Bool("immediate", created.Immediate),
		zap.Time("due", created.Due),
	)
	return created, nil
}
