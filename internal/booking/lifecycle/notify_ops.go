package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tolkback/internal/booking/matching"
	"tolkback/internal/booking/notify"
	"tolkback/internal/models"
)

// NotifySuitableTranslators pushes a new or reopened booking to every
// eligible translator. Per-recipient checks that depend on the recipient run
// here at dispatch time: service area for physical-only jobs, an existing
// booking at the same due time, the emergency opt-out for immediate jobs and
// the earmark. excludeUserID drops one translator from the round, used when
// the round follows that translator's own cancellation.
func (s *Service) NotifySuitableTranslators(ctx context.Context, job models.Job, excludeUserID int64) {
	candidates, err := s.matcher.PotentialTranslatorsFor(ctx, job)
	if err != nil {
		s.logger.Error("candidate lookup failed", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	var recipients []notify.Recipient
	for _, p := range candidates {
		if p.UserID == excludeUserID {
			continue
		}
		if p.NotGetNotification {
			continue
		}
		if job.Immediate && p.NotGetEmergency {
			continue
		}
		if !matching.EarmarkMatch(job, p.UserID) {
			continue
		}
		ok, err := matching.PresenceMatch(ctx, s.location, job, p.UserID)
		if err != nil {
			s.logger.Error("service-area check failed",
				zap.Int64("job_id", job.ID),
				zap.Int64("translator_id", p.UserID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		free, err := matching.NotAlreadyBooked(ctx, s.assignments, job, p.UserID)
		if err != nil {
			s.logger.Error("double-booking check failed",
				zap.Int64("job_id", job.ID),
				zap.Int64("translator_id", p.UserID),
				zap.Error(err),
			)
			continue
		}
		if !free {
			continue
		}
		recipients = append(recipients, translatorRecipient(p))
	}

	if len(recipients) == 0 {
		s.logger.Info("no suitable translators to notify", zap.Int64("job_id", job.ID))
		return
	}

	language, _ := s.users.LanguageName(ctx, job.FromLanguageID)
	title := "New booking available"
	if job.Immediate {
		title = "New emergency booking"
	}
	s.notifier.DispatchPush(ctx, title, pushBodyFor(job, language), recipients, notify.Payload{
		JobID:            job.ID,
		NotificationType: notify.TypeSuitableJob,
		FromLanguageID:   job.FromLanguageID,
		Language:         language,
		Immediate:        job.Immediate,
		Duration:         job.Duration,
		Due:              job.Due,
		JobType:          string(job.JobType),
		Gender:           string(job.Gender),
		Certified:        string(job.Certified),
		PhoneJob:         job.PhoneEnabled,
		PhysicalJob:      job.PhysicalOnly,
		Town:             job.Town,
	})
}

// NotifySMSTranslators texts the candidate pool about a booking and returns
// how many messages were sent. Used when push delivery is unavailable or an
// admin forces an SMS round.
func (s *Service) NotifySMSTranslators(ctx context.Context, job models.Job) (int, error) {
	candidates, err := s.matcher.PotentialTranslatorsFor(ctx, job)
	if err != nil {
		return 0, fmt.Errorf("sms round: %w", err)
	}

	var recipients []notify.Recipient
	for _, p := range candidates {
		recipients = append(recipients, translatorRecipient(p))
	}

	language, _ := s.users.LanguageName(ctx, job.FromLanguageID)
	sent := s.notifier.DispatchSMS(ctx, recipients, smsBodyFor(job, language))
	s.logger.Info("sms round finished",
		zap.Int64("job_id", job.ID),
		zap.Int("sent", sent),
	)
	return sent, nil
}

func pushBodyFor(job models.Job, language string) string {
	due := job.Due.Format("2006-01-02 15:04")
	if job.Immediate {
		return fmt.Sprintf("You have a new emergency %s booking, %s", language, durationText(job.Duration))
	}
	if job.PhysicalJobOnly() {
		return fmt.Sprintf("You have a new %s booking in %s on %s, %s",
			language, job.Town, due, durationText(job.Duration))
	}
	return fmt.Sprintf("You have a new %s phone booking on %s, %s",
		language, due, durationText(job.Duration))
}

// smsBodyFor renders the text-message template: on-site bookings carry the
// town and the booking reference, phone bookings the language instead.
func smsBodyFor(job models.Job, language string) string {
	due := job.Due.Format("2006-01-02 15:04")
	if job.PhysicalJobOnly() {
		return fmt.Sprintf(
			"You have a new on-site interpretation booking in %s at %s for %s. Reference: %s. Open the app to accept.",
			job.Town, due, durationText(job.Duration), job.Reference,
		)
	}
	return fmt.Sprintf(
		"You have a new %s phone interpretation booking at %s for %s. Open the app to accept.",
		language, due, durationText(job.Duration),
	)
}

// durationText renders a minute count as "N min", "N hours" or
// "N hours M min".
func durationText(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%d min", m)
	case h == 1 && m == 0:
		return "1 hour"
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	case h == 1:
		return fmt.Sprintf("1 hour %d min", m)
	default:
		return fmt.Sprintf("%d hours %d min", h, m)
	}
}

func translatorRecipient(p models.TranslatorProfile) notify.Recipient {
	return notify.Recipient{
		UserID:             p.UserID,
		Email:              p.Email,
		Phone:              p.Phone,
		NotGetNighttime:    p.NotGetNighttime,
		NotGetNotification: p.NotGetNotification,
	}
}
