package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/models"
)

// Store is the read-only persistence slice the engine needs.
type Store interface {
	// PendingJobs returns every open job (status pending).
	PendingJobs(ctx context.Context) ([]models.Job, error)
	// Profile returns the matching attributes for one translator.
	Profile(ctx context.Context, userID int64) (models.TranslatorProfile, error)
	// CandidateProfiles returns every active translator of the given pool.
	CandidateProfiles(ctx context.Context, translatorType models.TranslatorType) ([]models.TranslatorProfile, error)
	// BlacklistSet returns the translator ids blacklisted by a customer.
	BlacklistSet(ctx context.Context, customerID int64) (map[int64]struct{}, error)
}

// Engine computes which open jobs a translator may take and which translators
// a job should be offered to. Both queries are pure reads.
type Engine struct {
	store    Store
	location LocationChecker
	logger   *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(store Store, location LocationChecker, logger *zap.Logger) *Engine {
	return &Engine{store: store, location: location, logger: logger}
}

// PotentialJobsFor returns the open jobs the translator is eligible to accept.
// The job pool is resolved from the translator's own type; language, gender
// and certification are matched per filter; physical-only jobs additionally
// require service-area compatibility, and jobs earmarked for someone else are
// excluded.
func (e *Engine) PotentialJobsFor(ctx context.Context, translatorID int64) ([]models.Job, error) {
	profile, err := e.store.Profile(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("potential jobs: %w", err)
	}
	jobType, ok := JobTypeFor(profile.TranslatorType)
	if !ok {
		return nil, fmt.Errorf("potential jobs: unknown translator type %q", profile.TranslatorType)
	}

	open, err := e.store.PendingJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("potential jobs: %w", err)
	}

	var out []models.Job
	for _, job := range open {
		if job.Status != fsm.StatusPending || job.JobType != jobType {
			continue
		}
		if !LanguageMatch(job, profile) || !GenderMatch(job, profile) || !CertificationMatch(job, profile) {
			continue
		}
		if !EarmarkMatch(job, translatorID) {
			continue
		}
		ok, err := PresenceMatch(ctx, e.location, job, translatorID)
		if err != nil {
			return nil, fmt.Errorf("potential jobs: %w", err)
		}
		if !ok {
			continue
		}
		out = append(out, job)
	}

	e.logger.Debug("potential jobs resolved",
		zap.Int64("translator_id", translatorID),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// PotentialTranslatorsFor returns the candidate set a job should be offered
// to: right pool, acceptable certification level, gender and language match,
// not blacklisted by the customer. Service-area and double-booking checks are
// deliberately left to dispatch time since they depend on the recipient.
func (e *Engine) PotentialTranslatorsFor(ctx context.Context, job models.Job) ([]models.TranslatorProfile, error) {
	translatorType, ok := TranslatorTypeFor(job.JobType)
	if !ok {
		return nil, fmt.Errorf("potential translators: unknown job type %q", job.JobType)
	}

	candidates, err := e.store.CandidateProfiles(ctx, translatorType)
	if err != nil {
		return nil, fmt.Errorf("potential translators: %w", err)
	}
	blacklisted, err := e.store.BlacklistSet(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("potential translators: %w", err)
	}

	var out []models.TranslatorProfile
	for _, p := range candidates {
		if !CertificationMatch(job, p) || !GenderMatch(job, p) || !LanguageMatch(job, p) {
			continue
		}
		if !BlacklistMatch(p, blacklisted) {
			continue
		}
		out = append(out, p)
	}

	e.logger.Debug("potential translators resolved",
		zap.Int64("job_id", job.ID),
		zap.Int("count", len(out)),
	)
	return out, nil
}
