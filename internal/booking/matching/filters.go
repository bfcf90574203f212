package matching

import (
	"context"
	"time"

	"tolkback/internal/models"
)

// LocationChecker is the opaque town-compatibility predicate supplied by the
// location collaborator.
type LocationChecker interface {
	SameServiceArea(ctx context.Context, customerID, translatorID int64) (bool, error)
}

// ConflictChecker answers whether a translator already holds an active
// assignment due at the given time. The conflict rule is exact due-timestamp
// equality, matching the accept-time double-booking check.
type ConflictChecker interface {
	HasDueConflict(ctx context.Context, translatorID int64, due time.Time, excludeJobID int64) (bool, error)
}

// TranslatorTypeFor maps a job type to the one translator pool allowed to
// serve it. There is no fallback between pools.
func TranslatorTypeFor(jobType models.JobType) (models.TranslatorType, bool) {
	switch jobType {
	case models.JobTypePaid:
		return models.TranslatorProfessional, true
	case models.JobTypeRWS:
		return models.TranslatorRWS, true
	case models.JobTypeUnpaid:
		return models.TranslatorVolunteer, true
	}
	return "", false
}

// JobTypeFor is the reverse mapping, used when listing the open jobs a
// translator may see.
func JobTypeFor(translatorType models.TranslatorType) (models.JobType, bool) {
	switch translatorType {
	case models.TranslatorProfessional:
		return models.JobTypePaid, true
	case models.TranslatorRWS:
		return models.JobTypeRWS, true
	case models.TranslatorVolunteer:
		return models.JobTypeUnpaid, true
	}
	return "", false
}

// AcceptableLevels returns the translator levels that satisfy a certification
// tier. An absent requirement accepts every known level.
func AcceptableLevels(cert models.Certification) []models.TranslatorLevel {
	switch cert {
	case models.CertificationBoth:
		return []models.TranslatorLevel{
			models.LevelCertified,
			models.LevelCertifiedLaw,
			models.LevelCertifiedHealth,
		}
	case models.CertificationLaw:
		return []models.TranslatorLevel{models.LevelCertifiedLaw}
	case models.CertificationHealth:
		return []models.TranslatorLevel{models.LevelCertifiedHealth}
	case models.CertificationNormal:
		return []models.TranslatorLevel{
			models.LevelLayman,
			models.LevelTranslationCourse,
		}
	default:
		return models.AllTranslatorLevels
	}
}

// TypeMatch requires the translator's pool to equal the job's pool.
func TypeMatch(job models.Job, p models.TranslatorProfile) bool {
	want, ok := TranslatorTypeFor(job.JobType)
	return ok && p.TranslatorType == want
}

// CertificationMatch requires the translator to hold at least one level
// accepted by the job's certification tier.
func CertificationMatch(job models.Job, p models.TranslatorProfile) bool {
	return p.HasLevel(AcceptableLevels(job.Certified))
}

// GenderMatch accepts any translator when the job has no gender requirement.
func GenderMatch(job models.Job, p models.TranslatorProfile) bool {
	return job.Gender == models.GenderAny || job.Gender == p.Gender
}

// LanguageMatch requires the job's language in the translator's spoken set.
func LanguageMatch(job models.Job, p models.TranslatorProfile) bool {
	return p.SpeaksLanguage(job.FromLanguageID)
}

// BlacklistMatch rejects translators blacklisted by the job's customer.
func BlacklistMatch(p models.TranslatorProfile, blacklisted map[int64]struct{}) bool {
	_, bad := blacklisted[p.UserID]
	return !bad
}

// EarmarkMatch rejects jobs earmarked for a different translator.
func EarmarkMatch(job models.Job, translatorID int64) bool {
	return job.SpecificTranslatorID == 0 || job.SpecificTranslatorID == translatorID
}

// PresenceMatch applies the service-area predicate for physical-only jobs.
// Phone-enabled jobs bypass the check entirely.
func PresenceMatch(ctx context.Context, loc LocationChecker, job models.Job, translatorID int64) (bool, error) {
	if !job.PhysicalJobOnly() {
		return true, nil
	}
	return loc.SameServiceArea(ctx, job.UserID, translatorID)
}

// NotAlreadyBooked applies the due-time conflict predicate.
func NotAlreadyBooked(ctx context.Context, conflicts ConflictChecker, job models.Job, translatorID int64) (bool, error) {
	busy, err := conflicts.HasDueConflict(ctx, translatorID, job.Due, job.ID)
	if err != nil {
		return false, err
	}
	return !busy, nil
}
