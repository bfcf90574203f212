package models

import (
	"time"

	"tolkback/internal/booking/fsm"
)

// JobType tells which translator pool a job is offered to. It is derived once
// from the requesting customer's consumer type and never changes afterwards.
type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

// Certification is the certification tier a job requires. Empty means no
// requirement.
type Certification string

const (
	CertificationNone   Certification = ""
	CertificationNormal Certification = "normal"
	CertificationLaw    Certification = "law"
	CertificationHealth Certification = "health"
	CertificationBoth   Certification = "both"
)

// Gender requirement of a job, or the gender of a translator. Empty means
// no requirement.
type Gender string

const (
	GenderAny    Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Job is a requested interpretation session.
type Job struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"user_id"`
	UserEmail      string        `json:"user_email,omitempty"`
	Status         fsm.Status    `json:"status"`
	FromLanguageID int64         `json:"from_language_id"`
	Immediate      bool          `json:"immediate"`
	Due            time.Time     `json:"due"`
	Duration       int           `json:"duration"`
	Gender         Gender        `json:"gender,omitempty"`
	Certified      Certification `json:"certified,omitempty"`
	JobType        JobType       `json:"job_type"`
	PhoneEnabled   bool          `json:"customer_phone_type"`
	PhysicalOnly   bool          `json:"customer_physical_type"`
	Town           string        `json:"town,omitempty"`
	Address        string        `json:"address,omitempty"`
	Instructions   string        `json:"instructions,omitempty"`
	Reference      string        `json:"reference,omitempty"`
	AdminComments  string        `json:"admin_comments,omitempty"`
	SessionTime    string        `json:"session_time,omitempty"`

	// SpecificTranslatorID earmarks the job for one translator. Zero means
	// the job is open to every eligible translator.
	SpecificTranslatorID int64 `json:"specific_translator_id,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	WillExpireAt time.Time  `json:"will_expire_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	WithdrawAt   *time.Time `json:"withdraw_at,omitempty"`

	IgnoredForFeedback bool `json:"ignore_feedback"`
	Flagged            bool `json:"flagged"`
	ManuallyHandled    bool `json:"manually_handled"`
	ByAdmin            bool `json:"by_admin"`
}

// PhysicalJobOnly reports whether a job can only be carried out on site.
// Phone-enabled jobs bypass the service-area check.
func (j Job) PhysicalJobOnly() bool {
	return j.PhysicalOnly && !j.PhoneEnabled
}

// TranslatorAssignment binds one translator to one job, time-boxed. At most
// one assignment per job may have both CancelAt and CompletedAt unset; that
// row is the active assignment. Reassignment is cancel-then-create, never
// mutate-in-place, so the full history survives.
type TranslatorAssignment struct {
	ID          int64      `json:"id"`
	JobID       int64      `json:"job_id"`
	UserID      int64      `json:"user_id"`
	AssignedAt  time.Time  `json:"created_at"`
	CancelAt    *time.Time `json:"cancel_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy int64      `json:"completed_by,omitempty"`
}

// Active reports whether the assignment is the live binding for its job.
func (a TranslatorAssignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}

// StatusChange is the optional column set written together with a status
// move. Nil fields are left untouched.
type StatusChange struct {
	AdminComments *string
	SessionTime   *string
	CreatedAt     *time.Time
	EndAt         *time.Time
	WithdrawAt    *time.Time
	WillExpireAt  *time.Time
}

// ChangeRecord is a structured old/new pair logged alongside a booking update.
type ChangeRecord struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}
