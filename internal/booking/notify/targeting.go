package notify

import (
	"encoding/json"
	"strings"
	"time"
)

// NotificationType labels a push notification for sound selection and for the
// client-side routing done by the mobile apps.
type NotificationType string

const (
	TypeSuitableJob        NotificationType = "suitable_job"
	TypeJobAccepted        NotificationType = "job_accepted"
	TypeJobCancelled       NotificationType = "job_cancelled"
	TypeJobExpired         NotificationType = "job_expired"
	TypeSessionStartRemind NotificationType = "session_start_remind"
)

// Sound variants shipped with the mobile apps.
const (
	soundDefault   = "default"
	soundNormal    = "normal_booking"
	soundEmergency = "emergency_booking"
)

// Payload is the typed data block attached to every push notification.
type Payload struct {
	JobID            int64            `json:"job_id"`
	NotificationType NotificationType `json:"notification_type"`
	FromLanguageID   int64            `json:"from_language_id,omitempty"`
	Language         string           `json:"language,omitempty"`
	Immediate        bool             `json:"immediate"`
	Duration         int              `json:"duration,omitempty"`
	Due              time.Time        `json:"due,omitempty"`
	JobType          string           `json:"job_type,omitempty"`
	Gender           string           `json:"gender,omitempty"`
	Certified        string           `json:"certified,omitempty"`
	PhoneJob         bool             `json:"customer_phone_type"`
	PhysicalJob      bool             `json:"customer_physical_type"`
	Town             string           `json:"customer_town,omitempty"`
}

// Recipient is one push/SMS target with the opt-outs that drive suppression
// and the off-hours delay policy.
type Recipient struct {
	UserID int64
	Email  string
	Phone  string

	NotGetNighttime    bool
	NotGetNotification bool
}

type tagEntry struct {
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// TagExpression builds the push provider's recipient-tag filter: an OR-joined
// list of email tags, case-normalized to lower case. An empty recipient set
// yields an empty expression and the dispatcher must skip the transport call.
func TagExpression(recipients []Recipient) string {
	if len(recipients) == 0 {
		return ""
	}
	entries := make([]tagEntry, 0, len(recipients)*2-1)
	for i, r := range recipients {
		if i > 0 {
			entries = append(entries, tagEntry{Operator: "OR"})
		}
		entries = append(entries, tagEntry{
			Key:      "email",
			Relation: "=",
			Value:    strings.ToLower(r.Email),
		})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(raw)
}

// SoundsFor picks the android/ios sound pair for a payload. Suitable-job
// notifications escalate to the emergency variant for immediate bookings.
func SoundsFor(p Payload) (android, ios string) {
	if p.NotificationType != TypeSuitableJob {
		return soundDefault, soundDefault
	}
	if p.Immediate {
		return soundEmergency, soundEmergency + ".mp3"
	}
	return soundNormal, soundNormal + ".mp3"
}

// BusinessHours is the business-time collaborator boundary.
type BusinessHours interface {
	IsNightWindow(t time.Time) bool
	NextBusinessInstant(t time.Time) time.Time
}

// ShouldDelay defers a notification only when both hold: the wall clock is in
// the night window and this particular recipient opted out of night delivery.
func ShouldDelay(hours BusinessHours, now time.Time, r Recipient) bool {
	if !hours.IsNightWindow(now) {
		return false
	}
	return r.NotGetNighttime
}

// SuppressOptedOut removes recipients who opted out of notifications entirely,
// before tag building, so suppressed recipients never reach logs either.
func SuppressOptedOut(recipients []Recipient) []Recipient {
	out := recipients[:0:0]
	for _, r := range recipients {
		if r.NotGetNotification {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SplitByDelay partitions recipients into immediate and deferred delivery.
func SplitByDelay(hours BusinessHours, now time.Time, recipients []Recipient) (immediate, deferred []Recipient) {
	for _, r := range recipients {
		if ShouldDelay(hours, now, r) {
			deferred = append(deferred, r)
		} else {
			immediate = append(immediate, r)
		}
	}
	return immediate, deferred
}
