package timeutil

import "time"

// BusinessHours implements the night-window and next-business-instant policy
// used by the notification delay logic. The window is configured as minutes
// from midnight so a range like 21:00 -> 07:30 can wrap past midnight.
type BusinessHours struct {
	nightStart time.Duration
	nightEnd   time.Duration
}

// NewBusinessHours builds the policy from "HH:MM" boundaries. Falls back to
// the 21:00-07:00 window when parsing fails.
func NewBusinessHours(nightStart, nightEnd string) BusinessHours {
	start, ok1 := parseClock(nightStart)
	end, ok2 := parseClock(nightEnd)
	if !ok1 || !ok2 {
		start = 21 * time.Hour
		end = 7 * time.Hour
	}
	return BusinessHours{nightStart: start, nightEnd: end}
}

// DefaultBusinessHours returns the standard 21:00-07:00 night window.
func DefaultBusinessHours() BusinessHours {
	return NewBusinessHours("21:00", "07:00")
}

func parseClock(s string) (time.Duration, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// IsNightWindow reports whether t falls in the configured night window.
func (b BusinessHours) IsNightWindow(t time.Time) bool {
	now := sinceMidnight(t)
	if b.nightStart <= b.nightEnd {
		return now >= b.nightStart && now < b.nightEnd
	}
	// window wraps midnight
	return now >= b.nightStart || now < b.nightEnd
}

// NextBusinessInstant returns the next timestamp outside the night window.
// Deferred notifications are scheduled for this instant.
func (b BusinessHours) NextBusinessInstant(t time.Time) time.Time {
	if !b.IsNightWindow(t) {
		return t
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := day.Add(b.nightEnd)
	if !end.After(t) {
		end = end.Add(24 * time.Hour)
	}
	return end
}

// WillExpireAt computes when an unaccepted booking stops being offered.
// Short-notice bookings expire at their due time; others get a window
// proportional to how far ahead they were created.
func WillExpireAt(due, createdAt time.Time) time.Time {
	ahead := due.Sub(createdAt)
	switch {
	case ahead <= 90*time.Minute:
		return due
	case ahead <= 24*time.Hour:
		return createdAt.Add(90 * time.Minute)
	case ahead <= 72*time.Hour:
		return createdAt.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}
