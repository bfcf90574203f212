package notify

import (
	"encoding/json"
	"testing"
	"time"

	"tolkback/internal/timeutil"
)

func TestTagExpression(t *testing.T) {
	got := TagExpression([]Recipient{
		{Email: "Anna@Example.com"},
		{Email: "bert@example.com"},
	})

	var entries []map[string]string
	if err := json.Unmarshal([]byte(got), &entries); err != nil {
		t.Fatalf("expression is not valid JSON: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("two recipients must produce 3 entries, got %d: %s", len(entries), got)
	}
	if entries[0]["value"] != "anna@example.com" {
		t.Fatalf("email must be lower-cased, got %q", entries[0]["value"])
	}
	if entries[1]["operator"] != "OR" {
		t.Fatalf("entries must be OR-joined, got %v", entries[1])
	}
	if entries[2]["key"] != "email" || entries[2]["relation"] != "=" {
		t.Fatalf("unexpected tag entry %v", entries[2])
	}
}

func TestTagExpressionEmpty(t *testing.T) {
	if got := TagExpression(nil); got != "" {
		t.Fatalf("empty recipient set must yield empty expression, got %q", got)
	}
}

func TestSoundsFor(t *testing.T) {
	android, ios := SoundsFor(Payload{NotificationType: TypeSuitableJob, Immediate: true})
	if android != "emergency_booking" || ios != "emergency_booking.mp3" {
		t.Fatalf("immediate suitable job gets emergency sound, got %s/%s", android, ios)
	}

	android, ios = SoundsFor(Payload{NotificationType: TypeSuitableJob})
	if android != "normal_booking" || ios != "normal_booking.mp3" {
		t.Fatalf("scheduled suitable job gets normal sound, got %s/%s", android, ios)
	}

	android, ios = SoundsFor(Payload{NotificationType: TypeJobAccepted, Immediate: true})
	if android != "default" || ios != "default" {
		t.Fatalf("non-suitable-job types keep the default sound, got %s/%s", android, ios)
	}
}

func TestShouldDelay(t *testing.T) {
	hours := timeutil.DefaultBusinessHours()
	night := time.Date(2026, 4, 1, 23, 30, 0, 0, time.UTC)
	day := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	optedOut := Recipient{NotGetNighttime: true}
	regular := Recipient{}

	if !ShouldDelay(hours, night, optedOut) {
		t.Fatal("night window + opt-out must delay")
	}
	if ShouldDelay(hours, night, regular) {
		t.Fatal("recipient without the opt-out is delivered at night")
	}
	if ShouldDelay(hours, day, optedOut) {
		t.Fatal("daytime delivery is never delayed")
	}
}

func TestSuppressOptedOut(t *testing.T) {
	in := []Recipient{
		{UserID: 1},
		{UserID: 2, NotGetNotification: true},
		{UserID: 3},
	}
	out := SuppressOptedOut(in)
	if len(out) != 2 || out[0].UserID != 1 || out[1].UserID != 3 {
		t.Fatalf("opted-out recipient must be dropped, got %v", out)
	}
}

func TestSplitByDelay(t *testing.T) {
	hours := timeutil.DefaultBusinessHours()
	night := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)

	immediate, deferred := SplitByDelay(hours, night, []Recipient{
		{UserID: 1, NotGetNighttime: true},
		{UserID: 2},
	})
	if len(immediate) != 1 || immediate[0].UserID != 2 {
		t.Fatalf("unexpected immediate set %v", immediate)
	}
	if len(deferred) != 1 || deferred[0].UserID != 1 {
		t.Fatalf("unexpected deferred set %v", deferred)
	}
}
