package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"tolkback/internal/models"
)

var storeNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func validStoreRequest() StoreRequest {
	return StoreRequest{
		UserID:         100,
		FromLanguageID: 5,
		DueDate:        "04/03/2026",
		DueTime:        "10:00",
		Duration:       60,
		PhoneEnabled:   true,
	}
}

func TestStoreRejectsMissingLanguage(t *testing.T) {
	f := newFixture()
	req := validStoreRequest()
	req.FromLanguageID = 0

	_, err := f.svc.Store(context.Background(), req, storeNow)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "from_language_id" {
		t.Fatalf("expected validation error on from_language_id, got %v", err)
	}
}

func TestStoreRejectsMissingDue(t *testing.T) {
	f := newFixture()
	req := validStoreRequest()
	req.DueDate = ""

	_, err := f.svc.Store(context.Background(), req, storeNow)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "due_date" {
		t.Fatalf("expected validation error on due_date, got %v", err)
	}
}

func TestStoreRejectsPastDue(t *testing.T) {
	f := newFixture()
	req := validStoreRequest()
	req.DueDate = "03/30/2026"

	_, err := f.svc.Store(context.Background(), req, storeNow)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Reason != "can't create booking in past" {
		t.Fatalf("expected past-due rejection, got %v", err)
	}
}

func TestStoreImmediateForcesPhoneAndShortDue(t *testing.T) {
	f := newFixture()
	req := validStoreRequest()
	req.Immediate = true
	req.DueDate = ""
	req.DueTime = ""
	req.PhoneEnabled = false

	job, err := f.svc.Store(context.Background(), req, storeNow)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !job.PhoneEnabled {
		t.Fatal("immediate bookings are always phone-enabled")
	}
	if want := storeNow.Add(5 * time.Minute); !job.Due.Equal(want) {
		t.Fatalf("immediate due = %v, want %v", job.Due, want)
	}
	if !job.WillExpireAt.Equal(job.Due) {
		t.Fatalf("short-notice booking expires at its due time, got %v", job.WillExpireAt)
	}
}

func TestStoreDerivesJobTypeFromConsumerType(t *testing.T) {
	cases := map[string]models.JobType{
		"rwsconsumer": models.JobTypeRWS,
		"ngo":         models.JobTypeUnpaid,
		"paid":        models.JobTypePaid,
		"":            models.JobTypePaid,
	}
	for consumerType, want := range cases {
		f := newFixture()
		f.users.customers[100] = models.Customer{ID: 100, Email: "c@x.se", ConsumerType: consumerType}

		job, err := f.svc.Store(context.Background(), validStoreRequest(), storeNow)
		if err != nil {
			t.Fatalf("Store(%q): %v", consumerType, err)
		}
		if job.JobType != want {
			t.Fatalf("consumer type %q mapped to %s, want %s", consumerType, job.JobType, want)
		}
	}
}

func TestStoreExpiryWindowLadder(t *testing.T) {
	f := newFixture()
	req := validStoreRequest()
	// due two days ahead: expiry is created_at + 16h
	req.DueDate = "04/03/2026"
	req.DueTime = "12:00"

	job, err := f.svc.Store(context.Background(), req, storeNow)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if want := storeNow.Add(16 * time.Hour); !job.WillExpireAt.Equal(want) {
		t.Fatalf("will_expire_at = %v, want %v", job.WillExpireAt, want)
	}
}
