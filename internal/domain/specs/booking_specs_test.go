package specs

import (
	"context"
	"testing"
	"time"

	"service-marketplace/internal/models"
)

func futureBooking(serviceType string, hours float64) models.Booking {
	start := time.Now().Add(2 * time.Hour)
	return models.Booking{
		ServiceType:   serviceType,
		ScheduledDate: start,
		ScheduledEnd:  start.Add(time.Duration(hours * float64(time.Hour))),
		DurationHours: hours,
		ContactPhone:  "+15551234567",
	}
}

func TestHourlyHasDuration(t *testing.T) {
	ctx := context.Background()
	spec := HourlyHasDuration()

	b := futureBooking(models.ServiceHourly, 2)
	if !spec.IsSatisfiedBy(ctx, b) {
		t.Error("hourly booking with duration should satisfy spec")
	}

	b.DurationHours = 0
	if spec.IsSatisfiedBy(ctx, b) {
		t.Error("hourly booking without duration should fail spec")
	}

	b.ServiceType = models.ServiceSession
	if !spec.IsSatisfiedBy(ctx, b) {
		t.Error("session booking should pass regardless of duration")
	}
}

func TestHasValidWindow(t *testing.T) {
	ctx := context.Background()
	spec := HasValidWindow()

	b := futureBooking(models.ServiceSession, 1)
	if !spec.IsSatisfiedBy(ctx, b) {
		t.Error("well formed window should satisfy spec")
	}

	b.ScheduledEnd = b.ScheduledDate
	if spec.IsSatisfiedBy(ctx, b) {
		t.Error("zero-length window should fail spec")
	}

	b = models.Booking{}
	if spec.IsSatisfiedBy(ctx, b) {
		t.Error("unset window should fail spec")
	}
}

func TestCompositeAdmissionSpec(t *testing.T) {
	ctx := context.Background()
	spec := HasValidWindow().And(HourlyHasDuration()).And(HasContactPhone())

	cases := []struct {
		name   string
		mutate func(*models.Booking)
		want   bool
	}{
		{"valid hourly", func(b *models.Booking) {}, true},
		{"missing phone", func(b *models.Booking) { b.ContactPhone = "" }, false},
		{"hourly no duration", func(b *models.Booking) { b.DurationHours = 0 }, false},
		{"inverted window", func(b *models.Booking) { b.ScheduledEnd = b.ScheduledDate.Add(-time.Hour) }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := futureBooking(models.ServiceHourly, 2)
			tc.mutate(&b)
			if got := spec.IsSatisfiedBy(ctx, b); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSpecCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := futureBooking(models.ServiceHourly, 2)
	spec := HasValidWindow().And(HourlyHasDuration())
	if spec.IsSatisfiedBy(ctx, b) {
		t.Error("cancelled context should fail composite spec")
	}
}

func TestProviderIsBookable(t *testing.T) {
	ctx := context.Background()
	spec := ProviderIsBookable()

	u := models.User{
		Role:               models.RoleProvider,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
		ServiceProvider:    &models.ServiceProviderProfile{},
	}
	if !spec.IsSatisfiedBy(ctx, u) {
		t.Error("verified active provider should be bookable")
	}

	u.IsBanned = true
	if spec.IsSatisfiedBy(ctx, u) {
		t.Error("banned provider should not be bookable")
	}
}
