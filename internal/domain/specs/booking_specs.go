package specs

import (
	"context"
	"time"

	"service-marketplace/internal/models"
)

// ProviderIsBookable checks that a user can currently accept bookings:
// provider role, verified, active and not banned, with a profile present.
func ProviderIsBookable() Specification[models.User] {
	return New(func(ctx context.Context, u models.User) bool {
		if ctx.Err() != nil {
			return false
		}
		return u.IsBookableProvider()
	})
}

// ProviderIsAvailable checks that the provider is not locked by an active
// confirmed booking. A locked provider cannot accept new bookings.
func ProviderIsAvailable() Specification[models.User] {
	return New(func(ctx context.Context, u models.User) bool {
		if ctx.Err() != nil {
			return false
		}
		return u.ServiceProvider != nil && !u.ServiceProvider.IsLocked
	})
}

// ProviderHasLocation checks that the provider profile carries coordinates,
// required before a booking can be placed at the provider's location.
func ProviderHasLocation() Specification[models.User] {
	return New(func(ctx context.Context, u models.User) bool {
		if ctx.Err() != nil {
			return false
		}
		return u.ServiceProvider != nil && u.ServiceProvider.Location != nil
	})
}

// HasValidWindow checks the booking window is well formed: start set, end
// strictly after start.
func HasValidWindow() Specification[models.Booking] {
	return New(func(ctx context.Context, b models.Booking) bool {
		if ctx.Err() != nil {
			return false
		}
		return !b.ScheduledDate.IsZero() && b.ScheduledEnd.After(b.ScheduledDate)
	})
}

// HasMinimumLead checks the booking starts at least minLead from now.
func HasMinimumLead(minLead time.Duration) Specification[models.Booking] {
	return New(func(ctx context.Context, b models.Booking) bool {
		if ctx.Err() != nil {
			return false
		}
		return b.ScheduledDate.After(time.Now().Add(minLead))
	})
}

// WithinMaxWindow checks the booking window does not exceed maxHours.
func WithinMaxWindow(maxHours float64) Specification[models.Booking] {
	return New(func(ctx context.Context, b models.Booking) bool {
		if ctx.Err() != nil {
			return false
		}
		if maxHours <= 0 {
			return true
		}
		return b.ScheduledEnd.Sub(b.ScheduledDate).Hours() <= maxHours
	})
}

// HasContactPhone checks a contact phone is present on the booking.
func HasContactPhone() Specification[models.Booking] {
	return New(func(ctx context.Context, b models.Booking) bool {
		if ctx.Err() != nil {
			return false
		}
		return b.ContactPhone != ""
	})
}

// HourlyHasDuration checks that hourly bookings declare their duration.
// Session and package bookings pass unconditionally.
func HourlyHasDuration() Specification[models.Booking] {
	return New(func(ctx context.Context, b models.Booking) bool {
		if ctx.Err() != nil {
			return false
		}
		if b.ServiceType != models.ServiceHourly {
			return true
		}
		return b.DurationHours > 0
	})
}
