package specs

import (
	"context"
	"os"
	"strconv"
	"time"

	"service-marketplace/internal/models"
)

// BookingRuleOptions controls how the composite booking admission spec is
// built. Sourced from environment to keep it simple and avoid touching
// global config wiring.
// ENV vars (with defaults):
//  SPEC_MIN_LEAD_MINUTES (30)
//  SPEC_MAX_WINDOW_HOURS (12)
//  SPEC_REQUIRE_CONTACT_PHONE (true)

type BookingRuleOptions struct {
	MinLead             time.Duration
	MaxWindowHours      float64
	RequireContactPhone bool
}

func defaultOpts() BookingRuleOptions {
	return BookingRuleOptions{MinLead: 30 * time.Minute, MaxWindowHours: 12, RequireContactPhone: true}
}

func optsFromEnv() BookingRuleOptions {
	o := defaultOpts()
	if v := os.Getenv("SPEC_MIN_LEAD_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.MinLead = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("SPEC_MAX_WINDOW_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			o.MaxWindowHours = f
		}
	}
	if v := os.Getenv("SPEC_REQUIRE_CONTACT_PHONE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			o.RequireContactPhone = b
		}
	}
	return o
}

// BuildAdmissionSpecFromEnv builds the composite spec applied to a booking
// request before any database work happens. It requires: a well formed
// window, hourly duration present, minimum lead time, and optionally a
// contact phone.
func BuildAdmissionSpecFromEnv() Specification[models.Booking] {
	o := optsFromEnv()

	base := HasValidWindow().And(HourlyHasDuration()).And(HasMinimumLead(o.MinLead)).And(WithinMaxWindow(o.MaxWindowHours))
	if o.RequireContactPhone {
		base = base.And(HasContactPhone())
	}
	return base
}

// Evaluate evaluates a spec with the provided context.
// Keeping it simple: callers should pass their request or processing ctx.
func Evaluate[T any](ctx context.Context, s Specification[T], v T) bool {
	return s.IsSatisfiedBy(ctx, v)
}
