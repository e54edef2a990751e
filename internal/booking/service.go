// Package booking implements booking admission and the booking state
// machine: pending -> confirmed -> completed, with rejection, cancellation,
// provider locking and server-side pricing.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/domain/specs"
	"service-marketplace/internal/geocode"
	"service-marketplace/internal/models"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
	"service-marketplace/pkg/utils"
)

// sessionDuration is the calendar window reserved for session and package
// bookings, which carry no explicit duration.
const sessionDuration = time.Hour

// Request is a booking request as submitted by a customer. Price is never
// part of the request; it is always computed server-side. When
// UseProviderLocation is set the provider's stored location is copied onto
// the booking and Address is ignored.
type Request struct {
	Provider            primitive.ObjectID
	ServiceType         string
	PackageID           *primitive.ObjectID
	ScheduledDate       time.Time
	DurationHours       float64
	ContactPhone        string
	Notes               string
	Address             string
	UseProviderLocation bool
}

// AddressResolver resolves a free-form address to coordinates.
type AddressResolver interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

type Service struct {
	bookings domain.BookingRepository
	users    domain.UserRepository
	uow      domain.UnitOfWork
	resolver AddressResolver
	spec     specs.Specification[models.Booking]
	log      *logging.ComponentLogger
}

// NewService builds a booking service. resolver may be nil, in which case
// explicit addresses are stored as given without coordinates.
func NewService(bookings domain.BookingRepository, users domain.UserRepository, uow domain.UnitOfWork, resolver AddressResolver, log *logging.Logger) *Service {
	return &Service{
		bookings: bookings,
		users:    users,
		uow:      uow,
		resolver: resolver,
		spec:     specs.BuildAdmissionSpecFromEnv(),
		log:      log.WithComponent("booking"),
	}
}

// Create validates and persists a new pending booking. Validation happens
// before any write: a request that cannot be priced or scheduled never
// reaches the database.
func (s *Service) Create(ctx context.Context, actor domain.Actor, req Request) (*models.Booking, error) {
	if !actor.IsCustomer() && !actor.IsAdmin() {
		return nil, errs.NewUnauthorized("booking.Create", "only customers can book services", nil)
	}
	if actor.Is(req.Provider) {
		return nil, errs.NewValidation("booking.Create", "cannot book yourself", nil)
	}

	booking, err := s.buildBooking(actor, req)
	if err != nil {
		return nil, err
	}
	if !s.spec.IsSatisfiedBy(ctx, *booking) {
		return nil, errs.NewValidation("booking.Create", "booking does not meet admission rules", nil)
	}

	provider, err := s.users.FindByID(ctx, req.Provider)
	if err != nil {
		return nil, err
	}
	if !provider.IsBookableProvider() {
		return nil, errs.NewValidation("booking.Create", "provider is not accepting bookings", nil)
	}
	if !specs.Evaluate(ctx, specs.ProviderIsAvailable(), *provider) {
		return nil, errs.NewConflict("booking.Create", "provider is locked by an active booking", nil)
	}

	if err := s.resolveLocation(ctx, booking, provider, req); err != nil {
		return nil, err
	}

	price, err := computePrice(provider.ServiceProvider.Pricing, req)
	if err != nil {
		return nil, err
	}
	booking.Price = price

	// Overlap check and insert share a transaction so two concurrent
	// requests cannot both pass the check.
	err = s.uow.WithTransaction(ctx, func(txCtx context.Context) error {
		overlapping, err := s.bookings.FindOverlapping(txCtx, req.Provider, booking.ScheduledDate, booking.ScheduledEnd)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return errs.NewConflict("booking.Create", "provider already booked for that time", nil)
		}
		if err := s.bookings.Create(txCtx, booking); err != nil {
			return err
		}
		return s.users.IncrementStat(txCtx, actor.UserID, "bookings", 1)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		logging.String("entity_id", booking.ID.Hex()),
		logging.String("provider", req.Provider.Hex()),
		logging.String("service_type", req.ServiceType),
		logging.Float64("price", booking.Price))
	return booking, nil
}

// buildBooking runs the pre-persistence validation order: service type,
// schedule, then duration rules. An hourly request without a duration is
// rejected here, before any database work.
func (s *Service) buildBooking(actor domain.Actor, req Request) (*models.Booking, error) {
	switch req.ServiceType {
	case models.ServiceHourly, models.ServiceSession, models.ServicePackage:
	default:
		return nil, errs.NewValidation("booking.Create", fmt.Sprintf("unknown service type %q", req.ServiceType), nil)
	}

	if req.ScheduledDate.IsZero() {
		return nil, errs.NewValidation("booking.Create", "scheduled date is required", nil)
	}
	if req.ScheduledDate.Before(time.Now()) {
		return nil, errs.NewValidation("booking.Create", "scheduled date must be in the future", nil)
	}

	var end time.Time
	switch req.ServiceType {
	case models.ServiceHourly:
		if req.DurationHours <= 0 {
			return nil, errs.NewValidation("booking.Create", "hourly bookings require a duration", nil)
		}
		end = req.ScheduledDate.Add(time.Duration(req.DurationHours * float64(time.Hour)))
	case models.ServicePackage:
		if req.PackageID == nil {
			return nil, errs.NewValidation("booking.Create", "package bookings require a package id", nil)
		}
		end = req.ScheduledDate.Add(sessionDuration)
	default:
		end = req.ScheduledDate.Add(sessionDuration)
	}

	if strings.TrimSpace(req.ContactPhone) == "" {
		return nil, errs.NewValidation("booking.Create", "contact phone is required", nil)
	}
	if !req.UseProviderLocation && strings.TrimSpace(req.Address) == "" {
		return nil, errs.NewValidation("booking.Create", "an address or the provider's location is required", nil)
	}

	now := time.Now().UTC()
	return &models.Booking{
		Customer:      actor.UserID,
		Provider:      req.Provider,
		ServiceType:   req.ServiceType,
		PackageID:     req.PackageID,
		ScheduledDate: req.ScheduledDate,
		ScheduledEnd:  end,
		DurationHours: req.DurationHours,
		ContactPhone:  utils.NormalizePhoneNumber(req.ContactPhone),
		Notes:         req.Notes,
		Address:       req.Address,
		Status:        models.BookingPending,
		StatusHistory: []models.StatusChange{{
			Status: models.BookingPending,
			At:     now,
			By:     actor.UserID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// resolveLocation fills in where the service happens: either a copy of the
// provider's stored location, or the customer's explicit address, geocoded
// when a resolver is configured. A geocoding failure is not fatal; the
// booking keeps the raw address.
func (s *Service) resolveLocation(ctx context.Context, booking *models.Booking, provider *models.User, req Request) error {
	if req.UseProviderLocation {
		if !specs.Evaluate(ctx, specs.ProviderHasLocation(), *provider) {
			return errs.NewValidation("booking.Create", "provider has no stored location", nil)
		}
		loc := *provider.ServiceProvider.Location
		booking.Location = &loc
		booking.Address = provider.ServiceProvider.Address
		return nil
	}

	if s.resolver == nil {
		return nil
	}
	res, err := s.resolver.Geocode(ctx, req.Address)
	if err != nil {
		s.log.Warn("address geocoding failed, keeping raw address",
			logging.String("address", req.Address),
			logging.String("error", err.Error()))
		return nil
	}
	point := res.Point
	booking.Location = &point
	booking.Address = res.FormattedAddress
	return nil
}

// computePrice derives the price from the provider's stored pricing. The
// request never carries a price.
func computePrice(pricing models.Pricing, req Request) (float64, error) {
	switch req.ServiceType {
	case models.ServiceHourly:
		if pricing.HourlyRate <= 0 {
			return 0, errs.NewValidation("booking.Create", "provider has no hourly rate", nil)
		}
		return pricing.HourlyRate * req.DurationHours, nil
	case models.ServiceSession:
		if pricing.SessionRate <= 0 {
			return 0, errs.NewValidation("booking.Create", "provider has no session rate", nil)
		}
		return pricing.SessionRate, nil
	case models.ServicePackage:
		for _, p := range pricing.Packages {
			if req.PackageID != nil && p.ID == *req.PackageID {
				return p.Price, nil
			}
		}
		return 0, errs.NewValidation("booking.Create", "package not offered by provider", nil)
	}
	return 0, errs.NewValidation("booking.Create", "unknown service type", nil)
}

// Confirm moves a pending booking to confirmed. The provider is locked
// first with a compare-and-set, so a provider can hold exactly one
// confirmed booking at a time.
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(booking.Provider) && !actor.IsAdmin() {
		return errs.NewUnauthorized("booking.Confirm", "only the provider can confirm a booking", nil)
	}
	if booking.Status != models.BookingPending {
		return errs.NewConflict("booking.Confirm", fmt.Sprintf("booking is %s, not pending", booking.Status), nil)
	}

	confirmed, err := s.bookings.HasConfirmed(ctx, booking.Provider)
	if err != nil {
		return err
	}
	if confirmed {
		return errs.NewConflict("booking.Confirm", "provider already has a confirmed booking", nil)
	}

	locked, err := s.users.LockProvider(ctx, booking.Provider)
	if err != nil {
		return err
	}
	if !locked {
		return errs.NewConflict("booking.Confirm", "provider is locked by another booking", nil)
	}

	ok, err := s.transition(ctx, actor, id, models.BookingPending, models.BookingConfirmed, "")
	if err != nil || !ok {
		// The CAS won the lock but the booking moved on; release it.
		if uErr := s.users.UnlockProvider(ctx, booking.Provider); uErr != nil {
			s.log.Error("unlock after failed confirm", uErr, logging.String("provider", booking.Provider.Hex()))
		}
		if err != nil {
			return err
		}
		return errs.NewConflict("booking.Confirm", "booking changed concurrently", nil)
	}

	s.log.Info("booking confirmed",
		logging.String("entity_id", id.Hex()),
		logging.String("provider", booking.Provider.Hex()))
	return nil
}

// Complete marks a confirmed booking as done and releases the provider.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(booking.Provider) && !actor.IsAdmin() {
		return errs.NewUnauthorized("booking.Complete", "only the provider can complete a booking", nil)
	}
	if booking.Status != models.BookingConfirmed {
		return errs.NewConflict("booking.Complete", fmt.Sprintf("booking is %s, not confirmed", booking.Status), nil)
	}

	ok, err := s.transition(ctx, actor, id, models.BookingConfirmed, models.BookingCompleted, "")
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewConflict("booking.Complete", "booking changed concurrently", nil)
	}

	if err := s.users.UnlockProvider(ctx, booking.Provider); err != nil {
		s.log.Error("unlock after complete", err, logging.String("provider", booking.Provider.Hex()))
	}
	if err := s.users.IncrementStat(ctx, booking.Provider, "completedBookings", 1); err != nil {
		s.log.Error("completed bookings increment failed", err, logging.String("provider", booking.Provider.Hex()))
	}

	s.log.Info("booking completed", logging.String("entity_id", id.Hex()))
	return nil
}

// Reject declines a pending booking. Only the provider or an admin can
// reject, and rejection never touches the provider lock: a pending booking
// holds no lock.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, id primitive.ObjectID, reason string) error {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(booking.Provider) && !actor.IsAdmin() {
		return errs.NewUnauthorized("booking.Reject", "only the provider can reject a booking", nil)
	}
	if booking.Status != models.BookingPending {
		return errs.NewConflict("booking.Reject", fmt.Sprintf("booking is %s, not pending", booking.Status), nil)
	}

	ok, err := s.transition(ctx, actor, id, models.BookingPending, models.BookingRejected, reason)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewConflict("booking.Reject", "booking changed concurrently", nil)
	}

	s.log.Info("booking rejected",
		logging.String("entity_id", id.Hex()),
		logging.String("provider", booking.Provider.Hex()))
	return nil
}

// Cancel aborts a pending or confirmed booking. Only the customer or an
// admin can cancel; providers decline with Reject. Completed bookings
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id primitive.ObjectID, note string) error {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(booking.Customer) && !actor.IsAdmin() {
		return errs.NewUnauthorized("booking.Cancel", "only the customer can cancel a booking", nil)
	}

	from := booking.Status
	switch from {
	case models.BookingPending, models.BookingConfirmed:
	default:
		return errs.NewConflict("booking.Cancel", fmt.Sprintf("cannot cancel a %s booking", from), nil)
	}

	ok, err := s.transition(ctx, actor, id, from, models.BookingCancelled, note)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewConflict("booking.Cancel", "booking changed concurrently", nil)
	}

	if from == models.BookingConfirmed {
		if err := s.users.UnlockProvider(ctx, booking.Provider); err != nil {
			s.log.Error("unlock after cancel", err, logging.String("provider", booking.Provider.Hex()))
		}
	}

	s.log.Info("booking cancelled",
		logging.String("entity_id", id.Hex()),
		logging.String("from", from))
	return nil
}

// transition performs the conditional status write with its history entry.
func (s *Service) transition(ctx context.Context, actor domain.Actor, id primitive.ObjectID, from, to, note string) (bool, error) {
	return s.bookings.UpdateStatus(ctx, id, from, to, models.StatusChange{
		Status: to,
		At:     time.Now().UTC(),
		By:     actor.UserID,
		Note:   note,
	})
}

// Get returns a booking to one of its parties.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(booking.Customer) && !actor.Is(booking.Provider) && !actor.IsAdmin() {
		return nil, errs.NewNotFound("booking.Get", "booking not found", nil)
	}
	return booking, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	return s.bookings.ListByCustomer(ctx, customerID, limit, offset)
}

func (s *Service) ListForProvider(ctx context.Context, providerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	return s.bookings.ListByProvider(ctx, providerID, limit, offset)
}

func (s *Service) Stats(ctx context.Context, providerID primitive.ObjectID) (*models.BookingStats, error) {
	return s.bookings.Stats(ctx, providerID)
}
