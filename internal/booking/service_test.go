package booking

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/geocode"
	"service-marketplace/internal/models"
	testutil "service-marketplace/internal/testing"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
)

type fixture struct {
	svc      *Service
	bookings *testutil.MockBookingRepo
	users    *testutil.MockUserRepo
	customer domain.Actor
	provider *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	bookings := testutil.NewMockBookingRepo()
	users := testutil.NewMockUserRepo()

	customer := &models.User{Name: "Cara", Role: models.RoleCustomer}
	users.Create(context.Background(), customer)

	pkg := models.Package{ID: primitive.NewObjectID(), Name: "Starter", Price: 200, Sessions: 4}
	provider := &models.User{
		Name:               "Pat",
		Role:               models.RoleProvider,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
		ServiceProvider: &models.ServiceProviderProfile{
			Pricing: models.Pricing{HourlyRate: 50, SessionRate: 80, Packages: []models.Package{pkg}},
		},
	}
	users.Create(context.Background(), provider)

	return &fixture{
		svc:      NewService(bookings, users, testutil.MockUoW{}, nil, log),
		bookings: bookings,
		users:    users,
		customer: domain.Actor{UserID: customer.ID, Role: customer.Role},
		provider: provider,
	}
}

func (f *fixture) hourlyRequest() Request {
	return Request{
		Provider:      f.provider.ID,
		ServiceType:   models.ServiceHourly,
		ScheduledDate: time.Now().Add(24 * time.Hour),
		DurationHours: 2,
		ContactPhone:  "(555) 123-4567",
		Address:       "12 Harbor St",
	}
}

func (f *fixture) providerActor() domain.Actor {
	return domain.Actor{UserID: f.provider.ID, Role: models.RoleProvider}
}

func TestCreateHourlyBooking(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.BookingPending {
		t.Errorf("status = %q, want pending", b.Status)
	}
	if b.Price != 100 {
		t.Errorf("price = %v, want 100 (50/h x 2h)", b.Price)
	}
	if !b.ScheduledEnd.Equal(b.ScheduledDate.Add(2 * time.Hour)) {
		t.Errorf("scheduledEnd = %v", b.ScheduledEnd)
	}
	if len(b.StatusHistory) != 1 || b.StatusHistory[0].Status != models.BookingPending {
		t.Errorf("status history = %+v", b.StatusHistory)
	}
	if b.ContactPhone != "+15551234567" {
		t.Errorf("phone not normalized: %q", b.ContactPhone)
	}
}

func TestCreateHourlyWithoutDurationRejectedBeforePersist(t *testing.T) {
	f := newFixture(t)

	req := f.hourlyRequest()
	req.DurationHours = 0
	_, err := f.svc.Create(context.Background(), f.customer, req)
	if !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(f.bookings.Bookings) != 0 {
		t.Error("rejected booking must not be persisted")
	}
}

func TestCreateSessionAndPackagePricing(t *testing.T) {
	f := newFixture(t)

	req := f.hourlyRequest()
	req.ServiceType = models.ServiceSession
	req.DurationHours = 0
	b, err := f.svc.Create(context.Background(), f.customer, req)
	if err != nil {
		t.Fatalf("session Create: %v", err)
	}
	if b.Price != 80 {
		t.Errorf("session price = %v, want 80", b.Price)
	}

	pkgID := f.provider.ServiceProvider.Pricing.Packages[0].ID
	req = f.hourlyRequest()
	req.ServiceType = models.ServicePackage
	req.PackageID = &pkgID
	req.DurationHours = 0
	req.ScheduledDate = time.Now().Add(72 * time.Hour)
	b, err = f.svc.Create(context.Background(), f.customer, req)
	if err != nil {
		t.Fatalf("package Create: %v", err)
	}
	if b.Price != 200 {
		t.Errorf("package price = %v, want 200", b.Price)
	}

	unknown := primitive.NewObjectID()
	req.PackageID = &unknown
	req.ScheduledDate = time.Now().Add(96 * time.Hour)
	if _, err := f.svc.Create(context.Background(), f.customer, req); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("unknown package should fail validation, got %v", err)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Create(context.Background(), f.customer, f.hourlyRequest()); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// Same window, one hour into the existing booking
	req := f.hourlyRequest()
	req.ScheduledDate = req.ScheduledDate.Add(time.Hour)
	_, err := f.svc.Create(context.Background(), f.customer, req)
	if !errs.Is(err, errs.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}

	// Back to back is fine: ranges are half-open
	req = f.hourlyRequest()
	req.ScheduledDate = req.ScheduledDate.Add(2 * time.Hour)
	if _, err := f.svc.Create(context.Background(), f.customer, req); err != nil {
		t.Errorf("adjacent booking should pass: %v", err)
	}
}

func TestCreateRejectsUnbookableProvider(t *testing.T) {
	f := newFixture(t)

	f.provider.VerificationStatus = models.VerificationPending
	f.users.Update(context.Background(), f.provider)

	_, err := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	if !errs.Is(err, errs.ErrValidation) {
		t.Errorf("unverified provider should fail, got %v", err)
	}
}

func TestCreateRejectsLockedProvider(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	if err := f.svc.Confirm(context.Background(), f.providerActor(), b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Non-overlapping slot: the lock alone must block admission.
	req := f.hourlyRequest()
	req.ScheduledDate = req.ScheduledDate.Add(48 * time.Hour)
	_, err := f.svc.Create(context.Background(), f.customer, req)
	if !errs.Is(err, errs.ErrConflict) {
		t.Fatalf("locked provider should reject new bookings, got %v", err)
	}

	// Completion releases the lock and admission resumes.
	if err := f.svc.Complete(context.Background(), f.providerActor(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.customer, req); err != nil {
		t.Errorf("unlocked provider should accept bookings: %v", err)
	}
}

func TestCreateRejectsSelfBooking(t *testing.T) {
	f := newFixture(t)

	req := f.hourlyRequest()
	actor := domain.Actor{UserID: f.provider.ID, Role: models.RoleCustomer}
	if _, err := f.svc.Create(context.Background(), actor, req); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("self booking should fail, got %v", err)
	}
}

func TestCreateRequiresAddress(t *testing.T) {
	f := newFixture(t)

	req := f.hourlyRequest()
	req.Address = ""
	_, err := f.svc.Create(context.Background(), f.customer, req)
	if !errs.Is(err, errs.ErrValidation) {
		t.Errorf("missing address should fail validation, got %v", err)
	}
}

func TestCreateCopiesProviderLocation(t *testing.T) {
	f := newFixture(t)
	f.provider.ServiceProvider.Location = models.NewGeoPoint(100.52, 13.75)
	f.provider.ServiceProvider.Address = "Studio 4, Sukhumvit"
	f.users.Update(context.Background(), f.provider)

	req := f.hourlyRequest()
	req.Address = ""
	req.UseProviderLocation = true
	b, err := f.svc.Create(context.Background(), f.customer, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Location == nil || b.Location.Lng() != 100.52 || b.Location.Lat() != 13.75 {
		t.Errorf("location = %+v, want provider's", b.Location)
	}
	if b.Address != "Studio 4, Sukhumvit" {
		t.Errorf("address = %q, want provider's", b.Address)
	}
}

func TestCreateProviderWithoutLocationRejected(t *testing.T) {
	f := newFixture(t)

	req := f.hourlyRequest()
	req.UseProviderLocation = true
	_, err := f.svc.Create(context.Background(), f.customer, req)
	if !errs.Is(err, errs.ErrValidation) {
		t.Errorf("provider without a stored location should fail, got %v", err)
	}
}

type stubResolver struct {
	res *geocode.Result
	err error
}

func (s stubResolver) Geocode(ctx context.Context, address string) (*geocode.Result, error) {
	return s.res, s.err
}

func TestCreateGeocodesExplicitAddress(t *testing.T) {
	f := newFixture(t)
	f.svc.resolver = stubResolver{res: &geocode.Result{
		Point:            *models.NewGeoPoint(-0.1276, 51.5072),
		FormattedAddress: "12 Harbor St, London",
	}}

	b, err := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Location == nil || b.Location.Lat() != 51.5072 {
		t.Errorf("location = %+v, want geocoded point", b.Location)
	}
	if b.Address != "12 Harbor St, London" {
		t.Errorf("address = %q, want formatted address", b.Address)
	}
}

func TestCreateSurvivesGeocodeFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.resolver = stubResolver{err: errs.NewUpstream("geocode.Geocode", "googlemaps", "quota exceeded", nil)}

	b, err := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Location != nil {
		t.Errorf("location = %+v, want none", b.Location)
	}
	if b.Address != "12 Harbor St" {
		t.Errorf("address = %q, want raw address kept", b.Address)
	}
}

func TestConfirmLocksProvider(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Confirm(context.Background(), f.providerActor(), b.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	got, _ := f.bookings.FindByID(context.Background(), b.ID)
	if got.Status != models.BookingConfirmed {
		t.Errorf("status = %q, want confirmed", got.Status)
	}
	u, _ := f.users.FindByID(context.Background(), f.provider.ID)
	if !u.ServiceProvider.IsLocked {
		t.Error("provider should be locked after confirm")
	}
	if len(got.StatusHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(got.StatusHistory))
	}
}

func TestConfirmSecondBookingRejected(t *testing.T) {
	f := newFixture(t)
	b1, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	req := f.hourlyRequest()
	req.ScheduledDate = req.ScheduledDate.Add(5 * time.Hour)
	b2, _ := f.svc.Create(context.Background(), f.customer, req)

	if err := f.svc.Confirm(context.Background(), f.providerActor(), b1.ID); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	err := f.svc.Confirm(context.Background(), f.providerActor(), b2.ID)
	if !errs.Is(err, errs.ErrConflict) {
		t.Fatalf("second confirm should conflict, got %v", err)
	}
}

func TestConfirmAuthorization(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Confirm(context.Background(), f.customer, b.ID); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("customer confirm should be unauthorized, got %v", err)
	}
}

func TestCompleteUnlocksProvider(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)

	if err := f.svc.Complete(context.Background(), f.providerActor(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	u, _ := f.users.FindByID(context.Background(), f.provider.ID)
	if u.ServiceProvider.IsLocked {
		t.Error("provider should be unlocked after completion")
	}
	if u.ServiceProvider.CompletedBookings != 1 {
		t.Errorf("completed bookings = %d, want 1", u.ServiceProvider.CompletedBookings)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Complete(context.Background(), f.providerActor(), b.ID); !errs.Is(err, errs.ErrConflict) {
		t.Errorf("completing a pending booking should conflict, got %v", err)
	}
}

func TestCompleteSetsCompletedAt(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)

	if err := f.svc.Complete(context.Background(), f.providerActor(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, _ := f.bookings.FindByID(context.Background(), b.ID)
	if got.CompletedAt == nil {
		t.Error("completedAt should be set on completion")
	}
}

func TestRejectPendingBooking(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Reject(context.Background(), f.providerActor(), b.ID, "fully booked that week"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	got, _ := f.bookings.FindByID(context.Background(), b.ID)
	if got.Status != models.BookingRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Note != "fully booked that week" {
		t.Errorf("reject note = %q", last.Note)
	}
	u, _ := f.users.FindByID(context.Background(), f.provider.ID)
	if u.ServiceProvider.IsLocked {
		t.Error("rejecting must not touch the provider lock")
	}
}

func TestRejectByCustomerUnauthorized(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Reject(context.Background(), f.customer, b.ID, ""); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("customer reject should be unauthorized, got %v", err)
	}
}

func TestRejectConfirmedConflict(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)

	if err := f.svc.Reject(context.Background(), f.providerActor(), b.ID, ""); !errs.Is(err, errs.ErrConflict) {
		t.Errorf("rejecting a confirmed booking should conflict, got %v", err)
	}
}

func TestCancelByProviderUnauthorized(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	if err := f.svc.Cancel(context.Background(), f.providerActor(), b.ID, ""); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("provider cancel should be unauthorized, got %v", err)
	}
}

func TestCancelConfirmedUnlocks(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)

	if err := f.svc.Cancel(context.Background(), f.customer, b.ID, "schedule conflict"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, _ := f.bookings.FindByID(context.Background(), b.ID)
	if got.Status != models.BookingCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	last := got.StatusHistory[len(got.StatusHistory)-1]
	if last.Note != "schedule conflict" {
		t.Errorf("cancel note = %q", last.Note)
	}
	u, _ := f.users.FindByID(context.Background(), f.provider.ID)
	if u.ServiceProvider.IsLocked {
		t.Error("provider should be unlocked after cancel")
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)
	f.svc.Complete(context.Background(), f.providerActor(), b.ID)

	if err := f.svc.Cancel(context.Background(), f.customer, b.ID, ""); !errs.Is(err, errs.ErrConflict) {
		t.Errorf("cancelling a completed booking should conflict, got %v", err)
	}
}

func TestCancelStrangerRejected(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())

	stranger := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	if err := f.svc.Cancel(context.Background(), stranger, b.ID, ""); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("stranger cancel should be unauthorized, got %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	b, _ := f.svc.Create(context.Background(), f.customer, f.hourlyRequest())
	f.svc.Confirm(context.Background(), f.providerActor(), b.ID)
	f.svc.Complete(context.Background(), f.providerActor(), b.ID)

	req := f.hourlyRequest()
	req.ScheduledDate = req.ScheduledDate.Add(5 * time.Hour)
	f.svc.Create(context.Background(), f.customer, req)

	s, err := f.svc.Stats(context.Background(), f.provider.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Total != 2 || s.Completed != 1 || s.Pending != 1 {
		t.Errorf("stats = %+v", s)
	}
	// Only the completed booking pays out: 50/h x 2h.
	if s.Earnings != 100 {
		t.Errorf("earnings = %v, want 100", s.Earnings)
	}
}
