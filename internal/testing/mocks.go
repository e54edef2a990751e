package testutil

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/models"
	errs "service-marketplace/pkg/errors"
)

// MockUserRepo implements domain.UserRepository for tests.
type MockUserRepo struct {
	Mu         sync.Mutex
	Users      map[primitive.ObjectID]*models.User
	Embeddings map[primitive.ObjectID][]float32
	Err        error
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{
		Users:      map[primitive.ObjectID]*models.User{},
		Embeddings: map[primitive.ObjectID][]float32{},
	}
}

func (m *MockUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, errs.NewNotFound("mock.FindByID", "user not found", nil)
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.NewNotFound("mock.FindByEmail", "user not found", nil)
}

func (m *MockUserRepo) Create(ctx context.Context, u *models.User) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) Update(ctx context.Context, u *models.User) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) UpdateEmbedding(ctx context.Context, id primitive.ObjectID, embedding []float32) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Embeddings[id] = embedding
	return nil
}

func (m *MockUserRepo) LockProvider(ctx context.Context, providerID primitive.ObjectID) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	u, ok := m.Users[providerID]
	if !ok || u.ServiceProvider == nil {
		return false, errs.NewNotFound("mock.LockProvider", "provider not found", nil)
	}
	if u.ServiceProvider.IsLocked {
		return false, nil
	}
	u.ServiceProvider.IsLocked = true
	return true, nil
}

func (m *MockUserRepo) UnlockProvider(ctx context.Context, providerID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if u, ok := m.Users[providerID]; ok && u.ServiceProvider != nil {
		u.ServiceProvider.IsLocked = false
	}
	return nil
}

func (m *MockUserRepo) IncrementStat(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return errs.NewNotFound("mock.IncrementStat", "user not found", nil)
	}
	switch field {
	case "posts":
		u.Stats.Posts += delta
	case "events":
		u.Stats.Events += delta
	case "bookings":
		u.Stats.Bookings += delta
	case "completedBookings":
		if u.ServiceProvider != nil {
			u.ServiceProvider.CompletedBookings += delta
		}
	}
	return nil
}

// MockBookingRepo implements domain.BookingRepository for tests.
type MockBookingRepo struct {
	Mu       sync.Mutex
	Bookings map[primitive.ObjectID]*models.Booking
	Err      error
}

func NewMockBookingRepo() *MockBookingRepo {
	return &MockBookingRepo{Bookings: map[primitive.ObjectID]*models.Booking{}}
}

func (m *MockBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	cp := *b
	m.Bookings[b.ID] = &cp
	return nil
}

func (m *MockBookingRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	b, ok := m.Bookings[id]
	if !ok {
		return nil, errs.NewNotFound("mock.FindByID", "booking not found", nil)
	}
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepo) FindOverlapping(ctx context.Context, providerID primitive.ObjectID, start, end time.Time) ([]models.Booking, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Booking
	for _, b := range m.Bookings {
		if b.Provider == providerID && models.BookingBlocksCalendar(b.Status) && b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MockBookingRepo) HasConfirmed(ctx context.Context, providerID primitive.ObjectID) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, b := range m.Bookings {
		if b.Provider == providerID && b.Status == models.BookingConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockBookingRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string, change models.StatusChange) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	b, ok := m.Bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	now := time.Now()
	b.Status = to
	if to == models.BookingCompleted {
		b.CompletedAt = &now
	}
	b.StatusHistory = append(b.StatusHistory, change)
	b.UpdatedAt = now
	return true, nil
}

func (m *MockBookingRepo) ListByCustomer(ctx context.Context, customerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Booking
	for _, b := range m.Bookings {
		if b.Customer == customerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MockBookingRepo) ListByProvider(ctx context.Context, providerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Booking
	for _, b := range m.Bookings {
		if b.Provider == providerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *MockBookingRepo) Stats(ctx context.Context, providerID primitive.ObjectID) (*models.BookingStats, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	s := &models.BookingStats{}
	for _, b := range m.Bookings {
		if b.Provider != providerID {
			continue
		}
		s.Total++
		switch b.Status {
		case models.BookingPending:
			s.Pending++
		case models.BookingConfirmed:
			s.Confirmed++
		case models.BookingCompleted:
			s.Completed++
			s.Earnings += b.Price
		case models.BookingCancelled:
			s.Cancelled++
		case models.BookingRejected:
			s.Rejected++
		}
	}
	return s, nil
}

// MockPostRepo implements domain.PostRepository for tests.
type MockPostRepo struct {
	Mu    sync.Mutex
	Posts map[primitive.ObjectID]*models.BlogPost
	Err   error
}

func NewMockPostRepo() *MockPostRepo {
	return &MockPostRepo{Posts: map[primitive.ObjectID]*models.BlogPost{}}
}

func (m *MockPostRepo) Create(ctx context.Context, p *models.BlogPost) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	m.Posts[p.ID] = &cp
	return nil
}

func (m *MockPostRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.BlogPost, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Posts[id]
	if !ok {
		return nil, errs.NewNotFound("mock.FindByID", "post not found", nil)
	}
	cp := *p
	return &cp, nil
}

func (m *MockPostRepo) UpdateContent(ctx context.Context, id primitive.ObjectID, title, content string, tags []string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[id]
	if !ok {
		return errs.NewNotFound("mock.UpdateContent", "post not found", nil)
	}
	p.Title = title
	p.Content = content
	p.Tags = tags
	p.Status = models.StatusPendingReview
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPostRepo) SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	p, ok := m.Posts[id]
	if !ok || p.Status != models.StatusPendingReview {
		return false, nil
	}
	p.Status = to
	p.ModerationNotes = notes
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPostRepo) Archive(ctx context.Context, id primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[id]
	if !ok {
		return errs.NewNotFound("mock.Archive", "post not found", nil)
	}
	p.Status = models.StatusArchived
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPostRepo) AddLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[postID]
	if !ok {
		return errs.NewNotFound("mock.AddLike", "post not found", nil)
	}
	for _, id := range p.Likes {
		if id == userID {
			return nil
		}
	}
	p.Likes = append(p.Likes, userID)
	p.LikeCount = len(p.Likes)
	return nil
}

func (m *MockPostRepo) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[postID]
	if !ok {
		return errs.NewNotFound("mock.RemoveLike", "post not found", nil)
	}
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			break
		}
	}
	p.LikeCount = len(p.Likes)
	return nil
}

func (m *MockPostRepo) AddComment(ctx context.Context, postID primitive.ObjectID, c models.Comment) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[postID]
	if !ok {
		return errs.NewNotFound("mock.AddComment", "post not found", nil)
	}
	p.Comments = append(p.Comments, c)
	p.CommentCount = len(p.Comments)
	return nil
}

func (m *MockPostRepo) DeleteComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p, ok := m.Posts[postID]
	if !ok {
		return errs.NewNotFound("mock.DeleteComment", "post not found", nil)
	}
	for i, c := range p.Comments {
		if c.ID == commentID {
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			break
		}
	}
	p.CommentCount = len(p.Comments)
	return nil
}

func (m *MockPostRepo) ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.BlogPost
	for _, p := range m.Posts {
		if p.Status == models.StatusPublished {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MockPostRepo) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit, offset int) ([]models.BlogPost, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.BlogPost
	for _, p := range m.Posts {
		if p.Author == authorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// MockEventRepo implements domain.EventRepository for tests.
type MockEventRepo struct {
	Mu     sync.Mutex
	Events map[primitive.ObjectID]*models.Event
	Err    error
}

func NewMockEventRepo() *MockEventRepo {
	return &MockEventRepo{Events: map[primitive.ObjectID]*models.Event{}}
}

func (m *MockEventRepo) Create(ctx context.Context, e *models.Event) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	cp := *e
	m.Events[e.ID] = &cp
	return nil
}

func (m *MockEventRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.Events[id]
	if !ok {
		return nil, errs.NewNotFound("mock.FindByID", "event not found", nil)
	}
	cp := *e
	return &cp, nil
}

func (m *MockEventRepo) UpdateContent(ctx context.Context, id primitive.ObjectID, title, description string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[id]
	if !ok {
		return errs.NewNotFound("mock.UpdateContent", "event not found", nil)
	}
	e.Title = title
	e.Description = description
	e.Status = models.StatusPendingReview
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockEventRepo) SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[id]
	if !ok || e.Status != models.StatusPendingReview {
		return false, nil
	}
	e.Status = to
	e.ModerationNotes = notes
	e.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockEventRepo) SetVerification(ctx context.Context, id primitive.ObjectID, v *models.EventVerification) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[id]
	if !ok {
		return errs.NewNotFound("mock.SetVerification", "event not found", nil)
	}
	e.Verification = v
	return nil
}

func (m *MockEventRepo) Archive(ctx context.Context, id primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[id]
	if !ok {
		return errs.NewNotFound("mock.Archive", "event not found", nil)
	}
	e.Status = models.StatusArchived
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockEventRepo) AddLike(ctx context.Context, eventID, userID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[eventID]
	if !ok {
		return errs.NewNotFound("mock.AddLike", "event not found", nil)
	}
	for _, id := range e.Likes {
		if id == userID {
			return nil
		}
	}
	e.Likes = append(e.Likes, userID)
	e.LikeCount = len(e.Likes)
	return nil
}

func (m *MockEventRepo) RemoveLike(ctx context.Context, eventID, userID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[eventID]
	if !ok {
		return errs.NewNotFound("mock.RemoveLike", "event not found", nil)
	}
	for i, id := range e.Likes {
		if id == userID {
			e.Likes = append(e.Likes[:i], e.Likes[i+1:]...)
			break
		}
	}
	e.LikeCount = len(e.Likes)
	return nil
}

func (m *MockEventRepo) AddComment(ctx context.Context, eventID primitive.ObjectID, c models.Comment) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[eventID]
	if !ok {
		return errs.NewNotFound("mock.AddComment", "event not found", nil)
	}
	e.Comments = append(e.Comments, c)
	e.CommentCount = len(e.Comments)
	return nil
}

func (m *MockEventRepo) DeleteComment(ctx context.Context, eventID, commentID primitive.ObjectID) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	e, ok := m.Events[eventID]
	if !ok {
		return errs.NewNotFound("mock.DeleteComment", "event not found", nil)
	}
	for i, c := range e.Comments {
		if c.ID == commentID {
			e.Comments = append(e.Comments[:i], e.Comments[i+1:]...)
			break
		}
	}
	e.CommentCount = len(e.Comments)
	return nil
}

func (m *MockEventRepo) ListPublished(ctx context.Context, limit, offset int) ([]models.Event, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Event
	for _, e := range m.Events {
		if e.Status == models.StatusPublished {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *MockEventRepo) ListByOrganizer(ctx context.Context, organizerID primitive.ObjectID, limit, offset int) ([]models.Event, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []models.Event
	for _, e := range m.Events {
		if e.Organizer == organizerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// MockEnqueuer implements queue.Enqueuer for tests.
type MockEnqueuer struct {
	Mu       sync.Mutex
	Enqueued []EnqueuedJob
	Err      error
}

type EnqueuedJob struct {
	Queue    string
	EntityID string
}

func NewMockEnqueuer() *MockEnqueuer { return &MockEnqueuer{} }

func (m *MockEnqueuer) Enqueue(ctx context.Context, queueName, entityID string) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Enqueued = append(m.Enqueued, EnqueuedJob{Queue: queueName, EntityID: entityID})
	return primitive.NewObjectID().Hex(), nil
}

// ByQueue returns the entity ids enqueued on the given queue.
func (m *MockEnqueuer) ByQueue(queueName string) []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	var out []string
	for _, j := range m.Enqueued {
		if j.Queue == queueName {
			out = append(out, j.EntityID)
		}
	}
	return out
}

// MockUoW implements domain.UnitOfWork for tests by running the callback
// directly without a transaction.
type MockUoW struct{}

func (MockUoW) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ domain.UnitOfWork = MockUoW{}
var _ domain.UserRepository = (*MockUserRepo)(nil)
var _ domain.BookingRepository = (*MockBookingRepo)(nil)
var _ domain.PostRepository = (*MockPostRepo)(nil)
var _ domain.EventRepository = (*MockEventRepo)(nil)
