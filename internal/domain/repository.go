package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/models"
)

// UserRepository defines data access for users and provider profiles.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error

	// UpdateEmbedding overwrites the stored search embedding for a user.
	UpdateEmbedding(ctx context.Context, id primitive.ObjectID, embedding []float32) error

	// LockProvider atomically flips serviceProvider.isLocked from false to
	// true. Returns false when the provider was already locked.
	LockProvider(ctx context.Context, providerID primitive.ObjectID) (bool, error)
	UnlockProvider(ctx context.Context, providerID primitive.ObjectID) error

	IncrementStat(ctx context.Context, id primitive.ObjectID, field string, delta int) error
}

// BookingRepository defines data access for bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)

	// FindOverlapping returns calendar-blocking bookings for the provider
	// whose [scheduledDate, scheduledEnd) window intersects [start, end).
	FindOverlapping(ctx context.Context, providerID primitive.ObjectID, start, end time.Time) ([]models.Booking, error)

	// HasConfirmed reports whether the provider currently has a booking in
	// the confirmed state.
	HasConfirmed(ctx context.Context, providerID primitive.ObjectID) (bool, error)

	// UpdateStatus transitions a booking from one status to another and
	// appends the change to its status history in a single conditional
	// write. Returns false when the booking was not in the expected status.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string, change models.StatusChange) (bool, error)

	ListByCustomer(ctx context.Context, customerID primitive.ObjectID, limit, offset int) ([]models.Booking, error)
	ListByProvider(ctx context.Context, providerID primitive.ObjectID, limit, offset int) ([]models.Booking, error)
	Stats(ctx context.Context, providerID primitive.ObjectID) (*models.BookingStats, error)
}

// PostRepository defines data access for blog posts.
type PostRepository interface {
	Create(ctx context.Context, p *models.BlogPost) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.BlogPost, error)

	// UpdateContent replaces the reviewable fields and resets the post to
	// pending review in one write.
	UpdateContent(ctx context.Context, id primitive.ObjectID, title, content string, tags []string) error

	// SetModeration moves a post out of pending review. The write is
	// conditioned on the current status so a stale review job cannot
	// clobber a later decision; returns false when nothing matched.
	SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error)

	// Archive moves a post to the terminal archived state.
	Archive(ctx context.Context, id primitive.ObjectID) error

	AddLike(ctx context.Context, postID, userID primitive.ObjectID) error
	RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error
	AddComment(ctx context.Context, postID primitive.ObjectID, c models.Comment) error

	// DeleteComment removes a comment and rederives commentCount in the
	// same write. Removing an absent comment is a no-op.
	DeleteComment(ctx context.Context, postID, commentID primitive.ObjectID) error

	ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, error)
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit, offset int) ([]models.BlogPost, error)
}

// EventRepository defines data access for events.
type EventRepository interface {
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error)

	UpdateContent(ctx context.Context, id primitive.ObjectID, title, description string) error
	SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error)

	// SetVerification stores the verification outcome alongside the
	// moderation decision.
	SetVerification(ctx context.Context, id primitive.ObjectID, v *models.EventVerification) error

	Archive(ctx context.Context, id primitive.ObjectID) error

	AddLike(ctx context.Context, eventID, userID primitive.ObjectID) error
	RemoveLike(ctx context.Context, eventID, userID primitive.ObjectID) error
	AddComment(ctx context.Context, eventID primitive.ObjectID, c models.Comment) error
	DeleteComment(ctx context.Context, eventID, commentID primitive.ObjectID) error

	ListPublished(ctx context.Context, limit, offset int) ([]models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID primitive.ObjectID, limit, offset int) ([]models.Event, error)
}
