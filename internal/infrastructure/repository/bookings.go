package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/models"
	"service-marketplace/pkg/database"
	errs "service-marketplace/pkg/errors"
)

// BookingRepository is the MongoDB-backed domain.BookingRepository.
type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

var _ domain.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	if _, err := r.db.Bookings().InsertOne(ctx, b); err != nil {
		return errs.NewDB("bookings.Create", "insert failed", err)
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	var b models.Booking
	err := r.db.Bookings().FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NewNotFound("bookings.FindByID", "booking not found", err)
	}
	if err != nil {
		return nil, errs.NewDB("bookings.FindByID", "query failed", err)
	}
	return &b, nil
}

// FindOverlapping uses a half-open range: a booking ending exactly at the
// requested start does not conflict.
func (r *BookingRepository) FindOverlapping(ctx context.Context, providerID primitive.ObjectID, start, end time.Time) ([]models.Booking, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"provider":      providerID,
		"status":        bson.M{"$in": []string{models.BookingPending, models.BookingConfirmed}},
		"scheduledDate": bson.M{"$lt": end},
		"scheduledEnd":  bson.M{"$gt": start},
	}
	cur, err := r.db.Bookings().Find(ctx, filter)
	if err != nil {
		return nil, errs.NewDB("bookings.FindOverlapping", "query failed", err)
	}
	var out []models.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.NewDB("bookings.FindOverlapping", "decode failed", err)
	}
	return out, nil
}

func (r *BookingRepository) HasConfirmed(ctx context.Context, providerID primitive.ObjectID) (bool, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	n, err := r.db.Bookings().CountDocuments(ctx,
		bson.M{"provider": providerID, "status": models.BookingConfirmed},
		options.Count().SetLimit(1))
	if err != nil {
		return false, errs.NewDB("bookings.HasConfirmed", "count failed", err)
	}
	return n > 0, nil
}

// UpdateStatus is conditioned on the current status so concurrent
// transitions cannot both win; the loser sees false and re-reads.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string, change models.StatusChange) (bool, error) {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	set := bson.M{"status": to, "updatedAt": now}
	if to == models.BookingCompleted {
		set["completedAt"] = now
	}
	res, err := r.db.Bookings().UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{
			"$set":  set,
			"$push": bson.M{"statusHistory": change},
		})
	if err != nil {
		return false, errs.NewDB("bookings.UpdateStatus", "update failed", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	return r.list(ctx, "bookings.ListByCustomer", bson.M{"customer": customerID}, limit, offset)
}

func (r *BookingRepository) ListByProvider(ctx context.Context, providerID primitive.ObjectID, limit, offset int) ([]models.Booking, error) {
	return r.list(ctx, "bookings.ListByProvider", bson.M{"provider": providerID}, limit, offset)
}

func (r *BookingRepository) list(ctx context.Context, op string, filter bson.M, limit, offset int) ([]models.Booking, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "scheduledDate", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cur, err := r.db.Bookings().Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.NewDB(op, "query failed", err)
	}
	var out []models.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.NewDB(op, "decode failed", err)
	}
	return out, nil
}

func (r *BookingRepository) Stats(ctx context.Context, providerID primitive.ObjectID) (*models.BookingStats, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"provider": providerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$price"},
		}}},
	}
	cur, err := r.db.Bookings().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.NewDB("bookings.Stats", "aggregate failed", err)
	}
	var rows []struct {
		Status string  `bson:"_id"`
		Count  int64   `bson:"count"`
		Total  float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.NewDB("bookings.Stats", "decode failed", err)
	}

	stats := &models.BookingStats{}
	for _, row := range rows {
		switch row.Status {
		case models.BookingPending:
			stats.Pending = row.Count
		case models.BookingConfirmed:
			stats.Confirmed = row.Count
		case models.BookingCompleted:
			stats.Completed = row.Count
			// Earnings count completed bookings only
			stats.Earnings = row.Total
		case models.BookingCancelled:
			stats.Cancelled = row.Count
		case models.BookingRejected:
			stats.Rejected = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}
