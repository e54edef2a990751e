// Package repository provides the MongoDB implementations of the domain
// repository interfaces.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/models"
	"service-marketplace/pkg/database"
	errs "service-marketplace/pkg/errors"
)

// UserRepository is the MongoDB-backed domain.UserRepository.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ domain.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	var u models.User
	err := r.db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NewNotFound("users.FindByID", "user not found", err)
	}
	if err != nil {
		return nil, errs.NewDB("users.FindByID", "query failed", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	var u models.User
	err := r.db.Users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NewNotFound("users.FindByEmail", "user not found", err)
	}
	if err != nil {
		return nil, errs.NewDB("users.FindByEmail", "query failed", err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	if _, err := r.db.Users().InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.NewConflict("users.Create", "email already registered", err)
		}
		return errs.NewDB("users.Create", "insert failed", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	u.UpdatedAt = time.Now().UTC()
	res, err := r.db.Users().ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return errs.NewDB("users.Update", "replace failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("users.Update", "user not found", nil)
	}
	return nil
}

func (r *UserRepository) UpdateEmbedding(ctx context.Context, id primitive.ObjectID, embedding []float32) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Users().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"embedding": embedding, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return errs.NewDB("users.UpdateEmbedding", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("users.UpdateEmbedding", "user not found", nil)
	}
	return nil
}

// LockProvider flips isLocked false -> true in one compare-and-set write.
// A zero match means the provider was missing or already locked; the two
// cases are split with a follow-up existence check.
func (r *UserRepository) LockProvider(ctx context.Context, providerID primitive.ObjectID) (bool, error) {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Users().UpdateOne(ctx,
		bson.M{"_id": providerID, "serviceProvider.isLocked": false},
		bson.M{"$set": bson.M{"serviceProvider.isLocked": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return false, errs.NewDB("users.LockProvider", "update failed", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	n, err := r.db.Users().CountDocuments(ctx, bson.M{"_id": providerID, "serviceProvider": bson.M{"$exists": true}})
	if err != nil {
		return false, errs.NewDB("users.LockProvider", "existence check failed", err)
	}
	if n == 0 {
		return false, errs.NewNotFound("users.LockProvider", "provider not found", nil)
	}
	return false, nil
}

func (r *UserRepository) UnlockProvider(ctx context.Context, providerID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	_, err := r.db.Users().UpdateOne(ctx,
		bson.M{"_id": providerID},
		bson.M{"$set": bson.M{"serviceProvider.isLocked": false, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return errs.NewDB("users.UnlockProvider", "update failed", err)
	}
	return nil
}

// statPaths maps logical stat names to document paths.
var statPaths = map[string]string{
	"posts":             "stats.posts",
	"events":            "stats.events",
	"bookings":          "stats.bookings",
	"completedBookings": "serviceProvider.completedBookings",
}

func (r *UserRepository) IncrementStat(ctx context.Context, id primitive.ObjectID, field string, delta int) error {
	path, ok := statPaths[field]
	if !ok {
		return errs.NewValidation("users.IncrementStat", "unknown stat field "+field, nil)
	}

	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Users().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{path: delta}})
	if err != nil {
		return errs.NewDB("users.IncrementStat", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("users.IncrementStat", "user not found", nil)
	}
	return nil
}
