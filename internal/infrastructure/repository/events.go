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

// EventRepository is the MongoDB-backed domain.EventRepository.
type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ domain.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	if _, err := r.db.Events().InsertOne(ctx, e); err != nil {
		return errs.NewDB("events.Create", "insert failed", err)
	}
	return nil
}

func (r *EventRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	var e models.Event
	err := r.db.Events().FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NewNotFound("events.FindByID", "event not found", err)
	}
	if err != nil {
		return nil, errs.NewDB("events.FindByID", "query failed", err)
	}
	return &e, nil
}

func (r *EventRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, title, description string) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Events().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"title":           title,
			"description":     description,
			"status":          models.StatusPendingReview,
			"moderationNotes": "",
			"updatedAt":       time.Now().UTC(),
		}})
	if err != nil {
		return errs.NewDB("events.UpdateContent", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.UpdateContent", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error) {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Events().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusPendingReview},
		bson.M{"$set": bson.M{
			"status":          to,
			"moderationNotes": notes,
			"updatedAt":       time.Now().UTC(),
		}})
	if err != nil {
		return false, errs.NewDB("events.SetModeration", "update failed", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *EventRepository) SetVerification(ctx context.Context, id primitive.ObjectID, v *models.EventVerification) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Events().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"verification": v, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return errs.NewDB("events.SetVerification", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.SetVerification", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) Archive(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Events().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": models.StatusArchived, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return errs.NewDB("events.Archive", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.Archive", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) AddLike(ctx context.Context, eventID, userID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"likes": bson.M{"$setUnion": bson.A{
				bson.M{"$ifNull": bson.A{"$likes", bson.A{}}},
				bson.A{userID},
			}},
		}},
		bson.M{"$set": bson.M{"likeCount": bson.M{"$size": "$likes"}}},
	}
	res, err := r.db.Events().UpdateOne(ctx, bson.M{"_id": eventID}, pipeline)
	if err != nil {
		return errs.NewDB("events.AddLike", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.AddLike", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) RemoveLike(ctx context.Context, eventID, userID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"likes": bson.M{"$setDifference": bson.A{
				bson.M{"$ifNull": bson.A{"$likes", bson.A{}}},
				bson.A{userID},
			}},
		}},
		bson.M{"$set": bson.M{"likeCount": bson.M{"$size": "$likes"}}},
	}
	res, err := r.db.Events().UpdateOne(ctx, bson.M{"_id": eventID}, pipeline)
	if err != nil {
		return errs.NewDB("events.RemoveLike", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.RemoveLike", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) AddComment(ctx context.Context, eventID primitive.ObjectID, c models.Comment) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	res, err := r.db.Events().UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$push": bson.M{"comments": c},
			"$inc":  bson.M{"commentCount": 1},
		})
	if err != nil {
		return errs.NewDB("events.AddComment", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.AddComment", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) DeleteComment(ctx context.Context, eventID, commentID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"comments": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$comments", bson.A{}}},
				"as":    "c",
				"cond":  bson.M{"$ne": bson.A{"$$c._id", commentID}},
			}},
		}},
		bson.M{"$set": bson.M{"commentCount": bson.M{"$size": "$comments"}}},
	}
	res, err := r.db.Events().UpdateOne(ctx, bson.M{"_id": eventID}, pipeline)
	if err != nil {
		return errs.NewDB("events.DeleteComment", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("events.DeleteComment", "event not found", nil)
	}
	return nil
}

func (r *EventRepository) ListPublished(ctx context.Context, limit, offset int) ([]models.Event, error) {
	return r.list(ctx, "events.ListPublished", bson.M{"status": models.StatusPublished}, limit, offset)
}

func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID primitive.ObjectID, limit, offset int) ([]models.Event, error) {
	return r.list(ctx, "events.ListByOrganizer", bson.M{"organizer": organizerID}, limit, offset)
}

func (r *EventRepository) list(ctx context.Context, op string, filter bson.M, limit, offset int) ([]models.Event, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "startDate", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cur, err := r.db.Events().Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.NewDB(op, "query failed", err)
	}
	var out []models.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.NewDB(op, "decode failed", err)
	}
	return out, nil
}
