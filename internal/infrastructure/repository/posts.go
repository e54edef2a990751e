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

// PostRepository is the MongoDB-backed domain.PostRepository.
type PostRepository struct {
	db *database.DB
}

func NewPostRepository(db *database.DB) *PostRepository {
	return &PostRepository{db: db}
}

var _ domain.PostRepository = (*PostRepository)(nil)

func (r *PostRepository) Create(ctx context.Context, p *models.BlogPost) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := r.db.Posts().InsertOne(ctx, p); err != nil {
		return errs.NewDB("posts.Create", "insert failed", err)
	}
	return nil
}

func (r *PostRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.BlogPost, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	var p models.BlogPost
	err := r.db.Posts().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, errs.NewNotFound("posts.FindByID", "post not found", err)
	}
	if err != nil {
		return nil, errs.NewDB("posts.FindByID", "query failed", err)
	}
	return &p, nil
}

// UpdateContent replaces the reviewable fields and resets the post to
// pending review in the same write, so there is no window where edited
// content stays published.
func (r *PostRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, title, content string, tags []string) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Posts().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"title":           title,
			"content":         content,
			"tags":            tags,
			"status":          models.StatusPendingReview,
			"moderationNotes": "",
			"updatedAt":       time.Now().UTC(),
		}})
	if err != nil {
		return errs.NewDB("posts.UpdateContent", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.UpdateContent", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) SetModeration(ctx context.Context, id primitive.ObjectID, to string, notes string) (bool, error) {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Posts().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusPendingReview},
		bson.M{"$set": bson.M{
			"status":          to,
			"moderationNotes": notes,
			"updatedAt":       time.Now().UTC(),
		}})
	if err != nil {
		return false, errs.NewDB("posts.SetModeration", "update failed", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *PostRepository) Archive(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	res, err := r.db.Posts().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": models.StatusArchived, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return errs.NewDB("posts.Archive", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.Archive", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) AddLike(ctx context.Context, postID, userID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	// $addToSet keeps likes idempotent; the count is recomputed from the
	// array so a repeated like never inflates it.
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"likes": bson.M{"$setUnion": bson.A{
				bson.M{"$ifNull": bson.A{"$likes", bson.A{}}},
				bson.A{userID},
			}},
		}},
		bson.M{"$set": bson.M{"likeCount": bson.M{"$size": "$likes"}}},
	}
	res, err := r.db.Posts().UpdateOne(ctx, bson.M{"_id": postID}, pipeline)
	if err != nil {
		return errs.NewDB("posts.AddLike", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.AddLike", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) RemoveLike(ctx context.Context, postID, userID primitive.ObjectID) error {
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
	res, err := r.db.Posts().UpdateOne(ctx, bson.M{"_id": postID}, pipeline)
	if err != nil {
		return errs.NewDB("posts.RemoveLike", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.RemoveLike", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) AddComment(ctx context.Context, postID primitive.ObjectID, c models.Comment) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	res, err := r.db.Posts().UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{
			"$push": bson.M{"comments": c},
			"$inc":  bson.M{"commentCount": 1},
		})
	if err != nil {
		return errs.NewDB("posts.AddComment", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.AddComment", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) DeleteComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	ctx, cancel := r.db.WithWriteTimeout(ctx)
	defer cancel()

	// The count is rederived from the filtered array in the same write, so
	// it can never drift from the array length.
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
	res, err := r.db.Posts().UpdateOne(ctx, bson.M{"_id": postID}, pipeline)
	if err != nil {
		return errs.NewDB("posts.DeleteComment", "update failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.NewNotFound("posts.DeleteComment", "post not found", nil)
	}
	return nil
}

func (r *PostRepository) ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, error) {
	return r.list(ctx, "posts.ListPublished", bson.M{"status": models.StatusPublished}, limit, offset)
}

func (r *PostRepository) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit, offset int) ([]models.BlogPost, error) {
	return r.list(ctx, "posts.ListByAuthor", bson.M{"author": authorID}, limit, offset)
}

func (r *PostRepository) list(ctx context.Context, op string, filter bson.M, limit, offset int) ([]models.BlogPost, error) {
	ctx, cancel := r.db.WithReadTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cur, err := r.db.Posts().Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.NewDB(op, "query failed", err)
	}
	var out []models.BlogPost
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.NewDB(op, "decode failed", err)
	}
	return out, nil
}
