package worker

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/models"
	"service-marketplace/internal/queue"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
)

// ContentReviewer is the subset of the reviewer the content handler needs.
type ContentReviewer interface {
	ReviewContent(ctx context.Context, title, body string, tags []string) (*domain.ReviewVerdict, error)
}

// EventVerifier is the subset of the reviewer the event handler needs.
type EventVerifier interface {
	VerifyEvent(ctx context.Context, title, description, address string, start time.Time) (*domain.ReviewVerdict, error)
}

// EmbeddingGenerator produces a profile embedding for search.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// ContentReviewHandler moderates blog posts sitting in pending review.
type ContentReviewHandler struct {
	posts    domain.PostRepository
	reviewer ContentReviewer
	log      *logging.ComponentLogger
}

func NewContentReviewHandler(posts domain.PostRepository, rev ContentReviewer, log *logging.Logger) *ContentReviewHandler {
	return &ContentReviewHandler{posts: posts, reviewer: rev, log: log.WithComponent("content_review")}
}

// Handle is idempotent: a post that is no longer pending review, or no
// longer exists, is acknowledged without changes.
func (h *ContentReviewHandler) Handle(ctx context.Context, job queue.Job) error {
	id, err := primitive.ObjectIDFromHex(job.EntityID)
	if err != nil {
		return errs.NewValidation("worker.ContentReview", "bad entity id", err)
	}

	post, err := h.posts.FindByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			h.log.Info("post gone, skipping review", logging.String("entity_id", job.EntityID))
			return nil
		}
		return err
	}
	if post.Status != models.StatusPendingReview {
		h.log.Debug("post not pending review, skipping",
			logging.String("entity_id", job.EntityID),
			logging.String("status", post.Status))
		return nil
	}

	title, body := post.ReviewableText()
	verdict, err := h.reviewer.ReviewContent(ctx, title, body, post.Tags)
	if err != nil {
		if errs.Is(err, errs.ErrValidation) {
			// Nothing to review; reject rather than retry forever.
			return h.decide(ctx, job, id, false, "no reviewable text")
		}
		return err
	}
	return h.decide(ctx, job, id, verdict.Accepted, verdict.Reason)
}

func (h *ContentReviewHandler) decide(ctx context.Context, job queue.Job, id primitive.ObjectID, accepted bool, reason string) error {
	to := models.StatusRejected
	notes := reason
	if accepted {
		to = models.StatusPublished
		notes = ""
	}
	matched, err := h.posts.SetModeration(ctx, id, to, notes)
	if err != nil {
		return err
	}
	if !matched {
		// Post was edited or decided concurrently; the newer state wins.
		h.log.Info("stale review decision dropped",
			logging.String("entity_id", job.EntityID),
			logging.String("job_id", job.ID))
		return nil
	}
	h.log.Info("post moderated",
		logging.String("entity_id", job.EntityID),
		logging.String("status", to))
	return nil
}

// EventReviewHandler verifies events sitting in pending review.
type EventReviewHandler struct {
	events   domain.EventRepository
	verifier EventVerifier
	log      *logging.ComponentLogger
}

func NewEventReviewHandler(events domain.EventRepository, v EventVerifier, log *logging.Logger) *EventReviewHandler {
	return &EventReviewHandler{events: events, verifier: v, log: log.WithComponent("event_review")}
}

func (h *EventReviewHandler) Handle(ctx context.Context, job queue.Job) error {
	id, err := primitive.ObjectIDFromHex(job.EntityID)
	if err != nil {
		return errs.NewValidation("worker.EventReview", "bad entity id", err)
	}

	event, err := h.events.FindByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			h.log.Info("event gone, skipping verification", logging.String("entity_id", job.EntityID))
			return nil
		}
		return err
	}
	if event.Status != models.StatusPendingReview {
		h.log.Debug("event not pending review, skipping",
			logging.String("entity_id", job.EntityID),
			logging.String("status", event.Status))
		return nil
	}

	title, body := event.ReviewableText()
	verdict, err := h.verifier.VerifyEvent(ctx, title, body, event.Address, event.StartDate)
	if err != nil {
		if errs.Is(err, errs.ErrValidation) {
			return h.decide(ctx, job, id, &domain.ReviewVerdict{
				Kind:     domain.VerdictEvent,
				Accepted: false,
				Reason:   "no reviewable text",
				At:       time.Now().UTC(),
			})
		}
		return err
	}
	return h.decide(ctx, job, id, verdict)
}

func (h *EventReviewHandler) decide(ctx context.Context, job queue.Job, id primitive.ObjectID, verdict *domain.ReviewVerdict) error {
	to := models.StatusRejected
	notes := verdict.Reason
	if verdict.Accepted {
		to = models.StatusPublished
		notes = ""
	}
	matched, err := h.events.SetModeration(ctx, id, to, notes)
	if err != nil {
		return err
	}
	if !matched {
		h.log.Info("stale verification decision dropped",
			logging.String("entity_id", job.EntityID),
			logging.String("job_id", job.ID))
		return nil
	}

	if err := h.events.SetVerification(ctx, id, &models.EventVerification{
		Legitimate: verdict.Accepted,
		Reason:     verdict.Reason,
		Sources:    verdict.Sources,
		VerifiedAt: verdict.At,
	}); err != nil {
		h.log.Error("store verification failed", err, logging.String("entity_id", job.EntityID))
	}

	h.log.Info("event moderated",
		logging.String("entity_id", job.EntityID),
		logging.String("status", to))
	return nil
}

// EmbeddingHandler generates and stores the profile embedding for a user.
type EmbeddingHandler struct {
	users     domain.UserRepository
	generator EmbeddingGenerator
	log       *logging.ComponentLogger
}

func NewEmbeddingHandler(users domain.UserRepository, gen EmbeddingGenerator, log *logging.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{users: users, generator: gen, log: log.WithComponent("embedding")}
}

func (h *EmbeddingHandler) Handle(ctx context.Context, job queue.Job) error {
	id, err := primitive.ObjectIDFromHex(job.EntityID)
	if err != nil {
		return errs.NewValidation("worker.Embedding", "bad entity id", err)
	}

	user, err := h.users.FindByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			h.log.Info("user gone, skipping embedding", logging.String("entity_id", job.EntityID))
			return nil
		}
		return err
	}

	text := strings.TrimSpace(user.SearchDocument())
	if text == "" {
		h.log.Debug("empty profile, skipping embedding", logging.String("entity_id", job.EntityID))
		return nil
	}

	vec, err := h.generator.Generate(ctx, text)
	if err != nil {
		return err
	}
	if err := h.users.UpdateEmbedding(ctx, id, vec); err != nil {
		return err
	}

	h.log.Info("embedding updated",
		logging.String("entity_id", job.EntityID),
		logging.Int("dimensions", len(vec)))
	return nil
}
