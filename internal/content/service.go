// Package content implements blog post and event lifecycles: creation into
// pending review, re-review on edits, engagement (likes, comments) and
// admin archival.
package content

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/geocode"
	"service-marketplace/internal/models"
	"service-marketplace/internal/queue"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
)

// AddressResolver turns a free-form address into coordinates. Optional; a
// nil resolver leaves event locations unset.
type AddressResolver interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

type Service struct {
	posts    domain.PostRepository
	events   domain.EventRepository
	users    domain.UserRepository
	jobs     queue.Enqueuer
	resolver AddressResolver
	log      *logging.ComponentLogger
}

func NewService(posts domain.PostRepository, events domain.EventRepository, users domain.UserRepository, jobs queue.Enqueuer, resolver AddressResolver, log *logging.Logger) *Service {
	return &Service{
		posts:    posts,
		events:   events,
		users:    users,
		jobs:     jobs,
		resolver: resolver,
		log:      log.WithComponent("content"),
	}
}

// CreatePost stores a new post in pending review and enqueues it for
// automated moderation.
func (s *Service) CreatePost(ctx context.Context, actor domain.Actor, title, content string, tags []string) (*models.BlogPost, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errs.NewValidation("content.CreatePost", "title is required", nil)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errs.NewValidation("content.CreatePost", "content is required", nil)
	}

	now := time.Now().UTC()
	post := &models.BlogPost{
		Author:    actor.UserID,
		Title:     title,
		Content:   content,
		Tags:      tags,
		Status:    models.StatusPendingReview,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if err := s.users.IncrementStat(ctx, actor.UserID, "posts", 1); err != nil {
		s.log.Error("post stat increment failed", err, logging.String("user_id", actor.UserID.Hex()))
	}

	if _, err := s.jobs.Enqueue(ctx, queue.QueueContentReview, post.ID.Hex()); err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost replaces the reviewable fields of a post. The post drops back
// to pending review and is re-queued for moderation.
func (s *Service) UpdatePost(ctx context.Context, actor domain.Actor, id primitive.ObjectID, title, content string, tags []string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return errs.NewValidation("content.UpdatePost", "title and content are required", nil)
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(post.Author) && !actor.IsAdmin() {
		return errs.NewUnauthorized("content.UpdatePost", "only the author can edit a post", nil)
	}

	if err := s.posts.UpdateContent(ctx, id, title, content, tags); err != nil {
		return err
	}
	if _, err := s.jobs.Enqueue(ctx, queue.QueueContentReview, id.Hex()); err != nil {
		return err
	}
	return nil
}

// GetPost applies visibility: published posts are public, everything else
// only the author and admins can see.
func (s *Service) GetPost(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*models.BlogPost, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != models.StatusPublished && !actor.Is(post.Author) && !actor.IsAdmin() {
		return nil, errs.NewNotFound("content.GetPost", "post not found", nil)
	}
	return post, nil
}

func (s *Service) ListPublishedPosts(ctx context.Context, limit, offset int) ([]models.BlogPost, error) {
	return s.posts.ListPublished(ctx, limit, offset)
}

func (s *Service) ListPostsByAuthor(ctx context.Context, authorID primitive.ObjectID, limit, offset int) ([]models.BlogPost, error) {
	return s.posts.ListByAuthor(ctx, authorID, limit, offset)
}

// LikePost records a like. Adding the same like twice is a no-op.
func (s *Service) LikePost(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if err := s.requirePublishedPost(ctx, id, "content.LikePost"); err != nil {
		return err
	}
	return s.posts.AddLike(ctx, id, actor.UserID)
}

func (s *Service) UnlikePost(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if err := s.requirePublishedPost(ctx, id, "content.UnlikePost"); err != nil {
		return err
	}
	return s.posts.RemoveLike(ctx, id, actor.UserID)
}

// CommentPost appends a comment to a published post.
func (s *Service) CommentPost(ctx context.Context, actor domain.Actor, id primitive.ObjectID, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.NewValidation("content.CommentPost", "comment text is required", nil)
	}
	if err := s.requirePublishedPost(ctx, id, "content.CommentPost"); err != nil {
		return err
	}
	return s.posts.AddComment(ctx, id, models.Comment{
		ID:        primitive.NewObjectID(),
		Author:    actor.UserID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
}

// DeletePostComment removes a comment. Only the comment's author or an
// admin can delete it; the stored count is rederived in the same write.
func (s *Service) DeletePostComment(ctx context.Context, actor domain.Actor, postID, commentID primitive.ObjectID) error {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	comment := findComment(post.Comments, commentID)
	if comment == nil {
		return errs.NewNotFound("content.DeletePostComment", "comment not found", nil)
	}
	if !actor.Is(comment.Author) && !actor.IsAdmin() {
		return errs.NewUnauthorized("content.DeletePostComment", "only the comment author can delete it", nil)
	}
	return s.posts.DeleteComment(ctx, postID, commentID)
}

func findComment(comments []models.Comment, id primitive.ObjectID) *models.Comment {
	for i := range comments {
		if comments[i].ID == id {
			return &comments[i]
		}
	}
	return nil
}

// ArchivePost moves a post to the terminal archived state. Archiving is an
// admin action and works from any status; an archived post never re-enters
// review.
func (s *Service) ArchivePost(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return errs.NewUnauthorized("content.ArchivePost", "only admins can archive posts", nil)
	}
	if err := s.posts.Archive(ctx, id); err != nil {
		return err
	}
	s.log.Info("post archived", logging.String("entity_id", id.Hex()))
	return nil
}

func (s *Service) requirePublishedPost(ctx context.Context, id primitive.ObjectID, op string) error {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Status != models.StatusPublished {
		return errs.NewConflict(op, "post is not published", nil)
	}
	return nil
}

// EventInput carries the fields of a new event.
type EventInput struct {
	Title       string
	Description string
	Category    string
	Address     string
	StartDate   time.Time
	EndDate     time.Time
	Capacity    int
}

// CreateEvent stores a new event in pending review and enqueues it for
// verification. The address is geocoded when a resolver is configured;
// geocoding failures are logged, not fatal.
func (s *Service) CreateEvent(ctx context.Context, actor domain.Actor, in EventInput) (*models.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errs.NewValidation("content.CreateEvent", "title is required", nil)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, errs.NewValidation("content.CreateEvent", "description is required", nil)
	}
	if in.StartDate.IsZero() || !in.EndDate.After(in.StartDate) {
		return nil, errs.NewValidation("content.CreateEvent", "end date must be after start date", nil)
	}
	if in.StartDate.Before(time.Now()) {
		return nil, errs.NewValidation("content.CreateEvent", "event must start in the future", nil)
	}
	if in.Capacity < 0 {
		return nil, errs.NewValidation("content.CreateEvent", "capacity cannot be negative", nil)
	}

	now := time.Now().UTC()
	event := &models.Event{
		Organizer:   actor.UserID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Address:     in.Address,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Capacity:    in.Capacity,
		Status:      models.StatusPendingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if s.resolver != nil && in.Address != "" {
		if res, err := s.resolver.Geocode(ctx, in.Address); err != nil {
			s.log.Warn("event geocoding failed",
				logging.String("address", in.Address),
				logging.String("error", err.Error()))
		} else {
			loc := res.Point
			event.Location = &loc
		}
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	if err := s.users.IncrementStat(ctx, actor.UserID, "events", 1); err != nil {
		s.log.Error("event stat increment failed", err, logging.String("user_id", actor.UserID.Hex()))
	}

	if _, err := s.jobs.Enqueue(ctx, queue.QueueEventReview, event.ID.Hex()); err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateEvent replaces the reviewable fields and re-queues verification.
func (s *Service) UpdateEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID, title, description string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return errs.NewValidation("content.UpdateEvent", "title and description are required", nil)
	}

	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(event.Organizer) && !actor.IsAdmin() {
		return errs.NewUnauthorized("content.UpdateEvent", "only the organizer can edit an event", nil)
	}

	if err := s.events.UpdateContent(ctx, id, title, description); err != nil {
		return err
	}
	if _, err := s.jobs.Enqueue(ctx, queue.QueueEventReview, id.Hex()); err != nil {
		return err
	}
	return nil
}

func (s *Service) GetEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != models.StatusPublished && !actor.Is(event.Organizer) && !actor.IsAdmin() {
		return nil, errs.NewNotFound("content.GetEvent", "event not found", nil)
	}
	return event, nil
}

func (s *Service) ListPublishedEvents(ctx context.Context, limit, offset int) ([]models.Event, error) {
	return s.events.ListPublished(ctx, limit, offset)
}

func (s *Service) ListEventsByOrganizer(ctx context.Context, organizerID primitive.ObjectID, limit, offset int) ([]models.Event, error) {
	return s.events.ListByOrganizer(ctx, organizerID, limit, offset)
}

func (s *Service) LikeEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if err := s.requirePublishedEvent(ctx, id, "content.LikeEvent"); err != nil {
		return err
	}
	return s.events.AddLike(ctx, id, actor.UserID)
}

func (s *Service) UnlikeEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if err := s.requirePublishedEvent(ctx, id, "content.UnlikeEvent"); err != nil {
		return err
	}
	return s.events.RemoveLike(ctx, id, actor.UserID)
}

func (s *Service) CommentEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID, text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.NewValidation("content.CommentEvent", "comment text is required", nil)
	}
	if err := s.requirePublishedEvent(ctx, id, "content.CommentEvent"); err != nil {
		return err
	}
	return s.events.AddComment(ctx, id, models.Comment{
		ID:        primitive.NewObjectID(),
		Author:    actor.UserID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
}

// DeleteEventComment removes a comment from an event; same rules as posts.
func (s *Service) DeleteEventComment(ctx context.Context, actor domain.Actor, eventID, commentID primitive.ObjectID) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return err
	}
	comment := findComment(event.Comments, commentID)
	if comment == nil {
		return errs.NewNotFound("content.DeleteEventComment", "comment not found", nil)
	}
	if !actor.Is(comment.Author) && !actor.IsAdmin() {
		return errs.NewUnauthorized("content.DeleteEventComment", "only the comment author can delete it", nil)
	}
	return s.events.DeleteComment(ctx, eventID, commentID)
}

// ArchiveEvent moves an event to the terminal archived state. Admin only.
func (s *Service) ArchiveEvent(ctx context.Context, actor domain.Actor, id primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return errs.NewUnauthorized("content.ArchiveEvent", "only admins can archive events", nil)
	}
	if err := s.events.Archive(ctx, id); err != nil {
		return err
	}
	s.log.Info("event archived", logging.String("entity_id", id.Hex()))
	return nil
}

func (s *Service) requirePublishedEvent(ctx context.Context, id primitive.ObjectID, op string) error {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if event.Status != models.StatusPublished {
		return errs.NewConflict(op, "event is not published", nil)
	}
	return nil
}
