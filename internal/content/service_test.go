package content

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/domain"
	"service-marketplace/internal/models"
	"service-marketplace/internal/queue"
	testutil "service-marketplace/internal/testing"
	errs "service-marketplace/pkg/errors"
	"service-marketplace/pkg/logging"
)

type fixture struct {
	svc    *Service
	posts  *testutil.MockPostRepo
	events *testutil.MockEventRepo
	users  *testutil.MockUserRepo
	jobs   *testutil.MockEnqueuer
	author domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	posts := testutil.NewMockPostRepo()
	events := testutil.NewMockEventRepo()
	users := testutil.NewMockUserRepo()
	jobs := testutil.NewMockEnqueuer()

	author := &models.User{Name: "Ana", Role: models.RoleCustomer}
	users.Create(context.Background(), author)

	return &fixture{
		svc:    NewService(posts, events, users, jobs, nil, log),
		posts:  posts,
		events: events,
		users:  users,
		jobs:   jobs,
		author: domain.Actor{UserID: author.ID, Role: author.Role},
	}
}

func (f *fixture) eventInput() EventInput {
	start := time.Now().Add(48 * time.Hour)
	return EventInput{
		Title:       "Community yoga",
		Description: "Sunday mornings at the park.",
		Category:    "fitness",
		Address:     "1 Park Ave",
		StartDate:   start,
		EndDate:     start.Add(2 * time.Hour),
		Capacity:    30,
	}
}

func TestCreatePostQueuesReview(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreatePost(context.Background(), f.author, "Grooming basics", "Brush daily.", []string{"pets"})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Status != models.StatusPendingReview {
		t.Errorf("status = %q, want pending_review", post.Status)
	}

	queued := f.jobs.ByQueue(queue.QueueContentReview)
	if len(queued) != 1 || queued[0] != post.ID.Hex() {
		t.Errorf("queued = %v, want [%s]", queued, post.ID.Hex())
	}

	u, _ := f.users.FindByID(context.Background(), f.author.UserID)
	if u.Stats.Posts != 1 {
		t.Errorf("posts stat = %d, want 1", u.Stats.Posts)
	}
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name           string
		title, content string
	}{
		{"empty title", "", "body"},
		{"empty content", "title", ""},
		{"whitespace title", "   ", "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePost(context.Background(), f.author, tc.title, tc.content, nil)
			if !errs.Is(err, errs.ErrValidation) {
				t.Errorf("want validation error, got %v", err)
			}
		})
	}
	if len(f.jobs.Enqueued) != 0 {
		t.Error("invalid posts must not be queued")
	}
}

func TestUpdatePostTriggersReReview(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)

	// Simulate the moderation worker publishing it
	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	if err := f.svc.UpdatePost(context.Background(), f.author, post.ID, "New title", "New body", nil); err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}

	got, _ := f.posts.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusPendingReview {
		t.Errorf("edited post should be pending review, got %q", got.Status)
	}
	if n := len(f.jobs.ByQueue(queue.QueueContentReview)); n != 2 {
		t.Errorf("review jobs = %d, want 2", n)
	}
}

func TestUpdatePostAuthorization(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)

	stranger := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	err := f.svc.UpdatePost(context.Background(), stranger, post.ID, "X", "Y", nil)
	if !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("want unauthorized, got %v", err)
	}

	admin := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	if err := f.svc.UpdatePost(context.Background(), admin, post.ID, "X", "Y", nil); err != nil {
		t.Errorf("admin edit should pass: %v", err)
	}
}

func TestGetPostVisibility(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)

	stranger := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	if _, err := f.svc.GetPost(context.Background(), stranger, post.ID); !errs.Is(err, errs.ErrNotFound) {
		t.Errorf("pending post should be hidden from strangers, got %v", err)
	}
	if _, err := f.svc.GetPost(context.Background(), f.author, post.ID); err != nil {
		t.Errorf("author should see own pending post: %v", err)
	}

	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")
	if _, err := f.svc.GetPost(context.Background(), stranger, post.ID); err != nil {
		t.Errorf("published post should be public: %v", err)
	}
}

func TestLikePostIdempotent(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)
	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	liker := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	for i := 0; i < 2; i++ {
		if err := f.svc.LikePost(context.Background(), liker, post.ID); err != nil {
			t.Fatalf("LikePost: %v", err)
		}
	}
	got, _ := f.posts.FindByID(context.Background(), post.ID)
	if got.LikeCount != 1 {
		t.Errorf("like count = %d, want 1", got.LikeCount)
	}

	if err := f.svc.UnlikePost(context.Background(), liker, post.ID); err != nil {
		t.Fatalf("UnlikePost: %v", err)
	}
	got, _ = f.posts.FindByID(context.Background(), post.ID)
	if got.LikeCount != 0 {
		t.Errorf("like count after unlike = %d, want 0", got.LikeCount)
	}
}

func TestLikeUnpublishedPostRejected(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)

	err := f.svc.LikePost(context.Background(), f.author, post.ID)
	if !errs.Is(err, errs.ErrConflict) {
		t.Errorf("want conflict, got %v", err)
	}
}

func TestCommentPost(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)
	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	if err := f.svc.CommentPost(context.Background(), f.author, post.ID, "nice"); err != nil {
		t.Fatalf("CommentPost: %v", err)
	}
	if err := f.svc.CommentPost(context.Background(), f.author, post.ID, "  "); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("empty comment should fail validation, got %v", err)
	}

	got, _ := f.posts.FindByID(context.Background(), post.ID)
	if got.CommentCount != 1 {
		t.Errorf("comment count = %d, want 1", got.CommentCount)
	}
}

func TestDeletePostComment(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)
	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	commenter := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCustomer}
	f.svc.CommentPost(context.Background(), f.author, post.ID, "first")
	f.svc.CommentPost(context.Background(), commenter, post.ID, "second")

	got, _ := f.posts.FindByID(context.Background(), post.ID)
	target := got.Comments[1]

	// Someone else's comment cannot be deleted
	if err := f.svc.DeletePostComment(context.Background(), f.author, post.ID, target.ID); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("deleting another user's comment should be unauthorized, got %v", err)
	}

	if err := f.svc.DeletePostComment(context.Background(), commenter, post.ID, target.ID); err != nil {
		t.Fatalf("DeletePostComment: %v", err)
	}
	got, _ = f.posts.FindByID(context.Background(), post.ID)
	if len(got.Comments) != 1 || got.CommentCount != 1 {
		t.Errorf("comments = %d, count = %d, want 1/1", len(got.Comments), got.CommentCount)
	}

	missing := primitive.NewObjectID()
	if err := f.svc.DeletePostComment(context.Background(), commenter, post.ID, missing); !errs.Is(err, errs.ErrNotFound) {
		t.Errorf("deleting an absent comment should be not found, got %v", err)
	}
}

func TestDeleteEventCommentAdminOverride(t *testing.T) {
	f := newFixture(t)
	event, _ := f.svc.CreateEvent(context.Background(), f.author, f.eventInput())
	f.events.SetModeration(context.Background(), event.ID, models.StatusPublished, "")

	f.svc.CommentEvent(context.Background(), f.author, event.ID, "see you there")
	got, _ := f.events.FindByID(context.Background(), event.ID)

	admin := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	if err := f.svc.DeleteEventComment(context.Background(), admin, event.ID, got.Comments[0].ID); err != nil {
		t.Fatalf("DeleteEventComment: %v", err)
	}
	got, _ = f.events.FindByID(context.Background(), event.ID)
	if len(got.Comments) != 0 || got.CommentCount != 0 {
		t.Errorf("comments = %d, count = %d, want 0/0", len(got.Comments), got.CommentCount)
	}
}

func TestArchivePostAdminOnly(t *testing.T) {
	f := newFixture(t)
	post, _ := f.svc.CreatePost(context.Background(), f.author, "Title", "Body", nil)
	f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	if err := f.svc.ArchivePost(context.Background(), f.author, post.ID); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("author archive should be unauthorized, got %v", err)
	}

	admin := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	if err := f.svc.ArchivePost(context.Background(), admin, post.ID); err != nil {
		t.Fatalf("ArchivePost: %v", err)
	}
	got, _ := f.posts.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusArchived {
		t.Errorf("status = %q, want archived", got.Status)
	}

	// Archived is terminal: engagement and moderation stop.
	if err := f.svc.LikePost(context.Background(), f.author, post.ID); !errs.Is(err, errs.ErrConflict) {
		t.Errorf("liking an archived post should conflict, got %v", err)
	}
	if ok, _ := f.posts.SetModeration(context.Background(), post.ID, models.StatusPublished, ""); ok {
		t.Error("archived post must not re-enter moderation")
	}
}

func TestArchiveEventAdminOnly(t *testing.T) {
	f := newFixture(t)
	event, _ := f.svc.CreateEvent(context.Background(), f.author, f.eventInput())

	if err := f.svc.ArchiveEvent(context.Background(), f.author, event.ID); !errs.Is(err, errs.ErrUnauthorized) {
		t.Errorf("organizer archive should be unauthorized, got %v", err)
	}

	admin := domain.Actor{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}
	if err := f.svc.ArchiveEvent(context.Background(), admin, event.ID); err != nil {
		t.Fatalf("ArchiveEvent: %v", err)
	}
	got, _ := f.events.FindByID(context.Background(), event.ID)
	if got.Status != models.StatusArchived {
		t.Errorf("status = %q, want archived", got.Status)
	}
}

func TestCreateEventQueuesVerification(t *testing.T) {
	f := newFixture(t)

	event, err := f.svc.CreateEvent(context.Background(), f.author, f.eventInput())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if event.Status != models.StatusPendingReview {
		t.Errorf("status = %q, want pending_review", event.Status)
	}
	queued := f.jobs.ByQueue(queue.QueueEventReview)
	if len(queued) != 1 || queued[0] != event.ID.Hex() {
		t.Errorf("queued = %v", queued)
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)

	in := f.eventInput()
	in.EndDate = in.StartDate
	if _, err := f.svc.CreateEvent(context.Background(), f.author, in); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("zero-length event should fail, got %v", err)
	}

	in = f.eventInput()
	in.StartDate = time.Now().Add(-time.Hour)
	in.EndDate = time.Now().Add(time.Hour)
	if _, err := f.svc.CreateEvent(context.Background(), f.author, in); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("past event should fail, got %v", err)
	}

	in = f.eventInput()
	in.Title = ""
	if _, err := f.svc.CreateEvent(context.Background(), f.author, in); !errs.Is(err, errs.ErrValidation) {
		t.Errorf("missing title should fail, got %v", err)
	}
}

func TestUpdateEventTriggersReVerification(t *testing.T) {
	f := newFixture(t)
	event, _ := f.svc.CreateEvent(context.Background(), f.author, f.eventInput())
	f.events.SetModeration(context.Background(), event.ID, models.StatusPublished, "")

	if err := f.svc.UpdateEvent(context.Background(), f.author, event.ID, "New title", "New description"); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	got, _ := f.events.FindByID(context.Background(), event.ID)
	if got.Status != models.StatusPendingReview {
		t.Errorf("edited event should be pending review, got %q", got.Status)
	}
	if n := len(f.jobs.ByQueue(queue.QueueEventReview)); n != 2 {
		t.Errorf("verification jobs = %d, want 2", n)
	}
}
