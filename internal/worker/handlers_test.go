package worker

import (
	"context"
	"errors"
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

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

type stubReviewer struct {
	verdict *domain.ReviewVerdict
	err     error
	calls   int
}

func (s *stubReviewer) ReviewContent(ctx context.Context, title, body string, tags []string) (*domain.ReviewVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

func (s *stubReviewer) VerifyEvent(ctx context.Context, title, description, address string, start time.Time) (*domain.ReviewVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

type stubGenerator struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func pendingPost(repo *testutil.MockPostRepo) *models.BlogPost {
	p := &models.BlogPost{
		Author:  primitive.NewObjectID(),
		Title:   "Grooming basics",
		Content: "Brush daily.",
		Status:  models.StatusPendingReview,
	}
	repo.Create(context.Background(), p)
	return p
}

func jobFor(q string, id primitive.ObjectID) queue.Job {
	return queue.Job{ID: primitive.NewObjectID().Hex(), Queue: q, EntityID: id.Hex(), Attempt: 1}
}

func TestContentReviewPublishes(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	post := pendingPost(repo)
	rev := &stubReviewer{verdict: &domain.ReviewVerdict{Kind: domain.VerdictContent, Accepted: true, Reason: "fine"}}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, post.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := repo.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusPublished {
		t.Errorf("status = %q, want published", got.Status)
	}
	if got.ModerationNotes != "" {
		t.Errorf("published post should have empty moderation notes, got %q", got.ModerationNotes)
	}
}

func TestContentReviewRejectsWithReason(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	post := pendingPost(repo)
	rev := &stubReviewer{verdict: &domain.ReviewVerdict{Kind: domain.VerdictContent, Accepted: false, Reason: "spam links"}}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, post.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := repo.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if got.ModerationNotes != "spam links" {
		t.Errorf("moderation notes = %q", got.ModerationNotes)
	}
}

func TestContentReviewIdempotentWhenNotPending(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	post := pendingPost(repo)
	repo.SetModeration(context.Background(), post.ID, models.StatusPublished, "")

	rev := &stubReviewer{verdict: &domain.ReviewVerdict{Accepted: false, Reason: "x"}}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, post.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rev.calls != 0 {
		t.Error("reviewer should not be called for a decided post")
	}
	got, _ := repo.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusPublished {
		t.Errorf("decision was clobbered: %q", got.Status)
	}
}

func TestContentReviewMissingPostAcked(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	rev := &stubReviewer{}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, primitive.NewObjectID())); err != nil {
		t.Fatalf("missing post should be idempotent success, got %v", err)
	}
}

func TestContentReviewBadEntityID(t *testing.T) {
	h := NewContentReviewHandler(testutil.NewMockPostRepo(), &stubReviewer{}, testLogger(t))
	err := h.Handle(context.Background(), queue.Job{EntityID: "not-an-oid"})
	if !errs.Is(err, errs.ErrValidation) {
		t.Errorf("want validation error, got %v", err)
	}
}

func TestContentReviewUpstreamErrorPropagates(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	post := pendingPost(repo)
	rev := &stubReviewer{err: errs.NewUpstream("test", "openai", "boom", errors.New("boom"))}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, post.ID)); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
	got, _ := repo.FindByID(context.Background(), post.ID)
	if got.Status != models.StatusPendingReview {
		t.Errorf("post should stay pending on upstream failure, got %q", got.Status)
	}
}

func TestContentReviewEmptyTextRejects(t *testing.T) {
	repo := testutil.NewMockPostRepo()
	p := &models.BlogPost{Author: primitive.NewObjectID(), Status: models.StatusPendingReview}
	repo.Create(context.Background(), p)

	rev := &stubReviewer{err: errs.NewValidation("reviewer", "empty", nil)}
	h := NewContentReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueContentReview, p.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got, _ := repo.FindByID(context.Background(), p.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("empty post should be rejected, got %q", got.Status)
	}
}

func TestEventReviewStoresVerification(t *testing.T) {
	repo := testutil.NewMockEventRepo()
	e := &models.Event{
		Organizer:   primitive.NewObjectID(),
		Title:       "Community yoga",
		Description: "Sunday mornings at the park.",
		Address:     "1 Park Ave",
		StartDate:   time.Now().Add(48 * time.Hour),
		Status:      models.StatusPendingReview,
	}
	repo.Create(context.Background(), e)

	rev := &stubReviewer{verdict: &domain.ReviewVerdict{
		Kind:     domain.VerdictEvent,
		Accepted: true,
		Reason:   "park events page lists it",
		Sources:  []string{"https://example.com/park"},
		At:       time.Now().UTC(),
	}}
	h := NewEventReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueEventReview, e.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := repo.FindByID(context.Background(), e.ID)
	if got.Status != models.StatusPublished {
		t.Errorf("status = %q, want published", got.Status)
	}
	if got.Verification == nil || !got.Verification.Legitimate {
		t.Fatalf("verification not stored: %+v", got.Verification)
	}
	if len(got.Verification.Sources) != 1 {
		t.Errorf("sources = %v", got.Verification.Sources)
	}
}

func TestEventReviewRejectsIllegitimate(t *testing.T) {
	repo := testutil.NewMockEventRepo()
	e := &models.Event{
		Organizer:   primitive.NewObjectID(),
		Title:       "Get rich seminar",
		Description: "Guaranteed returns.",
		Status:      models.StatusPendingReview,
	}
	repo.Create(context.Background(), e)

	rev := &stubReviewer{verdict: &domain.ReviewVerdict{Kind: domain.VerdictEvent, Accepted: false, Reason: "obvious scam"}}
	h := NewEventReviewHandler(repo, rev, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueEventReview, e.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := repo.FindByID(context.Background(), e.ID)
	if got.Status != models.StatusRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if got.ModerationNotes != "obvious scam" {
		t.Errorf("notes = %q", got.ModerationNotes)
	}
}

func TestEmbeddingHandlerUpdatesVector(t *testing.T) {
	users := testutil.NewMockUserRepo()
	u := &models.User{
		Name: "Ana",
		Bio:  "Certified dog trainer",
		Role: models.RoleProvider,
		ServiceProvider: &models.ServiceProviderProfile{
			Skills: []string{"obedience", "agility"},
		},
	}
	users.Create(context.Background(), u)

	gen := &stubGenerator{vec: []float32{0.1, 0.2, 0.3}}
	h := NewEmbeddingHandler(users, gen, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueEmbedding, u.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := users.Embeddings[u.ID]; len(got) != 3 {
		t.Errorf("embedding not stored: %v", got)
	}
}

func TestEmbeddingHandlerEmptyProfileSkips(t *testing.T) {
	users := testutil.NewMockUserRepo()
	u := &models.User{}
	users.Create(context.Background(), u)

	gen := &stubGenerator{vec: []float32{0.1}}
	h := NewEmbeddingHandler(users, gen, testLogger(t))

	if err := h.Handle(context.Background(), jobFor(queue.QueueEmbedding, u.ID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gen.calls != 0 {
		t.Error("generator should not run for empty profiles")
	}
}

func TestEmbeddingHandlerMissingUserAcked(t *testing.T) {
	h := NewEmbeddingHandler(testutil.NewMockUserRepo(), &stubGenerator{}, testLogger(t))
	if err := h.Handle(context.Background(), jobFor(queue.QueueEmbedding, primitive.NewObjectID())); err != nil {
		t.Fatalf("missing user should be idempotent success, got %v", err)
	}
}
