package queue

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAttemptsFromHeaders(t *testing.T) {
	cases := []struct {
		name string
		h    amqp.Table
		want int
	}{
		{"missing", amqp.Table{}, 1},
		{"nil table", nil, 1},
		{"int32", amqp.Table{attemptsHeader: int32(3)}, 3},
		{"int64", amqp.Table{attemptsHeader: int64(5)}, 5},
		{"int", amqp.Table{attemptsHeader: 2}, 2},
		{"wrong type", amqp.Table{attemptsHeader: "seven"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := attemptsFromHeaders(tc.h); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestJobRoundTrip(t *testing.T) {
	job := Job{
		ID:         "64f0c0ffee0ddba11ca7e57a",
		Queue:      QueueContentReview,
		EntityID:   "64f0c0ffee0ddba11ca7e57b",
		EnqueuedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Job
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != job.ID || got.Queue != job.Queue || got.EntityID != job.EntityID {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.EnqueuedAt.Equal(job.EnqueuedAt) {
		t.Errorf("enqueuedAt = %v", got.EnqueuedAt)
	}
	// Attempt travels in headers, not the body
	if got.Attempt != 0 {
		t.Errorf("attempt should not serialize, got %d", got.Attempt)
	}
}

func TestQueueOptionsResolve(t *testing.T) {
	cases := []struct {
		name         string
		opts         QueueOptions
		wantRetry    int
		wantPrefetch int
	}{
		{"defaults", QueueOptions{}, 3, 10},
		{"retry only", QueueOptions{RetryBudget: 5}, 5, 10},
		{"prefetch only", QueueOptions{Prefetch: 2}, 3, 2},
		{"both", QueueOptions{RetryBudget: 1, Prefetch: 20}, 1, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retry, prefetch := tc.opts.resolve(3, 10)
			if retry != tc.wantRetry || prefetch != tc.wantPrefetch {
				t.Errorf("got (%d, %d), want (%d, %d)", retry, prefetch, tc.wantRetry, tc.wantPrefetch)
			}
		})
	}
}

func TestDeliveryBudgetSpent(t *testing.T) {
	// Each queue's deliveries carry their own budget, so two queues can
	// dead-letter at different attempt counts.
	short := Delivery{Job: Job{Attempt: 2}, retryBudget: 2}
	long := Delivery{Job: Job{Attempt: 2}, retryBudget: 5}
	if !short.budgetSpent() {
		t.Error("attempt 2 of 2 should be spent")
	}
	if long.budgetSpent() {
		t.Error("attempt 2 of 5 should not be spent")
	}
}

func TestDeadQueueName(t *testing.T) {
	if got := QueueEmbedding + DeadSuffix; got != "embedding.dead" {
		t.Errorf("dead queue name = %q", got)
	}
}
