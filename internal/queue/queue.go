// Package queue provides named at-least-once job queues over RabbitMQ.
// Handlers must be idempotent: a job can be delivered more than once.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue names. Each gets a durable queue plus a companion dead-letter
// queue with the ".dead" suffix.
const (
	QueueContentReview = "content-review"
	QueueEventReview   = "event-review"
	QueueEmbedding     = "embedding"
)

// DeadSuffix is appended to a queue name to form its dead-letter queue.
const DeadSuffix = ".dead"

// Job is the wire form of a queued unit of work.
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	EntityID   string          `json:"entityId"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	// Attempt is the 1-based delivery attempt, carried in a message
	// header so redeliveries keep their count.
	Attempt int `json:"-"`
}

// Handler processes one job. Returning nil acknowledges the job; returning
// an error triggers retry or dead-lettering depending on the error kind and
// the attempt count.
type Handler func(ctx context.Context, job Job) error

// Enqueuer is the producer side of the broker, what services depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, entityID string) (string, error)
}
