// Package audit records queue job outcomes and moderation decisions in a
// relational store so operators can answer "what happened to this job"
// after the broker has acked and moved on. Keep payloads small and
// JSON-friendly.
package audit

import (
	"context"
	"time"
)

// Outcomes for a recorded attempt.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeFailed     = "failed"
	OutcomeRetried    = "retried"
	OutcomeDeadLetter = "dead_letter"
)

// Record is one job attempt or decision.
type Record struct {
	ID       int64     `json:"id"`
	JobID    string    `json:"job_id"`
	Queue    string    `json:"queue"`
	EntityID string    `json:"entity_id,omitempty"`
	Attempt  int       `json:"attempt"`
	Outcome  string    `json:"outcome"`
	Detail   string    `json:"detail,omitempty"` // verdict reason, error text
	At       time.Time `json:"at"`
}

// Store persists job audit records. Implementations must preserve
// insertion order per job.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListByJob(ctx context.Context, jobID string) ([]Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// NopStore discards records; used when no audit DSN is configured.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error                { return nil }
func (NopStore) ListByJob(context.Context, string) ([]Record, error) { return nil, nil }
func (NopStore) Recent(context.Context, int) ([]Record, error)       { return nil, nil }
func (NopStore) Close() error                                        { return nil }
