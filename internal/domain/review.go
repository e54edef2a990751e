package domain

import "time"

// Reviewable is implemented by entities that go through automated review
// before becoming publicly visible.
type Reviewable interface {
	// ReviewableText returns the title and body sent to the reviewer.
	ReviewableText() (title, body string)
}

// VerdictKind tags a ReviewVerdict with the review that produced it.
type VerdictKind string

const (
	VerdictContent VerdictKind = "content"
	VerdictEvent   VerdictKind = "event"
)

// ReviewVerdict is the outcome of an automated review. Sources is only
// populated for event verdicts; content reviews never carry sources.
type ReviewVerdict struct {
	Kind     VerdictKind `json:"kind"`
	Accepted bool        `json:"accepted"`
	Reason   string      `json:"reason"`
	Sources  []string    `json:"sources,omitempty"`
	At       time.Time   `json:"at"`
}
