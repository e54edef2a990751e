package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Moderation lifecycle for user-generated content.
// draft -> pending_review -> published | rejected
// Editing a reviewable field of published/rejected content sends it back
// to pending_review.
// Archived content is terminal and only reachable by admin action.
const (
	StatusDraft         = "draft"
	StatusPendingReview = "pending_review"
	StatusPublished     = "published"
	StatusRejected      = "rejected"
	StatusArchived      = "archived"
)

// Comment is an embedded subdocument; comments are not independently
// moderated.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type BlogPost struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Author          primitive.ObjectID   `bson:"author" json:"author"`
	Title           string               `bson:"title" json:"title"`
	Content         string               `bson:"content" json:"content"`
	Tags            []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	Status          string               `bson:"status" json:"status"`
	ModerationNotes string               `bson:"moderationNotes,omitempty" json:"moderationNotes,omitempty"`
	Likes           []primitive.ObjectID `bson:"likes,omitempty" json:"-"`
	Comments        []Comment            `bson:"comments,omitempty" json:"comments,omitempty"`
	LikeCount       int                  `bson:"likeCount" json:"likeCount"`
	CommentCount    int                  `bson:"commentCount" json:"commentCount"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// EventVerification is the stored outcome of the legitimacy check.
type EventVerification struct {
	Legitimate bool      `bson:"legitimate" json:"legitimate"`
	Reason     string    `bson:"reason" json:"reason"`
	Sources    []string  `bson:"sources,omitempty" json:"sources,omitempty"`
	VerifiedAt time.Time `bson:"verifiedAt" json:"verifiedAt"`
}

type Event struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Organizer       primitive.ObjectID   `bson:"organizer" json:"organizer"`
	Title           string               `bson:"title" json:"title"`
	Description     string               `bson:"description" json:"description"`
	Category        string               `bson:"category,omitempty" json:"category,omitempty"`
	Address         string               `bson:"address,omitempty" json:"address,omitempty"`
	Location        *GeoPoint            `bson:"location,omitempty" json:"location,omitempty"`
	StartDate       time.Time            `bson:"startDate" json:"startDate"`
	EndDate         time.Time            `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Capacity        int                  `bson:"capacity,omitempty" json:"capacity,omitempty"`
	Status          string               `bson:"status" json:"status"`
	ModerationNotes string               `bson:"moderationNotes,omitempty" json:"moderationNotes,omitempty"`
	Verification    *EventVerification   `bson:"verification,omitempty" json:"verification,omitempty"`
	Likes           []primitive.ObjectID `bson:"likes,omitempty" json:"-"`
	Comments        []Comment            `bson:"comments,omitempty" json:"comments,omitempty"`
	LikeCount       int                  `bson:"likeCount" json:"likeCount"`
	CommentCount    int                  `bson:"commentCount" json:"commentCount"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// ReviewableText returns the text fields that feed moderation, used both
// to build the review request and to decide whether an edit needs
// re-review.

func (p *BlogPost) ReviewableText() (title, body string) {
	return p.Title, p.Content
}

func (e *Event) ReviewableText() (title, body string) {
	return e.Title, e.Description
}
