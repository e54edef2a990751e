package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking lifecycle.
// pending -> confirmed -> completed
// pending|confirmed -> cancelled
// pending -> rejected
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingRejected  = "rejected"
)

// Service pricing modes.
const (
	ServiceHourly  = "hourly"
	ServiceSession = "session"
	ServicePackage = "package"
)

// StatusChange is an append-only history entry. Existing entries are never
// rewritten; transitions push a new one.
type StatusChange struct {
	Status string             `bson:"status" json:"status"`
	At     time.Time          `bson:"at" json:"at"`
	By     primitive.ObjectID `bson:"by" json:"by"`
	Note   string             `bson:"note,omitempty" json:"note,omitempty"`
}

type Booking struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Customer      primitive.ObjectID  `bson:"customer" json:"customer"`
	Provider      primitive.ObjectID  `bson:"provider" json:"provider"`
	ServiceType   string              `bson:"serviceType" json:"serviceType"`
	PackageID     *primitive.ObjectID `bson:"packageId,omitempty" json:"packageId,omitempty"`
	ScheduledDate time.Time           `bson:"scheduledDate" json:"scheduledDate"`
	// ScheduledEnd is stored so overlap checks are a pure range query.
	ScheduledEnd  time.Time      `bson:"scheduledEnd" json:"scheduledEnd"`
	DurationHours float64        `bson:"durationHours,omitempty" json:"durationHours,omitempty"`
	Price         float64        `bson:"price" json:"price"`
	ContactPhone  string         `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`
	Notes         string         `bson:"notes,omitempty" json:"notes,omitempty"`
	Address       string         `bson:"address,omitempty" json:"address,omitempty"`
	Location      *GeoPoint      `bson:"location,omitempty" json:"location,omitempty"`
	Status        string         `bson:"status" json:"status"`
	StatusHistory []StatusChange `bson:"statusHistory" json:"statusHistory"`
	// CompletedAt is set exactly once, when the booking completes.
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Overlaps reports whether the booking's window intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.ScheduledDate.Before(end) && b.ScheduledEnd.After(start)
}

// Active statuses block the provider's calendar; cancelled bookings do not.
func BookingBlocksCalendar(status string) bool {
	return status == BookingPending || status == BookingConfirmed
}

// BookingStats is an aggregation summary for the ops surface.
type BookingStats struct {
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Rejected  int64 `json:"rejected"`
	Total     int64 `json:"total"`

	// Earnings sums the price of completed bookings only.
	Earnings float64 `json:"earnings"`
}
