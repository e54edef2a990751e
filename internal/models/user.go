package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user account can hold.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Provider verification lifecycle.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
)

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from lng/lat.
func NewGeoPoint(lng, lat float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (g *GeoPoint) Lng() float64 { return g.Coordinates[0] }
func (g *GeoPoint) Lat() float64 { return g.Coordinates[1] }

// Package is a fixed-price bundle a provider offers.
type Package struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Sessions    int                `bson:"sessions,omitempty" json:"sessions,omitempty"`
}

// Pricing holds the provider's server-authoritative rates. Client-submitted
// prices are never trusted; booking totals are derived from these fields.
type Pricing struct {
	HourlyRate  float64   `bson:"hourlyRate,omitempty" json:"hourlyRate,omitempty"`
	SessionRate float64   `bson:"sessionRate,omitempty" json:"sessionRate,omitempty"`
	Packages    []Package `bson:"packages,omitempty" json:"packages,omitempty"`
}

// ServiceProviderProfile is embedded on users with the provider role.
// IsLocked is true iff the provider has a confirmed booking in flight.
type ServiceProviderProfile struct {
	IsLocked          bool      `bson:"isLocked" json:"isLocked"`
	Profession        string    `bson:"profession,omitempty" json:"profession,omitempty"`
	BusinessName      string    `bson:"businessName,omitempty" json:"businessName,omitempty"`
	Location          *GeoPoint `bson:"location,omitempty" json:"location,omitempty"`
	Address           string    `bson:"address,omitempty" json:"address,omitempty"`
	Skills            []string  `bson:"skills,omitempty" json:"skills,omitempty"`
	ServiceCategories []string  `bson:"serviceCategories,omitempty" json:"serviceCategories,omitempty"`
	Pricing           Pricing   `bson:"pricing" json:"pricing"`
	AverageRating     float64   `bson:"averageRating,omitempty" json:"averageRating,omitempty"`
	CompletedBookings int       `bson:"completedBookings,omitempty" json:"completedBookings,omitempty"`
}

// UserStats is a denormalized activity summary.
type UserStats struct {
	Posts    int `bson:"posts,omitempty" json:"posts,omitempty"`
	Events   int `bson:"events,omitempty" json:"events,omitempty"`
	Bookings int `bson:"bookings,omitempty" json:"bookings,omitempty"`
}

type User struct {
	ID                 primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	Email              string                  `bson:"email" json:"email"`
	PasswordHash       string                  `bson:"passwordHash" json:"-"`
	Name               string                  `bson:"name" json:"name"`
	Phone              string                  `bson:"phone,omitempty" json:"phone,omitempty"`
	Bio                string                  `bson:"bio,omitempty" json:"bio,omitempty"`
	Role               string                  `bson:"role" json:"role"`
	VerificationStatus string                  `bson:"verificationStatus" json:"verificationStatus"`
	IsActive           bool                    `bson:"isActive" json:"isActive"`
	IsBanned           bool                    `bson:"isBanned" json:"isBanned"`
	Embedding          []float32               `bson:"embedding,omitempty" json:"-"`
	ServiceProvider    *ServiceProviderProfile `bson:"serviceProvider,omitempty" json:"serviceProvider,omitempty"`
	Stats              UserStats               `bson:"stats,omitempty" json:"stats,omitempty"`
	CreatedAt          time.Time               `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time               `bson:"updatedAt" json:"updatedAt"`
}

// IsBookableProvider reports whether the user can receive bookings at all.
// Availability (lock, schedule) is checked separately at admission time.
func (u *User) IsBookableProvider() bool {
	return u.Role == RoleProvider &&
		u.VerificationStatus == VerificationVerified &&
		u.IsActive && !u.IsBanned &&
		u.ServiceProvider != nil
}

// SearchDocument is the text a provider's embedding is computed from.
func (u *User) SearchDocument() string {
	if u.ServiceProvider == nil {
		return u.Name + "\n" + u.Bio
	}
	doc := u.Name + "\n" + u.Bio
	if u.ServiceProvider.Profession != "" {
		doc += "\n" + u.ServiceProvider.Profession
	}
	if u.ServiceProvider.BusinessName != "" {
		doc += "\n" + u.ServiceProvider.BusinessName
	}
	for _, s := range u.ServiceProvider.Skills {
		doc += "\n" + s
	}
	for _, c := range u.ServiceProvider.ServiceCategories {
		doc += "\n" + c
	}
	return doc
}
