package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"service-marketplace/internal/models"
)

// Actor identifies who is performing an operation. Services use it for
// authorization checks and for attributing status history entries.
type Actor struct {
	UserID primitive.ObjectID
	Role   string
}

func (a Actor) IsAdmin() bool    { return a.Role == models.RoleAdmin }
func (a Actor) IsProvider() bool { return a.Role == models.RoleProvider }
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }

// Is reports whether the actor is the given user.
func (a Actor) Is(id primitive.ObjectID) bool { return a.UserID == id }
