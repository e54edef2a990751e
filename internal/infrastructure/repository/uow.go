package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"service-marketplace/internal/domain"
	"service-marketplace/pkg/database"
)

// UnitOfWork runs a callback inside a MongoDB multi-document transaction.
// Repository calls made with the callback's context join the transaction;
// any error aborts it.
type UnitOfWork struct {
	db *database.DB
}

func NewUnitOfWork(db *database.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

var _ domain.UnitOfWork = (*UnitOfWork)(nil)

func (u *UnitOfWork) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := u.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("uow: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		return fmt.Errorf("uow: transaction: %w", err)
	}
	return nil
}
