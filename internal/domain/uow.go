package domain

import "context"

// UnitOfWork runs a set of repository operations inside a single database
// transaction so multi-document writes stay consistent.
//
// Typical usage:
//
//	err := uow.WithTransaction(ctx, func(txCtx context.Context) error {
//	    if err := repo.Create(txCtx, booking); err != nil {
//	        return err
//	    }
//	    return repo.IncrementStat(txCtx, customerID, "bookings", 1)
//	})
//
// The callback's context carries the session; repositories pick it up
// transparently. Returning an error aborts the transaction.
//
// NOTE: Keep the transaction as short as possible.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
