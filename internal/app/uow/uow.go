package uow

import (
	"context"

	domaincalendar "staybook/internal/domain/calendar"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	domainuser "staybook/internal/domain/user"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Reservations() domainreservation.Repository
	Payments() domainpayment.Repository
	Calendars() domaincalendar.Repository
	Properties() domainproperty.Repository
	Users() domainuser.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory starts unit of work instances.
type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
