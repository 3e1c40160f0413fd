package memory

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domaincalendar "staybook/internal/domain/calendar"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	domainuser "staybook/internal/domain/user"
)

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ReservationRepo domainreservation.Repository
	PaymentRepo     domainpayment.Repository
	CalendarRepo    domaincalendar.Repository
	PropertyRepo    domainproperty.Repository
	UserRepo        domainuser.Repository
}

// NewFactory builds a factory over fresh empty stores.
func NewFactory() Factory {
	return Factory{
		ReservationRepo: NewReservationRepository(),
		PaymentRepo:     NewPaymentRepository(),
		CalendarRepo:    NewCalendarRepository(),
		PropertyRepo:    NewPropertyRepository(),
		UserRepo:        NewUserRepository(),
	}
}

// Begin starts a lightweight transaction boundary. No isolation is provided
// but the abstraction matches the application ports; atomicity for claims
// comes from the repositories' version checks.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ReservationRepo == nil || f.PaymentRepo == nil || f.CalendarRepo == nil || f.PropertyRepo == nil || f.UserRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		reservations: f.ReservationRepo,
		payments:     f.PaymentRepo,
		calendars:    f.CalendarRepo,
		properties:   f.PropertyRepo,
		users:        f.UserRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	reservations domainreservation.Repository
	payments     domainpayment.Repository
	calendars    domaincalendar.Repository
	properties   domainproperty.Repository
	users        domainuser.Repository
}

func (u *Unit) Reservations() domainreservation.Repository { return u.reservations }

func (u *Unit) Payments() domainpayment.Repository { return u.payments }

func (u *Unit) Calendars() domaincalendar.Repository { return u.calendars }

func (u *Unit) Properties() domainproperty.Repository { return u.properties }

func (u *Unit) Users() domainuser.Repository { return u.users }

func (u *Unit) Commit(ctx context.Context) error { return nil }

func (u *Unit) Rollback(ctx context.Context) error { return nil }
