package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/uow"
	domaincalendar "staybook/internal/domain/calendar"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	domainuser "staybook/internal/domain/user"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ReservationRepo domainreservation.Repository
	PaymentRepo     domainpayment.Repository
	CalendarRepo    domaincalendar.Repository
	PropertyRepo    domainproperty.Repository
	UserRepo        domainuser.Repository
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:           f.DB,
		session:      session,
		reservations: f.ReservationRepo,
		payments:     f.PaymentRepo,
		calendars:    f.CalendarRepo,
		properties:   f.PropertyRepo,
		users:        f.UserRepo,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

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

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
