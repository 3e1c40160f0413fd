package booking

import (
	"context"
	"time"

	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainreservation "staybook/internal/domain/reservation"
)

const (
	guestReservationsKey    = "booking.guest_reservations"
	propertyReservationsKey = "booking.property_reservations"
)

type GuestReservationsQuery struct {
	GuestID string `validate:"required"`
}

func (q GuestReservationsQuery) Key() string { return guestReservationsKey }

type PropertyReservationsQuery struct {
	PropertyID string `validate:"required"`
	Actor      Actor
}

func (q PropertyReservationsQuery) Key() string { return propertyReservationsKey }

// ReservationView is the read-model projection of a reservation.
type ReservationView struct {
	ID            string    `json:"id"`
	PropertyID    string    `json:"property_id"`
	GuestID       string    `json:"guest_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Guests        int       `json:"guests"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	Source        string    `json:"source"`
	ExternalID    string    `json:"external_id,omitempty"`
}

func NewReservationView(r *domainreservation.Reservation) ReservationView {
	return ReservationView{
		ID:            string(r.ID),
		PropertyID:    r.PropertyID,
		GuestID:       r.GuestID,
		CheckIn:       r.Range.CheckIn,
		CheckOut:      r.Range.CheckOut,
		Guests:        r.Guests,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		TotalCents:    r.Price.Total.Amount,
		Currency:      r.Price.Total.Currency,
		Source:        string(r.Source),
		ExternalID:    r.ExternalID,
	}
}

type GuestReservationsHandler struct {
	UoWFactory uow.Factory
}

func (h *GuestReservationsHandler) Handle(ctx context.Context, q GuestReservationsQuery) ([]ReservationView, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Reservations().ListByGuest(ctx, q.GuestID)
	if err != nil {
		return nil, err
	}
	views := make([]ReservationView, 0, len(items))
	for _, r := range items {
		views = append(views, NewReservationView(r))
	}
	return views, nil
}

type PropertyReservationsHandler struct {
	UoWFactory uow.Factory
}

func (h *PropertyReservationsHandler) Handle(ctx context.Context, q PropertyReservationsQuery) ([]ReservationView, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := unit.Properties().ByID(ctx, q.PropertyID)
	if err != nil {
		return nil, err
	}
	if !q.Actor.hasRole("ADMIN") && prop.OwnerID != q.Actor.ID {
		return nil, ErrNotAllowed
	}
	items, err := unit.Reservations().ListByProperty(ctx, q.PropertyID)
	if err != nil {
		return nil, err
	}
	views := make([]ReservationView, 0, len(items))
	for _, r := range items {
		views = append(views, NewReservationView(r))
	}
	return views, nil
}

var _ queries.Handler[GuestReservationsQuery, []ReservationView] = (*GuestReservationsHandler)(nil)
var _ queries.Handler[PropertyReservationsQuery, []ReservationView] = (*PropertyReservationsHandler)(nil)
