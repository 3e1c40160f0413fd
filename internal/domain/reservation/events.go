package reservation

import (
	"time"

	"staybook/internal/domain/channel"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type Requested struct {
	ReservationID ID
	PropertyID    string
	GuestID       string
	Range         daterange.DateRange
	Total         money.Money
	At            time.Time
}

func (e Requested) EventName() string     { return "reservation.requested" }
func (e Requested) AggregateID() string   { return string(e.ReservationID) }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	ReservationID ID
	PropertyID    string
	Range         daterange.DateRange
	Total         money.Money
	At            time.Time
}

func (e Confirmed) EventName() string     { return "reservation.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.ReservationID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type PaymentFailureRecorded struct {
	ReservationID ID
	At            time.Time
}

func (e PaymentFailureRecorded) EventName() string     { return "reservation.payment_failed" }
func (e PaymentFailureRecorded) AggregateID() string   { return string(e.ReservationID) }
func (e PaymentFailureRecorded) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	ReservationID ID
	PropertyID    string
	Range         daterange.DateRange
	Reason        string
	At            time.Time
}

func (e Cancelled) EventName() string     { return "reservation.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.ReservationID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type Refunded struct {
	ReservationID ID
	PropertyID    string
	Amount        money.Money
	Full          bool
	Reason        string
	At            time.Time
}

func (e Refunded) EventName() string     { return "reservation.refunded" }
func (e Refunded) AggregateID() string   { return string(e.ReservationID) }
func (e Refunded) OccurredAt() time.Time { return e.At }

type Imported struct {
	ReservationID ID
	PropertyID    string
	Source        channel.Source
	ExternalID    string
	Total         money.Money
	At            time.Time
}

func (e Imported) EventName() string     { return "reservation.imported" }
func (e Imported) AggregateID() string   { return string(e.ReservationID) }
func (e Imported) OccurredAt() time.Time { return e.At }

type Synced struct {
	ReservationID ID
	Source        channel.Source
	ExternalID    string
	At            time.Time
}

func (e Synced) EventName() string     { return "reservation.synced" }
func (e Synced) AggregateID() string   { return string(e.ReservationID) }
func (e Synced) OccurredAt() time.Time { return e.At }

type CheckedIn struct {
	ReservationID ID
	At            time.Time
}

func (e CheckedIn) EventName() string     { return "reservation.checked_in" }
func (e CheckedIn) AggregateID() string   { return string(e.ReservationID) }
func (e CheckedIn) OccurredAt() time.Time { return e.At }

type StayCompleted struct {
	ReservationID ID
	At            time.Time
}

func (e StayCompleted) EventName() string     { return "reservation.completed" }
func (e StayCompleted) AggregateID() string   { return string(e.ReservationID) }
func (e StayCompleted) OccurredAt() time.Time { return e.At }

type NoShowRecorded struct {
	ReservationID ID
	At            time.Time
}

func (e NoShowRecorded) EventName() string     { return "reservation.no_show" }
func (e NoShowRecorded) AggregateID() string   { return string(e.ReservationID) }
func (e NoShowRecorded) OccurredAt() time.Time { return e.At }
