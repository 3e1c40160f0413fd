package calendar

import (
	"time"

	"staybook/internal/domain/shared/daterange"
)

type RangeBlocked struct {
	PropertyID    string
	Range         daterange.DateRange
	ReservationID string
	At            time.Time
}

func (e RangeBlocked) EventName() string     { return "calendar.blocked" }
func (e RangeBlocked) AggregateID() string   { return e.PropertyID }
func (e RangeBlocked) OccurredAt() time.Time { return e.At }

type RangeReleased struct {
	PropertyID    string
	Range         daterange.DateRange
	ReservationID string
	At            time.Time
}

func (e RangeReleased) EventName() string     { return "calendar.released" }
func (e RangeReleased) AggregateID() string   { return e.PropertyID }
func (e RangeReleased) OccurredAt() time.Time { return e.At }

type DoubleBookingPrevented struct {
	PropertyID string
	Range      daterange.DateRange
	At         time.Time
}

func (e DoubleBookingPrevented) EventName() string     { return "calendar.double_booking_prevented" }
func (e DoubleBookingPrevented) AggregateID() string   { return e.PropertyID }
func (e DoubleBookingPrevented) OccurredAt() time.Time { return e.At }
