package calendar

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrOverlappingRange = errors.New("calendar: range overlaps with an existing block")
	ErrBlockNotFound    = errors.New("calendar: block not found")
)

// Block is a claimed date range on a property calendar, referencing the
// reservation that holds it.
type Block struct {
	Range         daterange.DateRange
	ReservationID string
	CreatedAt     time.Time
}

// Calendar serializes date claims per property. Saving goes through an
// optimistic version check, so two concurrent claimants of overlapping
// ranges cannot both commit: the check and the insert are one atomic unit.
type Calendar struct {
	PropertyID string
	Blocks     []Block
	Version    int64
	events.EventRecorder
}

type Repository interface {
	ByProperty(ctx context.Context, propertyID string) (*Calendar, error)
	Save(ctx context.Context, c *Calendar) error
}

func New(propertyID string) *Calendar {
	return &Calendar{PropertyID: propertyID}
}

// CanReserve reports whether the half-open range is free of blocks.
func (c *Calendar) CanReserve(r daterange.DateRange) bool {
	for _, block := range c.Blocks {
		if block.Range.Overlaps(r) {
			return false
		}
	}
	return true
}

// ConflictingReservation returns the reservation holding a block that
// overlaps the range, if any.
func (c *Calendar) ConflictingReservation(r daterange.DateRange) (string, bool) {
	for _, block := range c.Blocks {
		if block.Range.Overlaps(r) {
			return block.ReservationID, true
		}
	}
	return "", false
}

// Claim blocks the range for a reservation or fails on overlap. The actual
// mutual exclusion comes from the versioned save that follows.
func (c *Calendar) Claim(r daterange.DateRange, reservationID string, now time.Time) error {
	if !c.CanReserve(r) {
		c.Record(DoubleBookingPrevented{PropertyID: c.PropertyID, Range: r, At: now.UTC()})
		return ErrOverlappingRange
	}
	c.Blocks = append(c.Blocks, Block{Range: r, ReservationID: reservationID, CreatedAt: now.UTC()})
	c.Record(RangeBlocked{PropertyID: c.PropertyID, Range: r, ReservationID: reservationID, At: now.UTC()})
	return nil
}

// Release frees the block held by a reservation, making the range available
// again for new claims.
func (c *Calendar) Release(reservationID string, now time.Time) error {
	for i, block := range c.Blocks {
		if block.ReservationID == reservationID {
			c.Blocks = append(c.Blocks[:i], c.Blocks[i+1:]...)
			c.Record(RangeReleased{PropertyID: c.PropertyID, Range: block.Range, ReservationID: reservationID, At: now.UTC()})
			return nil
		}
	}
	return ErrBlockNotFound
}
