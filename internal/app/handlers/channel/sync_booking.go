package channel

import (
	"context"
	"fmt"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domaincalendar "staybook/internal/domain/calendar"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const syncKey = "channel.sync"

type SyncCommand struct {
	ReservationID  string `validate:"required"`
	CheckIn        *time.Time
	CheckOut       *time.Time
	Guests         *int
	TotalCents     *int64
	CommissionRate *float64
	RawPayload     []byte
}

func (c SyncCommand) Key() string { return syncKey }

type SyncResult struct {
	ReservationID  string  `json:"reservation_id"`
	CommissionRate float64 `json:"commission_rate"`
	NetCents       int64   `json:"net_cents"`
	LastSyncedAt   string  `json:"last_synced_at"`
}

// SyncHandler applies a channel-side update to an imported reservation.
// Direct reservations are never synced from a channel.
type SyncHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *SyncHandler) Handle(ctx context.Context, cmd SyncCommand) (*SyncResult, error) {
	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	res, err := unit.Reservations().ByID(ctx, domainreservation.ID(cmd.ReservationID))
	if err != nil {
		return nil, err
	}
	if !res.Source.IsExternal() {
		return nil, domainreservation.ErrNotExternal
	}

	patch := domainreservation.SyncPatch{
		Guests:         cmd.Guests,
		CommissionRate: cmd.CommissionRate,
		RawPayload:     cmd.RawPayload,
	}
	if cmd.TotalCents != nil {
		total, err := money.New(*cmd.TotalCents, res.Price.Total.Currency)
		if err != nil {
			return nil, err
		}
		patch.Total = &total
	}
	var cal *domaincalendar.Calendar
	if cmd.CheckIn != nil || cmd.CheckOut != nil {
		checkIn, checkOut := res.Range.CheckIn, res.Range.CheckOut
		if cmd.CheckIn != nil {
			checkIn = *cmd.CheckIn
		}
		if cmd.CheckOut != nil {
			checkOut = *cmd.CheckOut
		}
		dr, err := domainrange.New(checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		if res.HoldsDates() {
			cal, err = h.moveDates(ctx, unit, res, dr, now)
			if err != nil {
				return nil, err
			}
		}
		patch.Range = &dr
	}

	if err := res.ApplySync(patch, now); err != nil {
		return nil, err
	}
	// Reservation first: a version conflict here must not leave the
	// calendar pointing at dates the reservation never moved to.
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}
	if cal != nil {
		if err := unit.Calendars().Save(ctx, cal); err != nil {
			return nil, err
		}
	}

	pending := res.PendingEvents()
	res.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, err
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			return nil, err
		}
	}
	return &SyncResult{
		ReservationID:  string(res.ID),
		CommissionRate: res.Revenue.CommissionPercent,
		NetCents:       res.Revenue.NetRevenue.Amount,
		LastSyncedAt:   res.LastSyncedAt.Format(time.RFC3339),
	}, nil
}

// moveDates re-claims the calendar for a changed range. The caller saves
// the returned calendar after the reservation update commits.
func (h *SyncHandler) moveDates(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation, dr domainrange.DateRange, now time.Time) (*domaincalendar.Calendar, error) {
	cal, err := unit.Calendars().ByProperty(ctx, res.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := cal.Release(string(res.ID), now); err != nil && err != domaincalendar.ErrBlockNotFound {
		return nil, err
	}
	if err := cal.Claim(dr, string(res.ID), now); err != nil {
		holder, _ := cal.ConflictingReservation(dr)
		return nil, fmt.Errorf("%w: dates held by %s", ErrDatesClash, holder)
	}
	return cal, nil
}

func (h *SyncHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *SyncHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[SyncCommand, *SyncResult] = (*SyncHandler)(nil)
