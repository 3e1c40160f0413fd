package booking

import (
	"context"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainreservation "staybook/internal/domain/reservation"
)

const (
	checkInKey  = "booking.check_in"
	checkOutKey = "booking.check_out"
	noShowKey   = "booking.no_show"
)

type CheckInCommand struct {
	ReservationID string `validate:"required"`
	Actor         Actor
}

func (c CheckInCommand) Key() string { return checkInKey }

type CheckOutCommand struct {
	ReservationID string `validate:"required"`
	Actor         Actor
}

func (c CheckOutCommand) Key() string { return checkOutKey }

type NoShowCommand struct {
	ReservationID string `validate:"required"`
	Actor         Actor
}

func (c NoShowCommand) Key() string { return noShowKey }

type LifecycleResult struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
}

// LifecycleHandler applies the stay-progress transitions: check-in,
// check-out (completing the stay) and no-show.
type LifecycleHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *LifecycleHandler) HandleCheckIn(ctx context.Context, cmd CheckInCommand) (*LifecycleResult, error) {
	return h.apply(ctx, cmd.ReservationID, cmd.Actor, false, (*domainreservation.Reservation).CheckInGuest)
}

func (h *LifecycleHandler) HandleCheckOut(ctx context.Context, cmd CheckOutCommand) (*LifecycleResult, error) {
	return h.apply(ctx, cmd.ReservationID, cmd.Actor, false, (*domainreservation.Reservation).CompleteStay)
}

func (h *LifecycleHandler) HandleNoShow(ctx context.Context, cmd NoShowCommand) (*LifecycleResult, error) {
	return h.apply(ctx, cmd.ReservationID, cmd.Actor, true, (*domainreservation.Reservation).MarkNoShow)
}

func (h *LifecycleHandler) apply(ctx context.Context, id string, actor Actor, ownerOnly bool, transition func(*domainreservation.Reservation, time.Time) error) (*LifecycleResult, error) {
	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	res, err := unit.Reservations().ByID(ctx, domainreservation.ID(id))
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, unit, res, actor, ownerOnly); err != nil {
		return nil, err
	}
	heldDates := res.HoldsDates()
	if err := transition(res, now); err != nil {
		return nil, err
	}
	// COMPLETED and NO_SHOW stop holding the calendar.
	if heldDates && !res.HoldsDates() {
		if err := releaseDates(ctx, unit, res, now); err != nil {
			return nil, err
		}
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
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
	return &LifecycleResult{ReservationID: string(res.ID), Status: string(res.Status)}, nil
}

func (h *LifecycleHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *LifecycleHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// Typed adapters so each command key registers its own handler.

type checkInAdapter struct{ *LifecycleHandler }

func (a checkInAdapter) Handle(ctx context.Context, cmd CheckInCommand) (*LifecycleResult, error) {
	return a.HandleCheckIn(ctx, cmd)
}

type checkOutAdapter struct{ *LifecycleHandler }

func (a checkOutAdapter) Handle(ctx context.Context, cmd CheckOutCommand) (*LifecycleResult, error) {
	return a.HandleCheckOut(ctx, cmd)
}

type noShowAdapter struct{ *LifecycleHandler }

func (a noShowAdapter) Handle(ctx context.Context, cmd NoShowCommand) (*LifecycleResult, error) {
	return a.HandleNoShow(ctx, cmd)
}

func (h *LifecycleHandler) CheckInHandler() commands.Handler[CheckInCommand, *LifecycleResult] {
	return checkInAdapter{h}
}

func (h *LifecycleHandler) CheckOutHandler() commands.Handler[CheckOutCommand, *LifecycleResult] {
	return checkOutAdapter{h}
}

func (h *LifecycleHandler) NoShowHandler() commands.Handler[NoShowCommand, *LifecycleResult] {
	return noShowAdapter{h}
}
