package booking

import (
	"context"
	"errors"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domaincalendar "staybook/internal/domain/calendar"
	domainpayment "staybook/internal/domain/payment"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
)

const cancelKey = "booking.cancel"

type CancelCommand struct {
	ReservationID string `validate:"required"`
	Actor         Actor
	Reason        string
}

func (c CancelCommand) Key() string { return cancelKey }

type CancelResult struct {
	ReservationID string `json:"reservation_id"`
	RefundCents   int64  `json:"refund_cents"`
	FeeCents      int64  `json:"fee_cents"`
	NetCents      int64  `json:"net_cents"`
}

// CancelHandler cancels a reservation and, when the payment has completed,
// issues the policy-driven refund through the gateway and frees the dates.
type CancelHandler struct {
	UoWFactory uow.Factory
	Gateway    policies.GatewayPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *CancelHandler) Handle(ctx context.Context, cmd CancelCommand) (*CancelResult, error) {
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
	if err := authorize(ctx, unit, res, cmd.Actor, false); err != nil {
		return nil, err
	}

	result := &CancelResult{ReservationID: string(res.ID)}
	heldDates := res.HoldsDates()

	if res.PaymentStatus == domainreservation.PaymentCompleted {
		refund := domainpricing.QuoteRefund(res.Price.Total, res.Range.DaysUntilCheckIn(now), res.Policy)
		result.RefundCents = refund.RefundAmount.Amount
		result.FeeCents = refund.ProcessingFee.Amount
		result.NetCents = refund.NetRefund.Amount

		if refund.RefundAmount.Amount > 0 {
			attempt, err := settledAttempt(ctx, unit, res.ID)
			if err != nil {
				return nil, err
			}
			if _, err := h.Gateway.Refund(ctx, policies.RefundRequest{
				ChargeID: attempt.GatewayChargeID,
				IntentID: attempt.GatewayIntentID,
				Amount:   refund.RefundAmount,
				Reason:   cmd.Reason,
			}); err != nil {
				return nil, err
			}
			full := refund.RefundAmount.Amount == attempt.Amount.Amount
			if _, err := attempt.Refund(refund.RefundAmount, cmd.Reason, now); err != nil {
				return nil, err
			}
			if err := res.ApplyRefund(refund.RefundAmount, full, cmd.Reason, now); err != nil {
				return nil, err
			}
			if err := unit.Payments().Save(ctx, attempt); err != nil {
				return nil, err
			}
			if !full {
				// Partial refunds leave the payment PARTIALLY_REFUNDED; the
				// reservation is still cancelled below.
				if err := res.Cancel(cmd.Reason, now); err != nil {
					return nil, err
				}
			}
		} else {
			if err := res.Cancel(cmd.Reason, now); err != nil {
				return nil, err
			}
		}
	} else {
		if err := res.Cancel(cmd.Reason, now); err != nil {
			return nil, err
		}
	}

	if heldDates {
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
	return result, nil
}

func settledAttempt(ctx context.Context, unit uow.UnitOfWork, id domainreservation.ID) (*domainpayment.Attempt, error) {
	attempts, err := unit.Payments().ByReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		if a.Status == domainpayment.AttemptCompleted || a.Status == domainpayment.AttemptPartiallyRefunded {
			return a, nil
		}
	}
	return nil, domainpayment.ErrAttemptNotFound
}

func releaseDates(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation, now time.Time) error {
	cal, err := unit.Calendars().ByProperty(ctx, res.PropertyID)
	if err != nil {
		return err
	}
	if err := cal.Release(string(res.ID), now); err != nil {
		if errors.Is(err, domaincalendar.ErrBlockNotFound) {
			return nil
		}
		return err
	}
	return unit.Calendars().Save(ctx, cal)
}

func (h *CancelHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CancelHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CancelCommand, *CancelResult] = (*CancelHandler)(nil)
