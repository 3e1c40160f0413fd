package booking

import (
	"context"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

const refundKey = "booking.refund"

type RefundCommand struct {
	AttemptID   string `validate:"required"`
	Actor       Actor
	AmountCents int64 // zero means full refund
	Reason      string
}

func (c RefundCommand) Key() string { return refundKey }

type RefundResult struct {
	ReservationID string `json:"reservation_id"`
	RefundCents   int64  `json:"refund_cents"`
	Full          bool   `json:"full"`
}

// RefundHandler issues an owner/admin refund against a payment attempt. A
// full refund cancels the reservation and frees its date range for new
// bookings.
type RefundHandler struct {
	UoWFactory uow.Factory
	Gateway    policies.GatewayPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *RefundHandler) Handle(ctx context.Context, cmd RefundCommand) (*RefundResult, error) {
	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	attempt, err := unit.Payments().ByID(ctx, cmd.AttemptID)
	if err != nil {
		return nil, err
	}
	res, err := unit.Reservations().ByID(ctx, attempt.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, unit, res, cmd.Actor, true); err != nil {
		return nil, err
	}

	amount := attempt.Amount
	if cmd.AmountCents > 0 {
		amount = money.Money{Amount: cmd.AmountCents, Currency: attempt.Amount.Currency}
	}
	if amount.Amount > attempt.Amount.Amount-attempt.RefundAmount.Amount {
		return nil, domainpayment.ErrRefundTooLarge
	}

	if _, err := h.Gateway.Refund(ctx, policies.RefundRequest{
		ChargeID: attempt.GatewayChargeID,
		IntentID: attempt.GatewayIntentID,
		Amount:   amount,
		Reason:   cmd.Reason,
	}); err != nil {
		return nil, err
	}

	full, err := attempt.Refund(amount, cmd.Reason, now)
	if err != nil {
		return nil, err
	}
	heldDates := res.HoldsDates()
	if err := res.ApplyRefund(amount, full, cmd.Reason, now); err != nil {
		return nil, err
	}
	if full && heldDates {
		if err := releaseDates(ctx, unit, res, now); err != nil {
			return nil, err
		}
	}
	if err := unit.Payments().Save(ctx, attempt); err != nil {
		return nil, err
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
	return &RefundResult{ReservationID: string(res.ID), RefundCents: amount.Amount, Full: full}, nil
}

func (h *RefundHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *RefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[RefundCommand, *RefundResult] = (*RefundHandler)(nil)
