package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainpayment "staybook/internal/domain/payment"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
)

const reconcileKey = "webhook.reconcile"

// EventKind classifies the gateway notifications the reconciler acts on.
// Unrecognized kinds are acknowledged without any state change.
type EventKind string

const (
	KindSessionCompleted EventKind = "checkout.session.completed"
	KindPaymentSucceeded EventKind = "payment.succeeded"
	KindPaymentFailed    EventKind = "payment.failed"
	KindChargeRefunded   EventKind = "charge.refunded"
)

var ErrAttemptUnresolvable = errors.New("webhook: cannot resolve payment attempt or reservation")

// ReconcileCommand is one verified gateway event. Delivery is at least
// once and unordered; the handler is idempotent.
type ReconcileCommand struct {
	EventID       string
	Kind          EventKind
	SessionID     string
	IntentID      string
	ChargeID      string
	ReservationID string // correlation metadata tagged on the session
	RefundCents   int64
	Currency      string
}

func (c ReconcileCommand) Key() string { return reconcileKey }

type ReconcileResult struct {
	ReservationID string `json:"reservation_id,omitempty"`
	Applied       bool   `json:"applied"`
}

// ReconcileHandler advances the booking state machine from gateway events.
// Success events run the confirm side effect exactly once; replays and
// reordered deliveries short-circuit once the payment has settled, so a
// success event arriving after a refund is acknowledged without undoing it.
type ReconcileHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (*ReconcileResult, error) {
	switch cmd.Kind {
	case KindSessionCompleted, KindPaymentSucceeded, KindPaymentFailed, KindChargeRefunded:
	default:
		return &ReconcileResult{Applied: false}, nil
	}

	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	attempt, res, err := h.resolve(ctx, unit, cmd, now)
	if err != nil {
		return nil, err
	}

	var applied bool
	switch cmd.Kind {
	case KindSessionCompleted, KindPaymentSucceeded:
		applied, err = h.applySuccess(ctx, unit, attempt, res, cmd, now)
	case KindPaymentFailed:
		applied, err = h.applyFailure(ctx, unit, attempt, res, now)
	case KindChargeRefunded:
		applied, err = h.applyRefund(ctx, unit, attempt, res, cmd, now)
	}
	if err != nil {
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
	return &ReconcileResult{ReservationID: string(res.ID), Applied: applied}, nil
}

// resolve locates the payment attempt by gateway identifiers, creating a
// placeholder when the event raced ahead of the checkout flow's own write.
func (h *ReconcileHandler) resolve(ctx context.Context, unit uow.UnitOfWork, cmd ReconcileCommand, now time.Time) (*domainpayment.Attempt, *domainreservation.Reservation, error) {
	var attempt *domainpayment.Attempt
	var err error
	if cmd.SessionID != "" {
		attempt, err = unit.Payments().BySessionID(ctx, cmd.SessionID)
		if err != nil && !errors.Is(err, domainpayment.ErrAttemptNotFound) {
			return nil, nil, err
		}
	}
	if attempt == nil && cmd.IntentID != "" {
		attempt, err = unit.Payments().ByIntentID(ctx, cmd.IntentID)
		if err != nil && !errors.Is(err, domainpayment.ErrAttemptNotFound) {
			return nil, nil, err
		}
	}

	if attempt != nil {
		res, err := unit.Reservations().ByID(ctx, attempt.ReservationID)
		if err != nil {
			return nil, nil, err
		}
		return attempt, res, nil
	}

	if cmd.ReservationID == "" {
		return nil, nil, ErrAttemptUnresolvable
	}
	res, err := unit.Reservations().ByID(ctx, domainreservation.ID(cmd.ReservationID))
	if err != nil {
		return nil, nil, err
	}
	attempt = domainpayment.NewAttempt(uuid.NewString(), res.ID, res.Price.Total, cmd.SessionID, now)
	attempt.GatewayIntentID = cmd.IntentID
	if err := unit.Payments().Save(ctx, attempt); err != nil {
		return nil, nil, err
	}
	return attempt, res, nil
}

func (h *ReconcileHandler) applySuccess(ctx context.Context, unit uow.UnitOfWork, attempt *domainpayment.Attempt, res *domainreservation.Reservation, cmd ReconcileCommand, now time.Time) (bool, error) {
	// Idempotent short-circuit: replays, the second of the
	// session-completed/payment-succeeded pair and success events
	// redelivered after a refund all land here.
	switch res.PaymentStatus {
	case domainreservation.PaymentCompleted, domainreservation.PaymentRefunded, domainreservation.PaymentPartiallyRefunded:
		return false, nil
	}

	prop, err := unit.Properties().ByID(ctx, res.PropertyID)
	if err != nil {
		return false, err
	}
	split, err := domainpricing.SplitRevenue(res.Price.Total, prop.PlatformFeePercent)
	if err != nil {
		return false, err
	}

	// Transitions run before any write so a stale delivery is rejected
	// without touching the calendar.
	if err := attempt.Complete(cmd.IntentID, cmd.ChargeID, now); err != nil {
		return false, err
	}
	if err := res.CompletePayment(split, now); err != nil {
		return false, err
	}

	// The calendar claim and its versioned save are the atomic unit that
	// keeps two overlapping reservations from both confirming.
	cal, err := unit.Calendars().ByProperty(ctx, res.PropertyID)
	if err != nil {
		return false, err
	}
	if holder, clash := cal.ConflictingReservation(res.Range); clash {
		if holder != string(res.ID) {
			return false, &domainreservation.DatesUnavailableError{PropertyID: res.PropertyID, ConflictingID: domainreservation.ID(holder)}
		}
		// A prior partially-applied delivery already claimed the range.
	} else {
		if err := cal.Claim(res.Range, string(res.ID), now); err != nil {
			return false, err
		}
		if err := unit.Calendars().Save(ctx, cal); err != nil {
			return false, err
		}
	}

	if err := unit.Payments().Save(ctx, attempt); err != nil {
		return false, err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return false, err
	}
	return true, nil
}

// applyFailure marks the payment FAILED; the reservation stays PENDING so
// the guest can retry and an external sweeper can expire it.
func (h *ReconcileHandler) applyFailure(ctx context.Context, unit uow.UnitOfWork, attempt *domainpayment.Attempt, res *domainreservation.Reservation, now time.Time) (bool, error) {
	if res.PaymentStatus == domainreservation.PaymentCompleted {
		return false, nil
	}
	if res.PaymentStatus == domainreservation.PaymentFailed {
		return false, nil
	}
	if err := attempt.Fail(now); err != nil {
		if errors.Is(err, domainpayment.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}
	if err := res.FailPayment(now); err != nil {
		return false, err
	}
	if err := unit.Payments().Save(ctx, attempt); err != nil {
		return false, err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return false, err
	}
	return true, nil
}

// applyRefund reconciles a gateway-initiated refund (e.g. a dispute settled
// in the cardholder's favor).
func (h *ReconcileHandler) applyRefund(ctx context.Context, unit uow.UnitOfWork, attempt *domainpayment.Attempt, res *domainreservation.Reservation, cmd ReconcileCommand, now time.Time) (bool, error) {
	switch res.PaymentStatus {
	case domainreservation.PaymentRefunded:
		return false, nil
	case domainreservation.PaymentCompleted, domainreservation.PaymentPartiallyRefunded:
	default:
		return false, nil
	}
	amount := attempt.Amount
	if cmd.RefundCents > 0 {
		amount.Amount = cmd.RefundCents
		if cmd.Currency != "" {
			amount.Currency = cmd.Currency
		}
	}
	full, err := attempt.Refund(amount, "gateway refund", now)
	if err != nil {
		return false, err
	}
	if err := res.ApplyRefund(amount, full, "gateway refund", now); err != nil {
		return false, err
	}
	if full {
		cal, err := unit.Calendars().ByProperty(ctx, res.PropertyID)
		if err != nil {
			return false, err
		}
		if err := cal.Release(string(res.ID), now); err == nil {
			if err := unit.Calendars().Save(ctx, cal); err != nil {
				return false, err
			}
		}
	}
	if err := unit.Payments().Save(ctx, attempt); err != nil {
		return false, err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return false, err
	}
	return true, nil
}

func (h *ReconcileHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ReconcileHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ReconcileCommand, *ReconcileResult] = (*ReconcileHandler)(nil)
