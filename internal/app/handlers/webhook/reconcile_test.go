package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/uow"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

var whNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

type whFixture struct {
	handler *ReconcileHandler
	factory memory.Factory
	box     *memory.Outbox
}

func (f whFixture) unit(t *testing.T) uow.UnitOfWork {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return unit
}

// newWebhookFixture seeds a property, a PENDING reservation and its PENDING
// payment attempt, mirroring the state a checkout session leaves behind.
func newWebhookFixture(t *testing.T) whFixture {
	t.Helper()
	factory := memory.NewFactory()
	box := memory.NewOutbox()
	f := whFixture{
		handler: &ReconcileHandler{
			UoWFactory: factory,
			Outbox:     box,
			Now:        func() time.Time { return whNow },
		},
		factory: factory,
		box:     box,
	}

	ctx := context.Background()
	unit := f.unit(t)
	require.NoError(t, unit.Properties().Save(ctx, &domainproperty.Property{
		ID:                 "prop-1",
		OwnerID:            "owner-1",
		Name:               "Seaside Loft",
		NightlyRate:        money.Must(10000, "EUR"),
		PlatformFeePercent: 10,
		MaxGuests:          4,
	}))

	dr, err := domainrange.New(
		time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	res, err := domainreservation.NewPending(domainreservation.CreateParams{
		ID:         "res-1",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		Range:      dr,
		Guests:     2,
		Price:      domainpricing.Breakdown{Nights: 3, Total: money.Must(47120, "EUR")},
		Policy:     domainpricing.PolicyModerate,
		CreatedAt:  whNow,
	})
	require.NoError(t, err)
	res.ClearEvents()
	require.NoError(t, unit.Reservations().Save(ctx, res))

	attempt := domainpayment.NewAttempt("att-1", "res-1", money.Must(47120, "EUR"), "cs_1", whNow)
	require.NoError(t, unit.Payments().Save(ctx, attempt))
	return f
}

func sessionCompleted() ReconcileCommand {
	return ReconcileCommand{
		EventID:   "evt-1",
		Kind:      KindSessionCompleted,
		SessionID: "cs_1",
		IntentID:  "pi_1",
		ChargeID:  "ch_1",
	}
}

func TestReconcileSessionCompleted(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	result, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "res-1", result.ReservationID)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusConfirmed, res.Status)
	assert.Equal(t, domainreservation.PaymentCompleted, res.PaymentStatus)
	assert.Equal(t, int64(4712), res.Revenue.PlatformFee.Amount)
	assert.Equal(t, int64(42408), res.Revenue.OwnerRevenue.Amount)

	attempt, err := unit.Payments().BySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domainpayment.AttemptCompleted, attempt.Status)
	assert.Equal(t, "pi_1", attempt.GatewayIntentID)

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	holder, clash := cal.ConflictingReservation(res.Range)
	assert.True(t, clash, "confirmation claims the dates")
	assert.Equal(t, "res-1", holder)
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	require.True(t, first.Applied)

	// The gateway delivers at least once; the second delivery and the
	// paired payment.succeeded event both land as no-ops.
	replay, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	assert.False(t, replay.Applied)

	paired := sessionCompleted()
	paired.EventID = "evt-2"
	paired.Kind = KindPaymentSucceeded
	result, err := f.handler.Handle(ctx, paired)
	require.NoError(t, err)
	assert.False(t, result.Applied)

	unit := f.unit(t)
	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Len(t, cal.Blocks, 1, "replays never double-claim the range")
}

func TestReconcilePaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	result, err := f.handler.Handle(ctx, ReconcileCommand{
		EventID:   "evt-1",
		Kind:      KindPaymentFailed,
		SessionID: "cs_1",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusPending, res.Status, "failed payment keeps the reservation retryable")
	assert.Equal(t, domainreservation.PaymentFailed, res.PaymentStatus)
}

func TestReconcileFailureAfterSuccessIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)

	// Out-of-order delivery: a stale failure must not regress the payment.
	result, err := f.handler.Handle(ctx, ReconcileCommand{
		EventID:   "evt-late",
		Kind:      KindPaymentFailed,
		SessionID: "cs_1",
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.PaymentCompleted, res.PaymentStatus)
}

func TestReconcileChargeRefunded(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, ReconcileCommand{
		EventID:     "evt-rf",
		Kind:        KindChargeRefunded,
		SessionID:   "cs_1",
		ChargeID:    "ch_1",
		RefundCents: 47120,
		Currency:    "EUR",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.PaymentRefunded, res.PaymentStatus)
	assert.Equal(t, domainreservation.StatusCancelled, res.Status)

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks, "full refund frees the dates")
}

func TestReconcileSuccessReplayAfterRefund(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, ReconcileCommand{
		EventID:     "evt-rf",
		Kind:        KindChargeRefunded,
		SessionID:   "cs_1",
		ChargeID:    "ch_1",
		RefundCents: 47120,
		Currency:    "EUR",
	})
	require.NoError(t, err)

	// At-least-once delivery: the success events come back after the
	// refund already released the dates.
	for _, kind := range []EventKind{KindPaymentSucceeded, KindSessionCompleted} {
		cmd := sessionCompleted()
		cmd.EventID = "evt-replay-" + string(kind)
		cmd.Kind = kind
		result, err := f.handler.Handle(ctx, cmd)
		require.NoError(t, err, "stale success events must be acknowledged, not retried forever")
		assert.False(t, result.Applied)
	}

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusCancelled, res.Status)
	assert.Equal(t, domainreservation.PaymentRefunded, res.PaymentStatus)

	attempt, err := unit.Payments().BySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, domainpayment.AttemptRefunded, attempt.Status)

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks, "stale replay must not re-block released dates")
}

func TestReconcileSuccessReplayAfterPartialRefund(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, ReconcileCommand{
		EventID:     "evt-rf",
		Kind:        KindChargeRefunded,
		SessionID:   "cs_1",
		RefundCents: 10000,
		Currency:    "EUR",
	})
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)
	assert.False(t, result.Applied)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.PaymentPartiallyRefunded, res.PaymentStatus, "a replay never resurrects COMPLETED")
}

func TestReconcilePartialRefund(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, sessionCompleted())
	require.NoError(t, err)

	result, err := f.handler.Handle(ctx, ReconcileCommand{
		EventID:     "evt-rf",
		Kind:        KindChargeRefunded,
		SessionID:   "cs_1",
		RefundCents: 10000,
		Currency:    "EUR",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.PaymentPartiallyRefunded, res.PaymentStatus)
	assert.Equal(t, domainreservation.StatusConfirmed, res.Status, "partial refund keeps the stay")

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Len(t, cal.Blocks, 1)
}

func TestReconcileRefundBeforeCompletionIsNoop(t *testing.T) {
	f := newWebhookFixture(t)

	result, err := f.handler.Handle(context.Background(), ReconcileCommand{
		EventID:     "evt-early",
		Kind:        KindChargeRefunded,
		SessionID:   "cs_1",
		RefundCents: 100,
	})
	require.NoError(t, err)
	assert.False(t, result.Applied, "refund for a payment that never completed is dropped")
}

func TestReconcileCreatesPlaceholderAttempt(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	// Event references a session the checkout flow has not recorded yet,
	// but carries the reservation correlation id.
	result, err := f.handler.Handle(ctx, ReconcileCommand{
		EventID:       "evt-1",
		Kind:          KindPaymentSucceeded,
		SessionID:     "cs_unseen",
		IntentID:      "pi_9",
		ReservationID: "res-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	unit := f.unit(t)
	attempt, err := unit.Payments().BySessionID(ctx, "cs_unseen")
	require.NoError(t, err)
	assert.Equal(t, domainpayment.AttemptCompleted, attempt.Status)
	assert.Equal(t, domainreservation.ID("res-1"), attempt.ReservationID)
}

func TestReconcileUnknownKind(t *testing.T) {
	f := newWebhookFixture(t)
	result, err := f.handler.Handle(context.Background(), ReconcileCommand{
		EventID: "evt-1",
		Kind:    "customer.updated",
	})
	require.NoError(t, err)
	assert.False(t, result.Applied)
}

func TestReconcileUnresolvable(t *testing.T) {
	f := newWebhookFixture(t)
	_, err := f.handler.Handle(context.Background(), ReconcileCommand{
		EventID:   "evt-1",
		Kind:      KindPaymentSucceeded,
		SessionID: "cs_unknown",
	})
	assert.ErrorIs(t, err, ErrAttemptUnresolvable)
}
