package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainpayment "staybook/internal/domain/payment"
	domainpricing "staybook/internal/domain/pricing"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

// bookingNow is 9 days before check-in, inside the moderate policy's full
// refund window.
var bookingNow = time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC)

var (
	guestActor = Actor{ID: "guest-1", Roles: []string{"GUEST"}}
	ownerActor = Actor{ID: "owner-1", Roles: []string{"OWNER"}}
	adminActor = Actor{ID: "admin-1", Roles: []string{"ADMIN"}}
	otherActor = Actor{ID: "someone-else"}
)

type fakeGateway struct {
	refunds []policies.RefundRequest
	fail    error
}

func (g *fakeGateway) CreateSession(context.Context, policies.SessionRequest) (policies.Session, error) {
	return policies.Session{SessionID: "cs_test", URL: "https://gateway.test/s/cs_test"}, nil
}

func (g *fakeGateway) Refund(_ context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	if g.fail != nil {
		return policies.RefundResult{}, g.fail
	}
	g.refunds = append(g.refunds, req)
	return policies.RefundResult{RefundID: "re_test"}, nil
}

type bookingFixture struct {
	factory memory.Factory
	gateway *fakeGateway
	box     *memory.Outbox
}

func (f bookingFixture) unit(t *testing.T) uow.UnitOfWork {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return unit
}

// newBookingFixture seeds a CONFIRMED reservation with a settled payment
// attempt and its calendar block, the state a finished checkout leaves.
func newBookingFixture(t *testing.T) bookingFixture {
	t.Helper()
	f := bookingFixture{factory: memory.NewFactory(), gateway: &fakeGateway{}, box: memory.NewOutbox()}
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
		CreatedAt:  bookingNow.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	split, err := domainpricing.SplitRevenue(res.Price.Total, 10)
	require.NoError(t, err)
	require.NoError(t, res.CompletePayment(split, bookingNow.Add(-24*time.Hour)))
	res.ClearEvents()
	require.NoError(t, unit.Reservations().Save(ctx, res))

	attempt := domainpayment.NewAttempt("att-1", "res-1", res.Price.Total, "cs_1", bookingNow.Add(-24*time.Hour))
	require.NoError(t, attempt.Complete("pi_1", "ch_1", bookingNow.Add(-24*time.Hour)))
	require.NoError(t, unit.Payments().Save(ctx, attempt))

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	require.NoError(t, cal.Claim(dr, "res-1", bookingNow.Add(-24*time.Hour)))
	cal.ClearEvents()
	require.NoError(t, unit.Calendars().Save(ctx, cal))
	return f
}

func (f bookingFixture) cancelHandler() *CancelHandler {
	return &CancelHandler{
		UoWFactory: f.factory,
		Gateway:    f.gateway,
		Outbox:     f.box,
		Now:        func() time.Time { return bookingNow },
	}
}

func (f bookingFixture) refundHandler() *RefundHandler {
	return &RefundHandler{
		UoWFactory: f.factory,
		Gateway:    f.gateway,
		Outbox:     f.box,
		Now:        func() time.Time { return bookingNow },
	}
}

func (f bookingFixture) lifecycleHandler() *LifecycleHandler {
	return &LifecycleHandler{
		UoWFactory: f.factory,
		Outbox:     f.box,
		Now:        func() time.Time { return bookingNow },
	}
}

func TestCancelWithFullPolicyRefund(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	result, err := f.cancelHandler().Handle(ctx, CancelCommand{
		ReservationID: "res-1",
		Actor:         guestActor,
		Reason:        "change of plans",
	})
	require.NoError(t, err)

	// 9 days out under MODERATE refunds 100%, minus the 3% processing fee.
	assert.Equal(t, int64(47120), result.RefundCents)
	assert.Equal(t, int64(1414), result.FeeCents)
	assert.Equal(t, int64(45706), result.NetCents)

	require.Len(t, f.gateway.refunds, 1)
	assert.Equal(t, "ch_1", f.gateway.refunds[0].ChargeID)
	assert.Equal(t, int64(47120), f.gateway.refunds[0].Amount.Amount)

	unit := f.unit(t)
	res, err := unit.Reservations().ByID(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusCancelled, res.Status)
	assert.Equal(t, domainreservation.PaymentRefunded, res.PaymentStatus)

	cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks, "cancellation frees the dates")
}

func TestCancelWithHalfRefund(t *testing.T) {
	f := newBookingFixture(t)
	handler := f.cancelHandler()
	// 3 days before check-in the moderate policy refunds 50%.
	handler.Now = func() time.Time { return time.Date(2026, time.July, 7, 9, 0, 0, 0, time.UTC) }

	result, err := handler.Handle(context.Background(), CancelCommand{
		ReservationID: "res-1",
		Actor:         guestActor,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(23560), result.RefundCents)

	res, err := f.unit(t).Reservations().ByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusCancelled, res.Status)
	assert.Equal(t, domainreservation.PaymentPartiallyRefunded, res.PaymentStatus)
}

func TestCancelAfterWindowNoRefund(t *testing.T) {
	f := newBookingFixture(t)
	handler := f.cancelHandler()
	handler.Now = func() time.Time { return time.Date(2026, time.July, 10, 9, 0, 0, 0, time.UTC) }

	result, err := handler.Handle(context.Background(), CancelCommand{
		ReservationID: "res-1",
		Actor:         guestActor,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RefundCents)
	assert.Empty(t, f.gateway.refunds, "no gateway call for a zero refund")

	res, err := f.unit(t).Reservations().ByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusCancelled, res.Status)
	assert.Equal(t, domainreservation.PaymentCompleted, res.PaymentStatus, "money stays with a zero-refund cancellation")
}

func TestCancelGatewayFailureAborts(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.fail = policies.ErrGatewayTimeout

	_, err := f.cancelHandler().Handle(context.Background(), CancelCommand{
		ReservationID: "res-1",
		Actor:         guestActor,
	})
	assert.ErrorIs(t, err, policies.ErrGatewayTimeout)

	res, err := f.unit(t).Reservations().ByID(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, domainreservation.StatusConfirmed, res.Status, "nothing changes when the refund call fails")
}

func TestCancelAuthorization(t *testing.T) {
	f := newBookingFixture(t)
	_, err := f.cancelHandler().Handle(context.Background(), CancelCommand{
		ReservationID: "res-1",
		Actor:         otherActor,
	})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestRefundByAttempt(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("partial", func(t *testing.T) {
		result, err := f.refundHandler().Handle(ctx, RefundCommand{
			AttemptID:   "att-1",
			Actor:       ownerActor,
			AmountCents: 10000,
			Reason:      "late check-in goodwill",
		})
		require.NoError(t, err)
		assert.False(t, result.Full)
		assert.Equal(t, int64(10000), result.RefundCents)

		res, err := f.unit(t).Reservations().ByID(ctx, "res-1")
		require.NoError(t, err)
		assert.Equal(t, domainreservation.StatusConfirmed, res.Status)
		assert.Equal(t, domainreservation.PaymentPartiallyRefunded, res.PaymentStatus)
	})

	t.Run("over-refund rejected", func(t *testing.T) {
		_, err := f.refundHandler().Handle(ctx, RefundCommand{
			AttemptID:   "att-1",
			Actor:       ownerActor,
			AmountCents: 47120,
		})
		assert.ErrorIs(t, err, domainpayment.ErrRefundTooLarge)
	})

	t.Run("explicit remainder completes the refund", func(t *testing.T) {
		result, err := f.refundHandler().Handle(ctx, RefundCommand{
			AttemptID:   "att-1",
			Actor:       adminActor,
			AmountCents: 37120,
		})
		require.NoError(t, err)
		assert.True(t, result.Full)
		assert.Equal(t, int64(37120), result.RefundCents)

		unit := f.unit(t)
		res, err := unit.Reservations().ByID(ctx, "res-1")
		require.NoError(t, err)
		assert.Equal(t, domainreservation.StatusCancelled, res.Status)
		assert.Equal(t, domainreservation.PaymentRefunded, res.PaymentStatus)

		cal, err := unit.Calendars().ByProperty(ctx, "prop-1")
		require.NoError(t, err)
		assert.Empty(t, cal.Blocks)
	})
}

func TestRefundDefaultsToFullAmount(t *testing.T) {
	f := newBookingFixture(t)
	result, err := f.refundHandler().Handle(context.Background(), RefundCommand{
		AttemptID: "att-1",
		Actor:     adminActor,
	})
	require.NoError(t, err)
	assert.True(t, result.Full)
	assert.Equal(t, int64(47120), result.RefundCents)
}

func TestRefundGuestNotAllowed(t *testing.T) {
	f := newBookingFixture(t)
	_, err := f.refundHandler().Handle(context.Background(), RefundCommand{
		AttemptID: "att-1",
		Actor:     guestActor,
	})
	assert.ErrorIs(t, err, ErrNotAllowed, "refunds are owner and admin territory")
}

func TestLifecycleCheckInThroughCheckOut(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	handler := f.lifecycleHandler()

	result, err := handler.HandleCheckIn(ctx, CheckInCommand{ReservationID: "res-1", Actor: ownerActor})
	require.NoError(t, err)
	assert.Equal(t, "CHECKED_IN", result.Status)

	result, err = handler.HandleCheckOut(ctx, CheckOutCommand{ReservationID: "res-1", Actor: ownerActor})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", result.Status)

	cal, err := f.unit(t).Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks, "a completed stay stops holding the calendar")

	_, err = handler.HandleCheckIn(ctx, CheckInCommand{ReservationID: "res-1", Actor: ownerActor})
	assert.ErrorIs(t, err, domainreservation.ErrInvalidTransition)
}

func TestLifecycleNoShowOwnerOnly(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	handler := f.lifecycleHandler()

	_, err := handler.HandleNoShow(ctx, NoShowCommand{ReservationID: "res-1", Actor: guestActor})
	assert.ErrorIs(t, err, ErrNotAllowed, "a guest cannot declare their own no-show")

	result, err := handler.HandleNoShow(ctx, NoShowCommand{ReservationID: "res-1", Actor: ownerActor})
	require.NoError(t, err)
	assert.Equal(t, "NO_SHOW", result.Status)

	cal, err := f.unit(t).Calendars().ByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, cal.Blocks)
}

func TestReservationQueries(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	guestHandler := &GuestReservationsHandler{UoWFactory: f.factory}
	views, err := guestHandler.Handle(ctx, GuestReservationsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "res-1", views[0].ID)
	assert.Equal(t, "CONFIRMED", views[0].Status)
	assert.Equal(t, int64(47120), views[0].TotalCents)

	views, err = guestHandler.Handle(ctx, GuestReservationsQuery{GuestID: "guest-unknown"})
	require.NoError(t, err)
	assert.Empty(t, views)

	propHandler := &PropertyReservationsHandler{UoWFactory: f.factory}
	views, err = propHandler.Handle(ctx, PropertyReservationsQuery{PropertyID: "prop-1", Actor: ownerActor})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	_, err = propHandler.Handle(ctx, PropertyReservationsQuery{PropertyID: "prop-1", Actor: otherActor})
	assert.ErrorIs(t, err, ErrNotAllowed)
}
