package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/channel"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var testNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func pendingReservation(t *testing.T) *Reservation {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	res, err := NewPending(CreateParams{
		ID:         "res-1",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		Range:      dr,
		Guests:     2,
		Price:      pricing.Breakdown{Nights: 3, Total: money.Must(47120, "EUR")},
		Policy:     pricing.PolicyModerate,
		CreatedAt:  testNow,
	})
	require.NoError(t, err)
	return res
}

func testSplit() pricing.RevenueSplit {
	return pricing.RevenueSplit{
		PlatformFee:  money.Must(4712, "EUR"),
		OwnerRevenue: money.Must(42408, "EUR"),
	}
}

func TestNewPendingDefaults(t *testing.T) {
	res := pendingReservation(t)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, PaymentPending, res.PaymentStatus)
	assert.Equal(t, channel.SourceDirect, res.Source)
	assert.False(t, res.HoldsDates())

	events := res.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "reservation.requested", events[0].EventName())
}

func TestNewPendingValidation(t *testing.T) {
	dr, err := daterange.New(
		time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	_, err = NewPending(CreateParams{ID: "r", PropertyID: "p", GuestID: "g", Range: dr, Guests: 0})
	assert.ErrorIs(t, err, ErrInvalidGuests)
}

func TestCompletePaymentConfirms(t *testing.T) {
	res := pendingReservation(t)
	require.NoError(t, res.CompletePayment(testSplit(), testNow))

	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, PaymentCompleted, res.PaymentStatus)
	assert.Equal(t, int64(4712), res.Revenue.PlatformFee.Amount)
	assert.True(t, res.HoldsDates())

	// The confirm side effect fires at most once.
	err := res.CompletePayment(testSplit(), testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFailedPaymentCanRecover(t *testing.T) {
	res := pendingReservation(t)
	require.NoError(t, res.FailPayment(testNow))
	assert.Equal(t, StatusPending, res.Status, "reservation survives a failed payment")
	assert.Equal(t, PaymentFailed, res.PaymentStatus)

	require.NoError(t, res.CompletePayment(testSplit(), testNow))
	assert.Equal(t, StatusConfirmed, res.Status)
}

func TestLifecycleHappyPath(t *testing.T) {
	res := pendingReservation(t)
	require.NoError(t, res.CompletePayment(testSplit(), testNow))
	require.NoError(t, res.CheckInGuest(testNow))
	assert.Equal(t, StatusCheckedIn, res.Status)
	require.NoError(t, res.CompleteStay(testNow))
	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.HoldsDates())

	assert.ErrorIs(t, res.Cancel("too late", testNow), ErrInvalidTransition)
	assert.ErrorIs(t, res.CheckInGuest(testNow), ErrInvalidTransition)
}

func TestInvalidLifecycleJumps(t *testing.T) {
	res := pendingReservation(t)
	assert.ErrorIs(t, res.CheckInGuest(testNow), ErrInvalidTransition, "cannot check in a PENDING stay")
	assert.ErrorIs(t, res.CompleteStay(testNow), ErrInvalidTransition)
	assert.ErrorIs(t, res.MarkNoShow(testNow), ErrInvalidTransition)
}

func TestNoShowFromConfirmed(t *testing.T) {
	res := pendingReservation(t)
	require.NoError(t, res.CompletePayment(testSplit(), testNow))
	require.NoError(t, res.MarkNoShow(testNow))
	assert.Equal(t, StatusNoShow, res.Status)
	assert.Equal(t, PaymentCompleted, res.PaymentStatus, "no-show keeps the payment")
}

func TestApplyRefund(t *testing.T) {
	t.Run("partial keeps the reservation alive on the payment side", func(t *testing.T) {
		res := pendingReservation(t)
		require.NoError(t, res.CompletePayment(testSplit(), testNow))
		require.NoError(t, res.ApplyRefund(money.Must(10000, "EUR"), false, "goodwill", testNow))
		assert.Equal(t, PaymentPartiallyRefunded, res.PaymentStatus)
		assert.Equal(t, StatusConfirmed, res.Status)
	})

	t.Run("full refund cancels", func(t *testing.T) {
		res := pendingReservation(t)
		require.NoError(t, res.CompletePayment(testSplit(), testNow))
		require.NoError(t, res.ApplyRefund(money.Must(47120, "EUR"), true, "dispute", testNow))
		assert.Equal(t, PaymentRefunded, res.PaymentStatus)
		assert.Equal(t, StatusCancelled, res.Status)
	})

	t.Run("full refund after manual cancel does not double-cancel", func(t *testing.T) {
		res := pendingReservation(t)
		require.NoError(t, res.CompletePayment(testSplit(), testNow))
		require.NoError(t, res.Cancel("changed plans", testNow))
		require.NoError(t, res.ApplyRefund(money.Must(47120, "EUR"), true, "policy refund", testNow))
		assert.Equal(t, PaymentRefunded, res.PaymentStatus)
	})

	t.Run("refund before payment completes is invalid", func(t *testing.T) {
		res := pendingReservation(t)
		err := res.ApplyRefund(money.Must(100, "EUR"), false, "", testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestNewImported(t *testing.T) {
	dr, err := daterange.New(
		time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	params := ImportParams{
		CreateParams: CreateParams{
			ID: "res-ext", PropertyID: "prop-1", GuestID: "guest-1",
			Range: dr, Guests: 2,
			Price:     pricing.Breakdown{Nights: 3, Total: money.Must(50000, "EUR")},
			CreatedAt: testNow,
		},
		Source:     channel.SourceBookingCom,
		ExternalID: "BK-42",
		Commission: pricing.CommissionSplit{
			RatePercent: 15,
			Commission:  money.Must(7500, "EUR"),
			NetRevenue:  money.Must(42500, "EUR"),
		},
		SyncedAt: testNow,
	}

	res, err := NewImported(params)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, PaymentCompleted, res.PaymentStatus)
	assert.Equal(t, 15.0, res.Revenue.CommissionPercent)
	assert.True(t, res.HoldsDates())

	t.Run("direct source rejected", func(t *testing.T) {
		bad := params
		bad.Source = channel.SourceDirect
		_, err := NewImported(bad)
		assert.ErrorIs(t, err, ErrNotExternal)
	})

	t.Run("external id required", func(t *testing.T) {
		bad := params
		bad.ExternalID = ""
		_, err := NewImported(bad)
		assert.ErrorIs(t, err, ErrExternalIDRequired)
	})
}

func TestApplySyncRecomputesCommission(t *testing.T) {
	dr, _ := daterange.New(
		time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 0, 0, 0, 0, time.UTC),
	)
	res, err := NewImported(ImportParams{
		CreateParams: CreateParams{
			ID: "res-ext", PropertyID: "prop-1", GuestID: "guest-1",
			Range: dr, Guests: 2,
			Price:     pricing.Breakdown{Nights: 3, Total: money.Must(50000, "EUR")},
			CreatedAt: testNow,
		},
		Source:     channel.SourceAirbnb,
		ExternalID: "AB-7",
		Commission: pricing.CommissionSplit{RatePercent: 3, Commission: money.Must(1500, "EUR"), NetRevenue: money.Must(48500, "EUR")},
		SyncedAt:   testNow,
	})
	require.NoError(t, err)

	newTotal := money.Must(60000, "EUR")
	later := testNow.Add(48 * time.Hour)
	require.NoError(t, res.ApplySync(SyncPatch{Total: &newTotal}, later))

	assert.Equal(t, int64(60000), res.Price.Total.Amount)
	assert.Equal(t, 3.0, res.Revenue.CommissionPercent, "rate carries over")
	assert.Equal(t, int64(1800), res.Revenue.Commission.Amount)
	assert.Equal(t, int64(58200), res.Revenue.NetRevenue.Amount)
	assert.Equal(t, later, res.LastSyncedAt)
}

func TestApplySyncRejectsDirectReservations(t *testing.T) {
	res := pendingReservation(t)
	err := res.ApplySync(SyncPatch{}, testNow)
	assert.ErrorIs(t, err, ErrNotExternal)
}

func TestConflictErrors(t *testing.T) {
	dates := &DatesUnavailableError{PropertyID: "prop-1", ConflictingID: "res-9"}
	dup := &DuplicateImportError{Source: channel.SourceAirbnb, ExternalID: "AB-1", ExistingID: "res-3"}

	assert.True(t, IsConflict(dates))
	assert.True(t, IsConflict(dup))
	assert.False(t, IsConflict(ErrNotFound))
	assert.ErrorIs(t, dup, ErrDuplicateExternalID)
}
