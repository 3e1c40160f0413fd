package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/channel"
	"staybook/internal/domain/shared/money"
)

func TestQuoteBreakdown(t *testing.T) {
	got, err := Quote(QuoteInput{
		NightlyRate:       money.Must(10000, "EUR"),
		Nights:            3,
		CleaningFee:       money.Must(5000, "EUR"),
		ServiceFeePercent: 10,
		TaxRatePercent:    24,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(30000), got.Subtotal.Amount)
	assert.Equal(t, int64(3000), got.ServiceFee.Amount)
	assert.Equal(t, int64(9120), got.Taxes.Amount)
	assert.Equal(t, int64(47120), got.Total.Amount)
	assert.Equal(t, "EUR", got.Total.Currency)
}

func TestQuoteIsDeterministic(t *testing.T) {
	in := QuoteInput{
		NightlyRate:       money.Must(13337, "USD"),
		Nights:            11,
		CleaningFee:       money.Must(2199, "USD"),
		ServiceFeePercent: 12.5,
		TaxRatePercent:    8.875,
		Discount:          money.Must(1500, "USD"),
	}
	first, err := Quote(in)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := Quote(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQuoteValidation(t *testing.T) {
	tests := []struct {
		name string
		in   QuoteInput
		want error
	}{
		{
			name: "zero nights",
			in:   QuoteInput{NightlyRate: money.Must(10000, "EUR")},
			want: ErrInvalidNights,
		},
		{
			name: "missing currency",
			in:   QuoteInput{NightlyRate: money.Money{Amount: 10000}, Nights: 2},
			want: ErrCurrencyUnset,
		},
		{
			name: "negative cleaning fee",
			in: QuoteInput{
				NightlyRate: money.Must(10000, "EUR"),
				Nights:      2,
				CleaningFee: money.Must(-100, "EUR"),
			},
			want: ErrNegativeComponent,
		},
		{
			name: "service fee over the top is fine, negative is not",
			in: QuoteInput{
				NightlyRate:       money.Must(10000, "EUR"),
				Nights:            2,
				ServiceFeePercent: -1,
			},
			want: ErrInvalidPercentage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Quote(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuoteFloorsTotalAtZero(t *testing.T) {
	got, err := Quote(QuoteInput{
		NightlyRate: money.Must(1000, "EUR"),
		Nights:      1,
		Discount:    money.Must(5000, "EUR"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Total.Amount)
}

func TestRoundCentsHalfToEven(t *testing.T) {
	// 100.125 EUR of subtotal at 50% yields 5006.25 cents; half-to-even
	// rounding must settle ties on the even cent.
	assert.Equal(t, int64(5006), roundCents(5006.5, "EUR").Amount)
	assert.Equal(t, int64(5008), roundCents(5007.5, "EUR").Amount)
}

func TestSplitRevenue(t *testing.T) {
	total := money.Must(47120, "EUR")
	split, err := SplitRevenue(total, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4712), split.PlatformFee.Amount)
	assert.Equal(t, int64(42408), split.OwnerRevenue.Amount)

	sum, err := split.PlatformFee.Add(split.OwnerRevenue)
	require.NoError(t, err)
	assert.Equal(t, total, sum)

	_, err = SplitRevenue(total, 101)
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestSplitCommission(t *testing.T) {
	total := money.Must(50000, "EUR")

	t.Run("channel default rate", func(t *testing.T) {
		split, err := SplitCommission(total, channel.SourceBookingCom, nil)
		require.NoError(t, err)
		assert.Equal(t, 15.0, split.RatePercent)
		assert.Equal(t, int64(7500), split.Commission.Amount)
		assert.Equal(t, int64(42500), split.NetRevenue.Amount)
	})

	t.Run("explicit rate wins over the default", func(t *testing.T) {
		rate := 18.0
		split, err := SplitCommission(total, channel.SourceBookingCom, &rate)
		require.NoError(t, err)
		assert.Equal(t, 18.0, split.RatePercent)
		assert.Equal(t, int64(9000), split.Commission.Amount)
		assert.Equal(t, int64(41000), split.NetRevenue.Amount)
	})

	t.Run("parts sum back to the total", func(t *testing.T) {
		rate := 13.33
		split, err := SplitCommission(total, channel.SourceOther, &rate)
		require.NoError(t, err)
		sum, err := split.Commission.Add(split.NetRevenue)
		require.NoError(t, err)
		assert.Equal(t, total, sum)
	})

	t.Run("rate out of range", func(t *testing.T) {
		rate := 120.0
		_, err := SplitCommission(total, channel.SourceAirbnb, &rate)
		assert.ErrorIs(t, err, ErrInvalidPercentage)
	})
}

func TestQuoteRefund(t *testing.T) {
	total := money.Must(100000, "EUR")

	t.Run("full refund minus processing fee", func(t *testing.T) {
		got := QuoteRefund(total, 10, PolicyModerate)
		assert.Equal(t, int64(100000), got.RefundAmount.Amount)
		assert.Equal(t, int64(3000), got.ProcessingFee.Amount)
		assert.Equal(t, int64(97000), got.NetRefund.Amount)
	})

	t.Run("half refund inside the moderate window", func(t *testing.T) {
		got := QuoteRefund(total, 3, PolicyModerate)
		assert.Equal(t, int64(50000), got.RefundAmount.Amount)
		assert.Equal(t, int64(1500), got.ProcessingFee.Amount)
		assert.Equal(t, int64(48500), got.NetRefund.Amount)
	})

	t.Run("no refund after check-in day", func(t *testing.T) {
		got := QuoteRefund(total, 0, PolicyFlexible)
		assert.Equal(t, int64(0), got.RefundAmount.Amount)
		assert.Equal(t, int64(0), got.NetRefund.Amount)
	})

	t.Run("non refundable always zero", func(t *testing.T) {
		got := QuoteRefund(total, 60, PolicyNonRefundable)
		assert.Equal(t, int64(0), got.RefundAmount.Amount)
	})
}
