package pricing

import (
	"errors"
	"math"

	"staybook/internal/domain/channel"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidNights     = errors.New("pricing: nights must be positive")
	ErrNegativeComponent = errors.New("pricing: monetary components cannot be negative")
	ErrInvalidPercentage = errors.New("pricing: percentage out of range")
	ErrCurrencyUnset     = errors.New("pricing: currency must be defined")
)

// refundProcessingFeePercent is deducted from every refund payout.
const refundProcessingFeePercent = 3.0

// Breakdown is the reproducible price decomposition persisted on a
// reservation. Every field is rounded to cents exactly once, from exact
// intermediates, using round-half-to-even.
type Breakdown struct {
	Nights      int
	NightlyRate money.Money
	Subtotal    money.Money
	CleaningFee money.Money
	ServiceFee  money.Money
	Taxes       money.Money
	Discount    money.Money
	Total       money.Money
}

// QuoteInput carries the raw fee composition of a stay.
type QuoteInput struct {
	NightlyRate       money.Money
	Nights            int
	CleaningFee       money.Money
	ServiceFeePercent float64
	TaxRatePercent    float64
	Discount          money.Money
}

// Quote computes the price breakdown for a stay:
//
//	subtotal   = nightlyRate * nights
//	serviceFee = subtotal * serviceFeePct/100
//	taxes      = (subtotal + cleaningFee + serviceFee) * taxRate/100
//	total      = subtotal + cleaningFee + serviceFee + taxes - discount
func Quote(in QuoteInput) (Breakdown, error) {
	if in.Nights <= 0 {
		return Breakdown{}, ErrInvalidNights
	}
	currency := in.NightlyRate.Currency
	if currency == "" {
		return Breakdown{}, ErrCurrencyUnset
	}
	if in.NightlyRate.IsNegative() || in.CleaningFee.IsNegative() || in.Discount.IsNegative() {
		return Breakdown{}, ErrNegativeComponent
	}
	if in.ServiceFeePercent < 0 || in.TaxRatePercent < 0 {
		return Breakdown{}, ErrInvalidPercentage
	}

	subtotal := float64(in.NightlyRate.Amount) * float64(in.Nights)
	serviceFee := subtotal * in.ServiceFeePercent / 100
	cleaning := float64(in.CleaningFee.Amount)
	taxes := (subtotal + cleaning + serviceFee) * in.TaxRatePercent / 100
	total := subtotal + cleaning + serviceFee + taxes - float64(in.Discount.Amount)
	if total < 0 {
		total = 0
	}

	return Breakdown{
		Nights:      in.Nights,
		NightlyRate: in.NightlyRate,
		Subtotal:    roundCents(subtotal, currency),
		CleaningFee: in.CleaningFee,
		ServiceFee:  roundCents(serviceFee, currency),
		Taxes:       roundCents(taxes, currency),
		Discount:    in.Discount,
		Total:       roundCents(total, currency),
	}, nil
}

// RevenueSplit is the direct-channel division of a completed payment.
type RevenueSplit struct {
	PlatformFee  money.Money
	OwnerRevenue money.Money
}

// SplitRevenue divides a completed total between the platform operator and
// the property owner. The two parts always sum back to the total.
func SplitRevenue(total money.Money, platformFeePercent float64) (RevenueSplit, error) {
	if platformFeePercent < 0 || platformFeePercent > 100 {
		return RevenueSplit{}, ErrInvalidPercentage
	}
	fee := roundCents(float64(total.Amount)*platformFeePercent/100, total.Currency)
	owner, err := total.Sub(fee)
	if err != nil {
		return RevenueSplit{}, err
	}
	return RevenueSplit{PlatformFee: fee, OwnerRevenue: owner}, nil
}

// CommissionSplit is the external-channel division of a booking total.
type CommissionSplit struct {
	RatePercent float64
	Commission  money.Money
	NetRevenue  money.Money
}

// SplitCommission computes the channel commission. An explicit rate from the
// import payload takes precedence over the channel default.
func SplitCommission(total money.Money, source channel.Source, explicitRate *float64) (CommissionSplit, error) {
	rate := source.DefaultCommissionRate()
	if explicitRate != nil {
		rate = *explicitRate
	}
	if rate < 0 || rate > 100 {
		return CommissionSplit{}, ErrInvalidPercentage
	}
	commission := roundCents(float64(total.Amount)*rate/100, total.Currency)
	net, err := total.Sub(commission)
	if err != nil {
		return CommissionSplit{}, err
	}
	return CommissionSplit{RatePercent: rate, Commission: commission, NetRevenue: net}, nil
}

// RefundBreakdown describes how much of a cancelled booking flows back.
type RefundBreakdown struct {
	RefundAmount  money.Money
	ProcessingFee money.Money
	NetRefund     money.Money
}

// QuoteRefund applies the cancellation policy step function and deducts the
// flat processing fee, flooring the payout at zero.
func QuoteRefund(total money.Money, daysUntilCheckIn int, policy CancellationPolicy) RefundBreakdown {
	percent := policy.RefundPercent(daysUntilCheckIn)
	refund := roundCents(float64(total.Amount)*float64(percent)/100, total.Currency)
	fee := roundCents(float64(refund.Amount)*refundProcessingFeePercent/100, total.Currency)
	net := money.Money{Amount: refund.Amount - fee.Amount, Currency: total.Currency}
	if net.Amount < 0 {
		net.Amount = 0
	}
	return RefundBreakdown{RefundAmount: refund, ProcessingFee: fee, NetRefund: net}
}

func roundCents(cents float64, currency string) money.Money {
	return money.Money{Amount: int64(math.RoundToEven(cents)), Currency: currency}
}
