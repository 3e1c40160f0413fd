package pricing

import "strings"

// CancellationPolicy selects the refund step function for a property.
type CancellationPolicy string

const (
	PolicyFlexible      CancellationPolicy = "FLEXIBLE"
	PolicyModerate      CancellationPolicy = "MODERATE"
	PolicyStrict        CancellationPolicy = "STRICT"
	PolicyNonRefundable CancellationPolicy = "NON_REFUNDABLE"
)

// ParsePolicy normalizes a raw policy string, defaulting to MODERATE.
func ParsePolicy(raw string) CancellationPolicy {
	switch CancellationPolicy(strings.ToUpper(strings.TrimSpace(raw))) {
	case PolicyFlexible:
		return PolicyFlexible
	case PolicyStrict:
		return PolicyStrict
	case PolicyNonRefundable:
		return PolicyNonRefundable
	default:
		return PolicyModerate
	}
}

// RefundPercent is the refunded share of the booking total as a step
// function of whole days remaining before check-in.
func (p CancellationPolicy) RefundPercent(daysUntilCheckIn int) int {
	switch p {
	case PolicyFlexible:
		if daysUntilCheckIn >= 1 {
			return 100
		}
		return 0
	case PolicyModerate:
		if daysUntilCheckIn >= 5 {
			return 100
		}
		if daysUntilCheckIn >= 1 {
			return 50
		}
		return 0
	case PolicyStrict:
		if daysUntilCheckIn >= 14 {
			return 100
		}
		if daysUntilCheckIn >= 7 {
			return 50
		}
		return 0
	default:
		return 0
	}
}
