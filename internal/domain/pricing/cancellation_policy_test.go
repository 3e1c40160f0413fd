package pricing

import "testing"

func TestRefundPercentSteps(t *testing.T) {
	tests := []struct {
		policy CancellationPolicy
		days   int
		want   int
	}{
		{PolicyFlexible, 1, 100},
		{PolicyFlexible, 0, 0},
		{PolicyFlexible, -1, 0},
		{PolicyModerate, 5, 100},
		{PolicyModerate, 4, 50},
		{PolicyModerate, 1, 50},
		{PolicyModerate, 0, 0},
		{PolicyStrict, 14, 100},
		{PolicyStrict, 13, 50},
		{PolicyStrict, 7, 50},
		{PolicyStrict, 6, 0},
		{PolicyNonRefundable, 365, 0},
	}
	for _, tt := range tests {
		if got := tt.policy.RefundPercent(tt.days); got != tt.want {
			t.Errorf("%s at %d days: expected %d%%, got %d%%", tt.policy, tt.days, tt.want, got)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		raw  string
		want CancellationPolicy
	}{
		{"FLEXIBLE", PolicyFlexible},
		{" strict ", PolicyStrict},
		{"non_refundable", PolicyNonRefundable},
		{"", PolicyModerate},
		{"whatever", PolicyModerate},
	}
	for _, tt := range tests {
		if got := ParsePolicy(tt.raw); got != tt.want {
			t.Errorf("ParsePolicy(%q): expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}
