package property

import (
	"context"
	"errors"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/money"
)

var ErrNotFound = errors.New("property: not found")

// Property carries the fee composition a reservation is priced against.
// Full property CRUD lives outside the booking core.
type Property struct {
	ID      string
	OwnerID string
	Name    string

	NightlyRate        money.Money
	CleaningFee        money.Money
	ServiceFeePercent  float64
	TaxRatePercent     float64
	PlatformFeePercent float64

	MaxGuests          int
	CancellationPolicy pricing.CancellationPolicy
}

type Repository interface {
	ByID(ctx context.Context, id string) (*Property, error)
	Save(ctx context.Context, p *Property) error
}
