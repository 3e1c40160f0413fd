package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/reservation"
	"staybook/internal/domain/shared/money"
)

var (
	ErrAttemptNotFound   = errors.New("payment: attempt not found")
	ErrInvalidTransition = errors.New("payment: invalid attempt transition")
	ErrRefundTooLarge    = errors.New("payment: refund exceeds attempt amount")
)

type AttemptStatus string

const (
	AttemptPending           AttemptStatus = "PENDING"
	AttemptCompleted         AttemptStatus = "COMPLETED"
	AttemptFailed            AttemptStatus = "FAILED"
	AttemptRefunded          AttemptStatus = "REFUNDED"
	AttemptPartiallyRefunded AttemptStatus = "PARTIALLY_REFUNDED"
)

// Attempt is one gateway-side payment object for a reservation. A
// reservation may accumulate several attempts across retries, so attempt
// status is tracked independently of the reservation's payment status.
type Attempt struct {
	ID            string
	ReservationID reservation.ID
	Amount        money.Money
	Status        AttemptStatus

	GatewaySessionID string
	GatewayIntentID  string
	GatewayChargeID  string

	RefundAmount money.Money
	RefundReason string

	ProcessedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

// Repository stores payment attempts. Lookups by gateway identifiers serve
// the webhook reconciler, which may see an event before the checkout flow
// committed its attempt record.
type Repository interface {
	ByID(ctx context.Context, id string) (*Attempt, error)
	BySessionID(ctx context.Context, sessionID string) (*Attempt, error)
	ByIntentID(ctx context.Context, intentID string) (*Attempt, error)
	ByReservation(ctx context.Context, id reservation.ID) ([]*Attempt, error)
	Save(ctx context.Context, a *Attempt) error
}

func NewAttempt(id string, reservationID reservation.ID, amount money.Money, sessionID string, now time.Time) *Attempt {
	now = now.UTC()
	return &Attempt{
		ID:               id,
		ReservationID:    reservationID,
		Amount:           amount,
		Status:           AttemptPending,
		GatewaySessionID: sessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Complete marks the attempt settled. Completing an already settled attempt
// is an invalid transition; callers treat duplicates as no-ops upstream.
func (a *Attempt) Complete(intentID, chargeID string, now time.Time) error {
	if a.Status != AttemptPending && a.Status != AttemptFailed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, AttemptCompleted)
	}
	a.Status = AttemptCompleted
	if intentID != "" {
		a.GatewayIntentID = intentID
	}
	if chargeID != "" {
		a.GatewayChargeID = chargeID
	}
	a.ProcessedAt = now.UTC()
	a.UpdatedAt = now.UTC()
	return nil
}

func (a *Attempt) Fail(now time.Time) error {
	if a.Status != AttemptPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, AttemptFailed)
	}
	a.Status = AttemptFailed
	a.UpdatedAt = now.UTC()
	return nil
}

// Refund records a (possibly partial) refund against a settled attempt.
// Cumulative refunds never exceed the charged amount.
func (a *Attempt) Refund(amount money.Money, reason string, now time.Time) (full bool, err error) {
	if a.Status != AttemptCompleted && a.Status != AttemptPartiallyRefunded {
		return false, fmt.Errorf("%w: %s -> refund", ErrInvalidTransition, a.Status)
	}
	total, err := a.RefundAmount.Add(amount)
	if err != nil {
		// First refund on an attempt with no prior refund currency.
		if a.RefundAmount.IsZero() && a.RefundAmount.Currency == "" {
			total = amount
		} else {
			return false, err
		}
	}
	if total.Amount > a.Amount.Amount {
		return false, ErrRefundTooLarge
	}
	a.RefundAmount = total
	a.RefundReason = reason
	if total.Amount == a.Amount.Amount {
		a.Status = AttemptRefunded
		full = true
	} else {
		a.Status = AttemptPartiallyRefunded
	}
	a.UpdatedAt = now.UTC()
	return full, nil
}
