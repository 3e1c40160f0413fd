package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainpayment "staybook/internal/domain/payment"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
)

const createSessionKey = "checkout.create_session"

var ErrCheckInInPast = errors.New("checkout: check-in date is in the past")

type CreateSessionCommand struct {
	CommandID       string
	PropertyID      string `validate:"required"`
	GuestID         string `validate:"required"`
	GuestEmail      string `validate:"required,email"`
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int `validate:"gt=0"`
	SuccessURL      string
	CancelURL       string
	IdempotencyKeyV string
}

func (c CreateSessionCommand) Key() string { return createSessionKey }

func (c CreateSessionCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateSessionCommand) ResultPrototype() any { return &CreateSessionResult{} }

type CreateSessionResult struct {
	ReservationID string `json:"reservation_id"`
	SessionID     string `json:"session_id"`
	SessionURL    string `json:"session_url"`
}

// CreateSessionHandler orchestrates a direct checkout: conflict check,
// price quote, provisional PENDING reservation, hosted gateway session and
// the payment attempt referencing it. Any gateway-side failure compensates
// by deleting the provisional reservation.
type CreateSessionHandler struct {
	UoWFactory uow.Factory
	Gateway    policies.GatewayPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
}

func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*CreateSessionResult, error) {
	if h.Gateway == nil {
		return nil, errors.New("checkout: gateway port required")
	}
	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	dr, err := domainrange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	if dr.CheckIn.Before(today(now)) {
		return nil, ErrCheckInInPast
	}

	prop, err := unit.Properties().ByID(ctx, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop.MaxGuests > 0 && cmd.Guests > prop.MaxGuests {
		return nil, fmt.Errorf("checkout: property sleeps at most %d guests", prop.MaxGuests)
	}

	// Conflict read: PENDING reservations do not hold the calendar, so only
	// committed blocks are consulted here. The binding claim happens at
	// confirmation time under the calendar's version check.
	cal, err := unit.Calendars().ByProperty(ctx, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if holder, clash := cal.ConflictingReservation(dr); clash {
		return nil, &domainreservation.DatesUnavailableError{PropertyID: cmd.PropertyID, ConflictingID: domainreservation.ID(holder)}
	}

	price, err := domainpricing.Quote(domainpricing.QuoteInput{
		NightlyRate:       prop.NightlyRate,
		Nights:            dr.Nights(),
		CleaningFee:       prop.CleaningFee,
		ServiceFeePercent: prop.ServiceFeePercent,
		TaxRatePercent:    prop.TaxRatePercent,
	})
	if err != nil {
		return nil, err
	}

	res, err := domainreservation.NewPending(domainreservation.CreateParams{
		ID:         domainreservation.ID(h.commandID(cmd)),
		PropertyID: cmd.PropertyID,
		GuestID:    cmd.GuestID,
		Range:      dr,
		Guests:     cmd.Guests,
		Price:      price,
		Policy:     prop.CancellationPolicy,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}

	session, err := h.Gateway.CreateSession(ctx, policies.SessionRequest{
		ReservationID: string(res.ID),
		Amount:        price.Total,
		CustomerEmail: cmd.GuestEmail,
		Description:   fmt.Sprintf("Stay at %s, %d nights", prop.Name, dr.Nights()),
		SuccessURL:    cmd.SuccessURL,
		CancelURL:     cmd.CancelURL,
	})
	if err != nil {
		// Compensating action: never leave an orphaned PENDING reservation
		// without a payment attempt.
		_ = unit.Reservations().Delete(ctx, res.ID)
		if commit != nil {
			_ = commit(ctx)
		}
		return nil, err
	}

	attempt := domainpayment.NewAttempt(uuid.NewString(), res.ID, price.Total, session.SessionID, now)
	if err := unit.Payments().Save(ctx, attempt); err != nil {
		_ = unit.Reservations().Delete(ctx, res.ID)
		if commit != nil {
			_ = commit(ctx)
		}
		return nil, fmt.Errorf("%w: recording attempt: %v", policies.ErrGateway, err)
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
	return &CreateSessionResult{
		ReservationID: string(res.ID),
		SessionID:     session.SessionID,
		SessionURL:    session.URL,
	}, nil
}

func (h *CreateSessionHandler) commandID(cmd CreateSessionCommand) string {
	if cmd.CommandID != "" {
		return cmd.CommandID
	}
	return uuid.NewString()
}

func (h *CreateSessionHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateSessionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

var _ commands.Handler[CreateSessionCommand, *CreateSessionResult] = (*CreateSessionHandler)(nil)
var _ middleware.IdempotentCommand = CreateSessionCommand{}
