package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainchannel "staybook/internal/domain/channel"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	domainuser "staybook/internal/domain/user"
)

const importKey = "channel.import"

type ImportCommand struct {
	CommandID        string
	Source           string `validate:"required"`
	ExternalID       string `validate:"required"`
	ExternalPlatform string
	PropertyID       string `validate:"required"`
	CheckIn          time.Time
	CheckOut         time.Time
	Guests           int    `validate:"gt=0"`
	GuestEmail       string `validate:"required,email"`
	GuestName        string
	TotalCents       int64 `validate:"gt=0"`
	Currency         string
	CommissionRate   *float64
	RawPayload       []byte
	IdempotencyKeyV  string
}

func (c ImportCommand) Key() string { return importKey }

func (c ImportCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ImportCommand) ResultPrototype() any { return &ImportResult{} }

type ImportResult struct {
	ReservationID  string  `json:"reservation_id"`
	CommissionRate float64 `json:"commission_rate"`
	NetCents       int64   `json:"net_cents"`
}

// ImportHandler ingests a reservation already finalized on an external
// channel. Duplicate (source, externalId) pairs are rejected with the
// existing reservation id; a date clash is a distinct validation failure.
type ImportHandler struct {
	UoWFactory uow.Factory
	Hasher     policies.PasswordHasher
	Tokens     policies.TokenGenerator
	Archiver   policies.PayloadArchiver
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ImportHandler) Handle(ctx context.Context, cmd ImportCommand) (*ImportResult, error) {
	source, err := domainchannel.Parse(cmd.Source)
	if err != nil {
		return nil, err
	}
	if !source.IsExternal() {
		return nil, domainreservation.ErrNotExternal
	}

	unit, ctx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	now := h.now()
	existing, err := unit.Reservations().ByExternalID(ctx, source, cmd.ExternalID)
	if err == nil {
		return nil, &domainreservation.DuplicateImportError{Source: source, ExternalID: cmd.ExternalID, ExistingID: existing.ID}
	}
	if !errors.Is(err, domainreservation.ErrNotFound) {
		return nil, err
	}

	dr, err := domainrange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	if _, err := unit.Properties().ByID(ctx, cmd.PropertyID); err != nil {
		return nil, err
	}

	guest, err := h.resolveGuest(ctx, unit, cmd, now)
	if err != nil {
		return nil, err
	}

	currency := cmd.Currency
	if currency == "" {
		currency = "EUR"
	}
	total, err := money.New(cmd.TotalCents, currency)
	if err != nil {
		return nil, err
	}
	split, err := domainpricing.SplitCommission(total, source, cmd.CommissionRate)
	if err != nil {
		return nil, err
	}

	resID := h.commandID(cmd)
	// External reservations arrive already paid, so the calendar claim is
	// binding immediately; the versioned save closes the race with
	// concurrent imports and confirmations.
	cal, err := unit.Calendars().ByProperty(ctx, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := cal.Claim(dr, resID, now); err != nil {
		holder, _ := cal.ConflictingReservation(dr)
		return nil, fmt.Errorf("%w: dates held by %s", ErrDatesClash, holder)
	}

	res, err := domainreservation.NewImported(domainreservation.ImportParams{
		CreateParams: domainreservation.CreateParams{
			ID:         domainreservation.ID(resID),
			PropertyID: cmd.PropertyID,
			GuestID:    guest.ID,
			Range:      dr,
			Guests:     cmd.Guests,
			Price:      domainpricing.Breakdown{Nights: dr.Nights(), Total: total},
			CreatedAt:  now,
		},
		Source:           source,
		ExternalID:       cmd.ExternalID,
		ExternalPlatform: cmd.ExternalPlatform,
		RawPayload:       cmd.RawPayload,
		Commission:       split,
		SyncedAt:         now,
	})
	if err != nil {
		return nil, err
	}
	// The reservation write goes first: a duplicate-index race or version
	// conflict surfaces before any calendar state is persisted. When the
	// calendar save then loses its own race, the fresh reservation is
	// compensated away so no orphan block or block-less booking survives.
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}
	if err := unit.Calendars().Save(ctx, cal); err != nil {
		_ = unit.Reservations().Delete(ctx, res.ID)
		return nil, err
	}

	h.archive(ctx, source, cmd)

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
	return &ImportResult{
		ReservationID:  string(res.ID),
		CommissionRate: split.RatePercent,
		NetCents:       split.NetRevenue.Amount,
	}, nil
}

// resolveGuest finds the guest by contact email or provisions an account
// with a random initial credential.
func (h *ImportHandler) resolveGuest(ctx context.Context, unit uow.UnitOfWork, cmd ImportCommand, now time.Time) (*domainuser.User, error) {
	email := domainuser.NormalizeEmail(cmd.GuestEmail)
	guest, err := unit.Users().ByEmail(ctx, email)
	if err == nil {
		return guest, nil
	}

	hash := ""
	if h.Tokens != nil && h.Hasher != nil {
		secret, err := h.Tokens.NewToken()
		if err != nil {
			return nil, err
		}
		hash, err = h.Hasher.Hash(secret)
		if err != nil {
			return nil, err
		}
	}
	guest = &domainuser.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         cmd.GuestName,
		PasswordHash: hash,
		Roles:        []domainuser.Role{domainuser.RoleGuest},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := unit.Users().Save(ctx, guest); err != nil {
		return nil, err
	}
	return guest, nil
}

func (h *ImportHandler) archive(ctx context.Context, source domainchannel.Source, cmd ImportCommand) {
	if h.Archiver == nil || len(cmd.RawPayload) == 0 {
		return
	}
	key := fmt.Sprintf("%s/%s.json", source, cmd.ExternalID)
	if _, err := h.Archiver.Archive(ctx, key, cmd.RawPayload); err != nil && h.Logger != nil {
		h.Logger.Warn("payload archive failed", "source", source, "external_id", cmd.ExternalID, "error", err)
	}
}

func (h *ImportHandler) commandID(cmd ImportCommand) string {
	if cmd.CommandID != "" {
		return cmd.CommandID
	}
	return uuid.NewString()
}

func (h *ImportHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *ImportHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ImportCommand, *ImportResult] = (*ImportHandler)(nil)
var _ middleware.IdempotentCommand = ImportCommand{}
