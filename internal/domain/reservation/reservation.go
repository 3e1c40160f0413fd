package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/channel"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrNotFound            = errors.New("reservation: not found")
	ErrInvalidTransition   = errors.New("reservation: invalid state transition")
	ErrInvalidGuests       = errors.New("reservation: guest count must be positive")
	ErrExternalIDRequired  = errors.New("reservation: external id required for channel bookings")
	ErrNotExternal         = errors.New("reservation: not an external channel booking")
	ErrDuplicateExternalID = errors.New("reservation: duplicate external booking id")
	ErrRefundExceedsCharge = errors.New("reservation: refund exceeds charged amount")
)

type ID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentCompleted         PaymentStatus = "COMPLETED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// statusEdges is the reservation lifecycle graph. COMPLETED, CANCELLED and
// NO_SHOW are terminal.
var statusEdges = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// paymentEdges is the monotonic payment graph: a COMPLETED payment can move
// to a refunded state but never back to PENDING.
var paymentEdges = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentCompleted, PaymentFailed},
	PaymentFailed:            {PaymentCompleted, PaymentFailed},
	PaymentCompleted:         {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentRefunded, PaymentPartiallyRefunded},
}

// Revenue holds the money split populated once a payment completes.
type Revenue struct {
	PlatformFee       money.Money
	OwnerRevenue      money.Money
	CommissionPercent float64
	Commission        money.Money
	NetRevenue        money.Money
}

// Reservation is the central aggregate: one stay on one property, with its
// lifecycle status and independently tracked payment status.
type Reservation struct {
	ID         ID
	PropertyID string
	GuestID    string
	Range      daterange.DateRange
	Guests     int

	Status        Status
	PaymentStatus PaymentStatus

	Price  pricing.Breakdown
	Policy pricing.CancellationPolicy

	Source           channel.Source
	ExternalID       string
	ExternalPlatform string
	RawPayload       []byte

	Revenue      Revenue
	LastSyncedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

// Repository is the sole source of truth for reservations. Implementations
// must enforce the (source, external_id) uniqueness constraint at the
// storage layer and use an optimistic version check on save.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Reservation, error)
	ByExternalID(ctx context.Context, source channel.Source, externalID string) (*Reservation, error)
	Save(ctx context.Context, r *Reservation) error
	Delete(ctx context.Context, id ID) error
	ListByGuest(ctx context.Context, guestID string) ([]*Reservation, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*Reservation, error)
	FindOverlapping(ctx context.Context, propertyID string, dr daterange.DateRange, statuses []Status) ([]*Reservation, error)
	RevenueBySource(ctx context.Context) (map[channel.Source]SourceRevenue, error)
}

// SourceRevenue aggregates revenue over active reservations of one source.
type SourceRevenue struct {
	BookingCount    int
	TotalRevenue    money.Money
	TotalCommission money.Money
	NetRevenue      money.Money
}

type CreateParams struct {
	ID         ID
	PropertyID string
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Price      pricing.Breakdown
	Policy     pricing.CancellationPolicy
	CreatedAt  time.Time
}

// NewPending creates a direct-channel reservation awaiting payment.
func NewPending(params CreateParams) (*Reservation, error) {
	r, err := newReservation(params)
	if err != nil {
		return nil, err
	}
	r.Source = channel.SourceDirect
	r.Record(Requested{ReservationID: r.ID, PropertyID: r.PropertyID, GuestID: r.GuestID, Range: r.Range, Total: r.Price.Total, At: r.CreatedAt})
	return r, nil
}

type ImportParams struct {
	CreateParams
	Source           channel.Source
	ExternalID       string
	ExternalPlatform string
	RawPayload       []byte
	Commission       pricing.CommissionSplit
	SyncedAt         time.Time
}

// NewImported creates a reservation already finalized on an external
// channel: it arrives CONFIRMED with the payment guaranteed by the channel.
func NewImported(params ImportParams) (*Reservation, error) {
	if !params.Source.IsExternal() {
		return nil, ErrNotExternal
	}
	if params.ExternalID == "" {
		return nil, ErrExternalIDRequired
	}
	r, err := newReservation(params.CreateParams)
	if err != nil {
		return nil, err
	}
	r.Status = StatusConfirmed
	r.PaymentStatus = PaymentCompleted
	r.Source = params.Source
	r.ExternalID = params.ExternalID
	r.ExternalPlatform = params.ExternalPlatform
	r.RawPayload = params.RawPayload
	r.Revenue.CommissionPercent = params.Commission.RatePercent
	r.Revenue.Commission = params.Commission.Commission
	r.Revenue.NetRevenue = params.Commission.NetRevenue
	r.LastSyncedAt = params.SyncedAt.UTC()
	r.Record(Imported{ReservationID: r.ID, PropertyID: r.PropertyID, Source: r.Source, ExternalID: r.ExternalID, Total: r.Price.Total, At: r.CreatedAt})
	return r, nil
}

func newReservation(params CreateParams) (*Reservation, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if params.GuestID == "" {
		return nil, errors.New("reservation: guest id required")
	}
	if params.PropertyID == "" {
		return nil, errors.New("reservation: property id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	return &Reservation{
		ID:            params.ID,
		PropertyID:    params.PropertyID,
		GuestID:       params.GuestID,
		Range:         params.Range,
		Guests:        params.Guests,
		Price:         params.Price,
		Policy:        params.Policy,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CompletePayment is the single point where money becomes real: the payment
// is marked COMPLETED, the revenue split is persisted and the reservation
// moves PENDING -> CONFIRMED. Callers guarantee at-least-once delivery; the
// transition graph guarantees the side effect fires at most once.
func (r *Reservation) CompletePayment(split pricing.RevenueSplit, now time.Time) error {
	if err := r.transitionPayment(PaymentCompleted); err != nil {
		return err
	}
	if err := r.transitionStatus(StatusConfirmed); err != nil {
		return err
	}
	r.Revenue.PlatformFee = split.PlatformFee
	r.Revenue.OwnerRevenue = split.OwnerRevenue
	r.touch(now)
	r.Record(Confirmed{ReservationID: r.ID, PropertyID: r.PropertyID, Range: r.Range, Total: r.Price.Total, At: r.UpdatedAt})
	return nil
}

// FailPayment records a gateway failure. The reservation itself stays
// PENDING and remains eligible for a retried checkout or expiry.
func (r *Reservation) FailPayment(now time.Time) error {
	if err := r.transitionPayment(PaymentFailed); err != nil {
		return err
	}
	r.touch(now)
	r.Record(PaymentFailureRecorded{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

// Cancel ends the reservation lifecycle from any non-terminal state.
func (r *Reservation) Cancel(reason string, now time.Time) error {
	if err := r.transitionStatus(StatusCancelled); err != nil {
		return err
	}
	r.touch(now)
	r.Record(Cancelled{ReservationID: r.ID, PropertyID: r.PropertyID, Range: r.Range, Reason: reason, At: r.UpdatedAt})
	return nil
}

// ApplyRefund moves the payment status to REFUNDED or PARTIALLY_REFUNDED. A
// full refund also cancels the reservation and frees its date range.
func (r *Reservation) ApplyRefund(amount money.Money, full bool, reason string, now time.Time) error {
	target := PaymentPartiallyRefunded
	if full {
		target = PaymentRefunded
	}
	if err := r.transitionPayment(target); err != nil {
		return err
	}
	cancelled := false
	if full && r.Status != StatusCancelled {
		if err := r.transitionStatus(StatusCancelled); err != nil {
			return err
		}
		cancelled = true
	}
	r.touch(now)
	r.Record(Refunded{ReservationID: r.ID, PropertyID: r.PropertyID, Amount: amount, Full: full, Reason: reason, At: r.UpdatedAt})
	if cancelled {
		r.Record(Cancelled{ReservationID: r.ID, PropertyID: r.PropertyID, Range: r.Range, Reason: reason, At: r.UpdatedAt})
	}
	return nil
}

func (r *Reservation) CheckInGuest(now time.Time) error {
	if err := r.transitionStatus(StatusCheckedIn); err != nil {
		return err
	}
	r.touch(now)
	r.Record(CheckedIn{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) CompleteStay(now time.Time) error {
	if err := r.transitionStatus(StatusCompleted); err != nil {
		return err
	}
	r.touch(now)
	r.Record(StayCompleted{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) MarkNoShow(now time.Time) error {
	if err := r.transitionStatus(StatusNoShow); err != nil {
		return err
	}
	r.touch(now)
	r.Record(NoShowRecorded{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

// SyncPatch is the set of fields an external channel may update.
type SyncPatch struct {
	Range          *daterange.DateRange
	Guests         *int
	Total          *money.Money
	CommissionRate *float64
	RawPayload     []byte
}

// ApplySync patches an external reservation from a channel update,
// recomputing the commission split when price or rate changed.
func (r *Reservation) ApplySync(patch SyncPatch, now time.Time) error {
	if !r.Source.IsExternal() {
		return ErrNotExternal
	}
	if patch.Range != nil {
		if err := patch.Range.Validate(); err != nil {
			return err
		}
		r.Range = *patch.Range
		r.Price.Nights = patch.Range.Nights()
	}
	if patch.Guests != nil {
		if *patch.Guests <= 0 {
			return ErrInvalidGuests
		}
		r.Guests = *patch.Guests
	}
	repriced := false
	if patch.Total != nil {
		r.Price.Total = *patch.Total
		repriced = true
	}
	rate := r.Revenue.CommissionPercent
	if patch.CommissionRate != nil {
		rate = *patch.CommissionRate
		repriced = true
	}
	if repriced {
		split, err := pricing.SplitCommission(r.Price.Total, r.Source, &rate)
		if err != nil {
			return err
		}
		r.Revenue.CommissionPercent = split.RatePercent
		r.Revenue.Commission = split.Commission
		r.Revenue.NetRevenue = split.NetRevenue
	}
	if patch.RawPayload != nil {
		r.RawPayload = patch.RawPayload
	}
	r.LastSyncedAt = now.UTC()
	r.touch(now)
	r.Record(Synced{ReservationID: r.ID, Source: r.Source, ExternalID: r.ExternalID, At: r.UpdatedAt})
	return nil
}

// HoldsDates reports whether the reservation currently occupies its range on
// the property calendar.
func (r *Reservation) HoldsDates() bool {
	return r.Status == StatusConfirmed || r.Status == StatusCheckedIn
}

func (r *Reservation) transitionStatus(target Status) error {
	for _, allowed := range statusEdges[r.Status] {
		if allowed == target {
			r.Status = target
			return nil
		}
	}
	return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, r.Status, target)
}

func (r *Reservation) transitionPayment(target PaymentStatus) error {
	for _, allowed := range paymentEdges[r.PaymentStatus] {
		if allowed == target {
			r.PaymentStatus = target
			return nil
		}
	}
	return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, r.PaymentStatus, target)
}

func (r *Reservation) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}
