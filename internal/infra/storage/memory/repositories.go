package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	domaincalendar "staybook/internal/domain/calendar"
	domainchannel "staybook/internal/domain/channel"
	domainpayment "staybook/internal/domain/payment"
	domainproperty "staybook/internal/domain/property"
	domainreservation "staybook/internal/domain/reservation"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

// ErrVersionConflict is returned when a save loses an optimistic version race.
var ErrVersionConflict = errors.New("memory: version conflict")

// ReservationRepository is an in-memory implementation backing tests and the
// dev storage mode. It enforces the same invariants as the mongo repository:
// version checked saves and (source, external_id) uniqueness.
type ReservationRepository struct {
	mu       sync.RWMutex
	items    map[domainreservation.ID]*domainreservation.Reservation
	external map[string]domainreservation.ID
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{
		items:    make(map[domainreservation.ID]*domainreservation.Reservation),
		external: make(map[string]domainreservation.ID),
	}
}

func externalKey(source domainchannel.Source, externalID string) string {
	return string(source) + ":" + externalID
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return cloneReservation(res), nil
}

func (r *ReservationRepository) ByExternalID(ctx context.Context, source domainchannel.Source, externalID string) (*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.external[externalKey(source, externalID)]
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return cloneReservation(r.items[id]), nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[res.ID]; ok {
		if existing.Version != res.Version {
			return ErrVersionConflict
		}
	} else if res.ExternalID != "" {
		key := externalKey(res.Source, res.ExternalID)
		if existingID, dup := r.external[key]; dup {
			return &domainreservation.DuplicateImportError{Source: res.Source, ExternalID: res.ExternalID, ExistingID: existingID}
		}
		r.external[key] = res.ID
	}
	res.Version++
	r.items[res.ID] = cloneReservation(res)
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, id domainreservation.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.items[id]
	if !ok {
		return domainreservation.ErrNotFound
	}
	if res.ExternalID != "" {
		delete(r.external, externalKey(res.Source, res.ExternalID))
	}
	delete(r.items, id)
	return nil
}

func (r *ReservationRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		return res.GuestID == strings.TrimSpace(guestID)
	})
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, propertyID string) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		return res.PropertyID == strings.TrimSpace(propertyID)
	})
}

func (r *ReservationRepository) FindOverlapping(ctx context.Context, propertyID string, dr daterange.DateRange, statuses []domainreservation.Status) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		if res.PropertyID != propertyID || !res.Range.Overlaps(dr) {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if res.Status == s {
				return true
			}
		}
		return false
	})
}

func (r *ReservationRepository) RevenueBySource(ctx context.Context) (map[domainchannel.Source]domainreservation.SourceRevenue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domainchannel.Source]domainreservation.SourceRevenue)
	for _, res := range r.items {
		if !countsTowardRevenue(res) {
			continue
		}
		rev := out[res.Source]
		currency := res.Price.Total.Currency
		rev.BookingCount++
		rev.TotalRevenue = addCents(rev.TotalRevenue, res.Price.Total.Amount, currency)
		rev.TotalCommission = addCents(rev.TotalCommission, res.Revenue.Commission.Amount, currency)
		net := res.Price.Total.Amount - res.Revenue.Commission.Amount - res.Revenue.PlatformFee.Amount
		rev.NetRevenue = addCents(rev.NetRevenue, net, currency)
		out[res.Source] = rev
	}
	return out, nil
}

func countsTowardRevenue(res *domainreservation.Reservation) bool {
	switch res.Status {
	case domainreservation.StatusConfirmed, domainreservation.StatusCheckedIn, domainreservation.StatusCompleted:
		return true
	}
	return false
}

func addCents(m money.Money, amount int64, currency string) money.Money {
	if m.Currency == "" {
		m.Currency = currency
	}
	m.Amount += amount
	return m
}

func (r *ReservationRepository) list(match func(*domainreservation.Reservation) bool) ([]*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainreservation.Reservation, 0)
	for _, res := range r.items {
		if match(res) {
			matches = append(matches, cloneReservation(res))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func cloneReservation(res *domainreservation.Reservation) *domainreservation.Reservation {
	cp := *res
	cp.EventRecorder = events.EventRecorder{}
	if res.RawPayload != nil {
		cp.RawPayload = append([]byte(nil), res.RawPayload...)
	}
	return &cp
}

// PaymentRepository stores payment attempts in memory.
type PaymentRepository struct {
	mu    sync.RWMutex
	items map[string]*domainpayment.Attempt
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{items: make(map[string]*domainpayment.Attempt)}
}

func (r *PaymentRepository) ByID(ctx context.Context, id string) (*domainpayment.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, domainpayment.ErrAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *PaymentRepository) BySessionID(ctx context.Context, sessionID string) (*domainpayment.Attempt, error) {
	return r.find(func(a *domainpayment.Attempt) bool { return a.GatewaySessionID == sessionID })
}

func (r *PaymentRepository) ByIntentID(ctx context.Context, intentID string) (*domainpayment.Attempt, error) {
	return r.find(func(a *domainpayment.Attempt) bool { return intentID != "" && a.GatewayIntentID == intentID })
}

func (r *PaymentRepository) ByReservation(ctx context.Context, id domainreservation.ID) ([]*domainpayment.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainpayment.Attempt, 0)
	for _, a := range r.items {
		if a.ReservationID == id {
			cp := *a
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

func (r *PaymentRepository) Save(ctx context.Context, a *domainpayment.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[a.ID]; ok && existing.Version != a.Version {
		return ErrVersionConflict
	}
	a.Version++
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *PaymentRepository) find(match func(*domainpayment.Attempt) bool) (*domainpayment.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domainpayment.ErrAttemptNotFound
}

// CalendarRepository keeps per-property calendars, lazily created. The
// version check on save is what makes concurrent claims mutually exclusive.
type CalendarRepository struct {
	mu    sync.RWMutex
	items map[string]*domaincalendar.Calendar
}

func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{items: make(map[string]*domaincalendar.Calendar)}
}

func (r *CalendarRepository) ByProperty(ctx context.Context, propertyID string) (*domaincalendar.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cal, ok := r.items[propertyID]; ok {
		return cloneCalendar(cal), nil
	}
	cal := domaincalendar.New(propertyID)
	r.items[propertyID] = cal
	return cloneCalendar(cal), nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[cal.PropertyID]; ok && existing.Version != cal.Version {
		return ErrVersionConflict
	}
	cal.Version++
	r.items[cal.PropertyID] = cloneCalendar(cal)
	return nil
}

func cloneCalendar(cal *domaincalendar.Calendar) *domaincalendar.Calendar {
	cp := *cal
	cp.EventRecorder = events.EventRecorder{}
	cp.Blocks = append([]domaincalendar.Block(nil), cal.Blocks...)
	return &cp
}

// PropertyRepository stores properties in memory.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[string]*domainproperty.Property
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[string]*domainproperty.Property)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id string) (*domainproperty.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperty.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.items[p.ID] = &cp
	return nil
}
