package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchannel "staybook/internal/domain/channel"
	domainpricing "staybook/internal/domain/pricing"
	domainreservation "staybook/internal/domain/reservation"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	col := db.Collection("agg_reservation")
	// The partial unique index is the storage-level backstop for duplicate
	// channel imports; documents without external_id are exempt.
	external := mongo.IndexModel{
		Keys: bson.D{{Key: "source", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"external_id": bson.M{"$gt": ""}}),
	}
	overlap := mongo.IndexModel{
		Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "range.check_in", Value: 1}},
	}
	guest := mongo.IndexModel{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}}
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{external, overlap, guest})
	return &ReservationRepository{col: col}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ReservationRepository) ByExternalID(ctx context.Context, source domainchannel.Source, externalID string) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	filter := bson.M{"source": string(source), "external_id": externalID}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	out, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if res.ExternalID != "" && res.Version == 0 {
				return r.duplicateExternalID(ctx, res)
			}
			return ErrConcurrentUpdate
		}
		return err
	}
	if out.MatchedCount == 0 && out.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	res.Version = doc.Version
	return nil
}

// duplicateExternalID looks up the reservation that won the unique-index
// race so the conflict error carries its id. Falls back to the bare
// sentinel when the winner cannot be read back.
func (r *ReservationRepository) duplicateExternalID(ctx context.Context, res *domainreservation.Reservation) error {
	existing, err := r.ByExternalID(ctx, res.Source, res.ExternalID)
	if err != nil {
		return domainreservation.ErrDuplicateExternalID
	}
	return &domainreservation.DuplicateImportError{Source: res.Source, ExternalID: res.ExternalID, ExistingID: existing.ID}
}

func (r *ReservationRepository) Delete(ctx context.Context, id domainreservation.ID) error {
	out, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if out.DeletedCount == 0 {
		return domainreservation.ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{"guest_id": guestID})
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, propertyID string) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{"property_id": propertyID})
}

func (r *ReservationRepository) FindOverlapping(ctx context.Context, propertyID string, dr domainrange.DateRange, statuses []domainreservation.Status) ([]*domainreservation.Reservation, error) {
	filter := bson.M{
		"property_id":     propertyID,
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		filter["status"] = bson.M{"$in": values}
	}
	return r.find(ctx, filter)
}

func (r *ReservationRepository) RevenueBySource(ctx context.Context) (map[domainchannel.Source]domainreservation.SourceRevenue, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$in": []string{
			string(domainreservation.StatusConfirmed),
			string(domainreservation.StatusCheckedIn),
			string(domainreservation.StatusCompleted),
		}}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$source",
			"count":      bson.M{"$sum": 1},
			"total":      bson.M{"$sum": "$price.total"},
			"commission": bson.M{"$sum": "$revenue.commission"},
			"net": bson.M{"$sum": bson.M{"$subtract": bson.A{
				"$price.total",
				bson.M{"$add": bson.A{"$revenue.commission", "$revenue.platform_fee"}},
			}}},
			"currency": bson.M{"$first": "$currency"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[domainchannel.Source]domainreservation.SourceRevenue)
	for cur.Next(ctx) {
		var row struct {
			Source     string `bson:"_id"`
			Count      int    `bson:"count"`
			Total      int64  `bson:"total"`
			Commission int64  `bson:"commission"`
			Net        int64  `bson:"net"`
			Currency   string `bson:"currency"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[domainchannel.Source(row.Source)] = domainreservation.SourceRevenue{
			BookingCount:    row.Count,
			TotalRevenue:    money.Money{Amount: row.Total, Currency: row.Currency},
			TotalCommission: money.Money{Amount: row.Commission, Currency: row.Currency},
			NetRevenue:      money.Money{Amount: row.Net, Currency: row.Currency},
		}
	}
	return out, cur.Err()
}

func (r *ReservationRepository) find(ctx context.Context, filter bson.M) ([]*domainreservation.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainreservation.Reservation
	for cur.Next(ctx) {
		var doc reservationDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type reservationDocument struct {
	ID         string        `bson:"_id"`
	PropertyID string        `bson:"property_id"`
	GuestID    string        `bson:"guest_id"`
	Range      rangeDocument `bson:"range"`
	Guests     int           `bson:"guests"`

	Status        string `bson:"status"`
	PaymentStatus string `bson:"payment_status"`

	Currency string        `bson:"currency"`
	Price    priceDocument `bson:"price"`
	Policy   string        `bson:"policy"`

	Source           string `bson:"source"`
	ExternalID       string `bson:"external_id,omitempty"`
	ExternalPlatform string `bson:"external_platform,omitempty"`
	RawPayload       []byte `bson:"raw_payload,omitempty"`

	Revenue      revenueDocument `bson:"revenue"`
	LastSyncedAt int64           `bson:"last_synced_at,omitempty"`

	CreatedAt int64 `bson:"created_at"`
	UpdatedAt int64 `bson:"updated_at"`
	Version   int64 `bson:"version"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type priceDocument struct {
	Nights      int   `bson:"nights"`
	NightlyRate int64 `bson:"nightly_rate"`
	Subtotal    int64 `bson:"subtotal"`
	CleaningFee int64 `bson:"cleaning_fee"`
	ServiceFee  int64 `bson:"service_fee"`
	Taxes       int64 `bson:"taxes"`
	Discount    int64 `bson:"discount"`
	Total       int64 `bson:"total"`
}

type revenueDocument struct {
	PlatformFee       int64   `bson:"platform_fee"`
	OwnerRevenue      int64   `bson:"owner_revenue"`
	CommissionPercent float64 `bson:"commission_percent"`
	Commission        int64   `bson:"commission"`
	NetRevenue        int64   `bson:"net_revenue"`
}

func newReservationDocument(res *domainreservation.Reservation) reservationDocument {
	doc := reservationDocument{
		ID:         string(res.ID),
		PropertyID: res.PropertyID,
		GuestID:    res.GuestID,
		Range: rangeDocument{
			CheckIn:  res.Range.CheckIn.UnixMilli(),
			CheckOut: res.Range.CheckOut.UnixMilli(),
		},
		Guests:        res.Guests,
		Status:        string(res.Status),
		PaymentStatus: string(res.PaymentStatus),
		Currency:      res.Price.Total.Currency,
		Price: priceDocument{
			Nights:      res.Price.Nights,
			NightlyRate: res.Price.NightlyRate.Amount,
			Subtotal:    res.Price.Subtotal.Amount,
			CleaningFee: res.Price.CleaningFee.Amount,
			ServiceFee:  res.Price.ServiceFee.Amount,
			Taxes:       res.Price.Taxes.Amount,
			Discount:    res.Price.Discount.Amount,
			Total:       res.Price.Total.Amount,
		},
		Policy:           string(res.Policy),
		Source:           string(res.Source),
		ExternalID:       res.ExternalID,
		ExternalPlatform: res.ExternalPlatform,
		RawPayload:       res.RawPayload,
		Revenue: revenueDocument{
			PlatformFee:       res.Revenue.PlatformFee.Amount,
			OwnerRevenue:      res.Revenue.OwnerRevenue.Amount,
			CommissionPercent: res.Revenue.CommissionPercent,
			Commission:        res.Revenue.Commission.Amount,
			NetRevenue:        res.Revenue.NetRevenue.Amount,
		},
		CreatedAt: res.CreatedAt.UnixMilli(),
		UpdatedAt: res.UpdatedAt.UnixMilli(),
		Version:   res.Version,
	}
	if !res.LastSyncedAt.IsZero() {
		doc.LastSyncedAt = res.LastSyncedAt.UnixMilli()
	}
	return doc
}

func (d reservationDocument) toAggregate() *domainreservation.Reservation {
	cents := func(amount int64) money.Money {
		return money.Money{Amount: amount, Currency: d.Currency}
	}
	res := &domainreservation.Reservation{
		ID:         domainreservation.ID(d.ID),
		PropertyID: d.PropertyID,
		GuestID:    d.GuestID,
		Range: domainrange.DateRange{
			CheckIn:  timestampToTime(d.Range.CheckIn),
			CheckOut: timestampToTime(d.Range.CheckOut),
		},
		Guests:        d.Guests,
		Status:        domainreservation.Status(d.Status),
		PaymentStatus: domainreservation.PaymentStatus(d.PaymentStatus),
		Price: domainpricing.Breakdown{
			Nights:      d.Price.Nights,
			NightlyRate: cents(d.Price.NightlyRate),
			Subtotal:    cents(d.Price.Subtotal),
			CleaningFee: cents(d.Price.CleaningFee),
			ServiceFee:  cents(d.Price.ServiceFee),
			Taxes:       cents(d.Price.Taxes),
			Discount:    cents(d.Price.Discount),
			Total:       cents(d.Price.Total),
		},
		Policy:           domainpricing.CancellationPolicy(d.Policy),
		Source:           domainchannel.Source(d.Source),
		ExternalID:       d.ExternalID,
		ExternalPlatform: d.ExternalPlatform,
		RawPayload:       d.RawPayload,
		Revenue: domainreservation.Revenue{
			PlatformFee:       cents(d.Revenue.PlatformFee),
			OwnerRevenue:      cents(d.Revenue.OwnerRevenue),
			CommissionPercent: d.Revenue.CommissionPercent,
			Commission:        cents(d.Revenue.Commission),
			NetRevenue:        cents(d.Revenue.NetRevenue),
		},
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
		Version:   d.Version,
	}
	if d.LastSyncedAt != 0 {
		res.LastSyncedAt = timestampToTime(d.LastSyncedAt)
	}
	return res
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
