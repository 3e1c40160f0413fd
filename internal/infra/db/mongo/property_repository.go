package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpricing "staybook/internal/domain/pricing"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection("agg_property")}
}

func (r *PropertyRepository) ByID(ctx context.Context, id string) (*domainproperty.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainproperty.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperty.Property) error {
	doc := newPropertyDocument(p)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type propertyDocument struct {
	ID      string `bson:"_id"`
	OwnerID string `bson:"owner_id"`
	Name    string `bson:"name"`

	Currency           string  `bson:"currency"`
	NightlyRate        int64   `bson:"nightly_rate"`
	CleaningFee        int64   `bson:"cleaning_fee"`
	ServiceFeePercent  float64 `bson:"service_fee_percent"`
	TaxRatePercent     float64 `bson:"tax_rate_percent"`
	PlatformFeePercent float64 `bson:"platform_fee_percent"`

	MaxGuests          int    `bson:"max_guests"`
	CancellationPolicy string `bson:"cancellation_policy"`
}

func newPropertyDocument(p *domainproperty.Property) propertyDocument {
	return propertyDocument{
		ID:                 p.ID,
		OwnerID:            p.OwnerID,
		Name:               p.Name,
		Currency:           p.NightlyRate.Currency,
		NightlyRate:        p.NightlyRate.Amount,
		CleaningFee:        p.CleaningFee.Amount,
		ServiceFeePercent:  p.ServiceFeePercent,
		TaxRatePercent:     p.TaxRatePercent,
		PlatformFeePercent: p.PlatformFeePercent,
		MaxGuests:          p.MaxGuests,
		CancellationPolicy: string(p.CancellationPolicy),
	}
}

func (d propertyDocument) toAggregate() *domainproperty.Property {
	return &domainproperty.Property{
		ID:                 d.ID,
		OwnerID:            d.OwnerID,
		Name:               d.Name,
		NightlyRate:        money.Money{Amount: d.NightlyRate, Currency: d.Currency},
		CleaningFee:        money.Money{Amount: d.CleaningFee, Currency: d.Currency},
		ServiceFeePercent:  d.ServiceFeePercent,
		TaxRatePercent:     d.TaxRatePercent,
		PlatformFeePercent: d.PlatformFeePercent,
		MaxGuests:          d.MaxGuests,
		CancellationPolicy: domainpricing.CancellationPolicy(d.CancellationPolicy),
	}
}
