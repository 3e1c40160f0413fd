package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpayment "staybook/internal/domain/payment"
	domainreservation "staybook/internal/domain/reservation"
	"staybook/internal/domain/shared/money"
)

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	col := db.Collection("agg_payment_attempt")
	session := mongo.IndexModel{
		Keys:    bson.D{{Key: "gateway_session_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"gateway_session_id": bson.M{"$gt": ""}}),
	}
	intent := mongo.IndexModel{Keys: bson.D{{Key: "gateway_intent_id", Value: 1}}}
	byRes := mongo.IndexModel{Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "created_at", Value: 1}}}
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{session, intent, byRes})
	return &PaymentRepository{col: col}
}

func (r *PaymentRepository) ByID(ctx context.Context, id string) (*domainpayment.Attempt, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *PaymentRepository) BySessionID(ctx context.Context, sessionID string) (*domainpayment.Attempt, error) {
	return r.findOne(ctx, bson.M{"gateway_session_id": sessionID})
}

func (r *PaymentRepository) ByIntentID(ctx context.Context, intentID string) (*domainpayment.Attempt, error) {
	if intentID == "" {
		return nil, domainpayment.ErrAttemptNotFound
	}
	return r.findOne(ctx, bson.M{"gateway_intent_id": intentID})
}

func (r *PaymentRepository) ByReservation(ctx context.Context, id domainreservation.ID) ([]*domainpayment.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"reservation_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainpayment.Attempt
	for cur.Next(ctx) {
		var doc attemptDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func (r *PaymentRepository) Save(ctx context.Context, a *domainpayment.Attempt) error {
	doc := newAttemptDocument(a)
	filter := bson.M{"_id": doc.ID, "version": a.Version}
	doc.Version = a.Version + 1
	out, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if out.MatchedCount == 0 && out.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	a.Version = doc.Version
	return nil
}

func (r *PaymentRepository) findOne(ctx context.Context, filter bson.M) (*domainpayment.Attempt, error) {
	var doc attemptDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainpayment.ErrAttemptNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type attemptDocument struct {
	ID            string `bson:"_id"`
	ReservationID string `bson:"reservation_id"`
	Currency      string `bson:"currency"`
	Amount        int64  `bson:"amount"`
	Status        string `bson:"status"`

	GatewaySessionID string `bson:"gateway_session_id,omitempty"`
	GatewayIntentID  string `bson:"gateway_intent_id,omitempty"`
	GatewayChargeID  string `bson:"gateway_charge_id,omitempty"`

	RefundAmount   int64  `bson:"refund_amount"`
	RefundCurrency string `bson:"refund_currency,omitempty"`
	RefundReason   string `bson:"refund_reason,omitempty"`

	ProcessedAt int64 `bson:"processed_at,omitempty"`
	CreatedAt   int64 `bson:"created_at"`
	UpdatedAt   int64 `bson:"updated_at"`
	Version     int64 `bson:"version"`
}

func newAttemptDocument(a *domainpayment.Attempt) attemptDocument {
	doc := attemptDocument{
		ID:               a.ID,
		ReservationID:    string(a.ReservationID),
		Currency:         a.Amount.Currency,
		Amount:           a.Amount.Amount,
		Status:           string(a.Status),
		GatewaySessionID: a.GatewaySessionID,
		GatewayIntentID:  a.GatewayIntentID,
		GatewayChargeID:  a.GatewayChargeID,
		RefundAmount:     a.RefundAmount.Amount,
		RefundCurrency:   a.RefundAmount.Currency,
		RefundReason:     a.RefundReason,
		CreatedAt:        a.CreatedAt.UnixMilli(),
		UpdatedAt:        a.UpdatedAt.UnixMilli(),
		Version:          a.Version,
	}
	if !a.ProcessedAt.IsZero() {
		doc.ProcessedAt = a.ProcessedAt.UnixMilli()
	}
	return doc
}

func (d attemptDocument) toAggregate() *domainpayment.Attempt {
	a := &domainpayment.Attempt{
		ID:               d.ID,
		ReservationID:    domainreservation.ID(d.ReservationID),
		Amount:           money.Money{Amount: d.Amount, Currency: d.Currency},
		Status:           domainpayment.AttemptStatus(d.Status),
		GatewaySessionID: d.GatewaySessionID,
		GatewayIntentID:  d.GatewayIntentID,
		GatewayChargeID:  d.GatewayChargeID,
		RefundAmount:     money.Money{Amount: d.RefundAmount, Currency: d.RefundCurrency},
		RefundReason:     d.RefundReason,
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		Version:          d.Version,
	}
	if d.ProcessedAt != 0 {
		a.ProcessedAt = timestampToTime(d.ProcessedAt)
	}
	return a
}
