package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincalendar "staybook/internal/domain/calendar"
	domainrange "staybook/internal/domain/shared/daterange"
)

// CalendarRepository persists per-property calendars. The version filter on
// save is the mutual exclusion point for concurrent date claims: the loser
// of a race gets ErrConcurrentUpdate and retries against fresh state.
type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	return &CalendarRepository{col: db.Collection("agg_calendar")}
}

func (r *CalendarRepository) ByProperty(ctx context.Context, propertyID string) (*domaincalendar.Calendar, error) {
	var doc calendarDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": propertyID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return domaincalendar.New(propertyID), nil
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CalendarRepository) Save(ctx context.Context, cal *domaincalendar.Calendar) error {
	doc := newCalendarDocument(cal)
	filter := bson.M{"_id": doc.ID, "version": cal.Version}
	doc.Version = cal.Version + 1
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
	cal.Version = doc.Version
	return nil
}

type calendarDocument struct {
	ID      string          `bson:"_id"`
	Blocks  []blockDocument `bson:"blocks"`
	Version int64           `bson:"version"`
}

type blockDocument struct {
	Range         rangeDocument `bson:"range"`
	ReservationID string        `bson:"reservation_id"`
	CreatedAt     int64         `bson:"created_at"`
}

func newCalendarDocument(cal *domaincalendar.Calendar) calendarDocument {
	blocks := make([]blockDocument, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		blocks = append(blocks, blockDocument{
			Range:         rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
			ReservationID: b.ReservationID,
			CreatedAt:     b.CreatedAt.UnixMilli(),
		})
	}
	return calendarDocument{ID: cal.PropertyID, Blocks: blocks, Version: cal.Version}
}

func (d calendarDocument) toAggregate() *domaincalendar.Calendar {
	cal := domaincalendar.New(d.ID)
	cal.Version = d.Version
	for _, b := range d.Blocks {
		cal.Blocks = append(cal.Blocks, domaincalendar.Block{
			Range:         domainrange.DateRange{CheckIn: timestampToTime(b.Range.CheckIn), CheckOut: timestampToTime(b.Range.CheckOut)},
			ReservationID: b.ReservationID,
			CreatedAt:     timestampToTime(b.CreatedAt),
		})
	}
	return cal
}
