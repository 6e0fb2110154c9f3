package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) CreateEvent(ctx context.Context, event *Event) error {
	if err := event.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare event for creation: %w", err)
	}
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetEventByID(ctx context.Context, id primitive.ObjectID) (*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, err
	}
	var event Event
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding event: %w", err)
	}
	return &event, nil
}

func (mdb *MongodbRepo) ListEvents(ctx context.Context) ([]*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding events: %w", err)
	}
	return events, nil
}

func (mdb *MongodbRepo) ReplaceEvent(ctx context.Context, id primitive.ObjectID, event *Event) (*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, err
	}
	update := bson.M{
		"$set": bson.M{
			"name":        event.Name,
			"description": event.Description,
			"category":    event.Category,
			"date":        event.Date,
			"venue":       event.Venue,
			"price":       event.Price,
			"capacity":    event.Capacity,
			"image":       event.Image,
			"updated_at":  time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	// The capacity floor is checked against the stored count in the same write.
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$ifNull": bson.A{"$booked_tickets", 0}},
			event.Capacity,
		}},
	}

	var updated Event
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error updating event: %w", err)
		}
		count, err := col.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, fmt.Errorf("error checking event: %w", err)
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrCapacityBelowBooked
	}
	return &updated, nil
}

func (mdb *MongodbRepo) DeleteEvent(ctx context.Context, id primitive.ObjectID) (*Event, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, err
	}
	var deleted Event
	if err := col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error deleting event: %w", err)
	}
	return &deleted, nil
}

func (mdb *MongodbRepo) ReserveSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) error {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return err
	}
	filter := bson.M{
		"_id": eventId,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$booked_tickets", 0}}, tickets}},
			"$capacity",
		}},
	}
	update := bson.M{
		"$push": bson.M{"bookings": bookingId},
		"$inc":  bson.M{"booked_tickets": tickets},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error reserving seats: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the event is gone or it has no room left.
	count, err := col.CountDocuments(ctx, bson.M{"_id": eventId})
	if err != nil {
		return fmt.Errorf("error checking event: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrSoldOut
}

func (mdb *MongodbRepo) ReleaseSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) (bool, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return false, err
	}
	// Only decrement when the reference is still present so a repeated release is a no-op.
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": eventId, "bookings": bookingId},
		bson.M{
			"$pull": bson.M{"bookings": bookingId},
			"$inc":  bson.M{"booked_tickets": -tickets},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("error releasing seats: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	count, err := col.CountDocuments(ctx, bson.M{"_id": eventId})
	if err != nil {
		return false, fmt.Errorf("error checking event: %w", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (mdb *MongodbRepo) SetEventBookingRefs(ctx context.Context, eventId primitive.ObjectID, prev, next BookingRefs) error {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return err
	}
	ids := next.IDs
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	filter := bson.M{
		"_id":            eventId,
		"bookings":       refsMatch(prev.IDs),
		"booked_tickets": ticketsMatch(prev.Tickets),
	}
	res, err := col.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"bookings":       ids,
			"booked_tickets": next.Tickets,
			"updated_at":     time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("error setting event bookings: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	count, err := col.CountDocuments(ctx, bson.M{"_id": eventId})
	if err != nil {
		return fmt.Errorf("error checking event: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleRefs
}

// refsMatch matches a stored reference array equal to ids, treating a missing
// field like an empty one.
func refsMatch(ids []primitive.ObjectID) interface{} {
	if len(ids) == 0 {
		return bson.M{"$in": bson.A{nil, bson.A{}}}
	}
	return ids
}

func ticketsMatch(n int) interface{} {
	if n == 0 {
		return bson.M{"$in": bson.A{nil, 0}}
	}
	return n
}
