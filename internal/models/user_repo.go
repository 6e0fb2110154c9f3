package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (mdb *MongodbRepo) CreateUser(ctx context.Context, user *User) error {
	if err := user.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare user for creation: %w", err)
	}
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return mdb.findUser(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return mdb.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (mdb *MongodbRepo) findUser(ctx context.Context, filter bson.M) (*User, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, err
	}
	var user User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

func (mdb *MongodbRepo) ListUsers(ctx context.Context) ([]*User, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error finding users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}

func (mdb *MongodbRepo) AddUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) error {
	return mdb.updateUser(ctx, userId, bson.M{
		"$addToSet": bson.M{"bookings": bookingId},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

func (mdb *MongodbRepo) RemoveUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) (bool, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return false, err
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": userId, "bookings": bookingId},
		bson.M{
			"$pull": bson.M{"bookings": bookingId},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	if err := mdb.userExists(ctx, col, userId); err != nil {
		return false, err
	}
	return false, nil
}

func (mdb *MongodbRepo) SetUserBookingRefs(ctx context.Context, userId primitive.ObjectID, prev, next []primitive.ObjectID) error {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return err
	}
	if next == nil {
		next = []primitive.ObjectID{}
	}
	res, err := col.UpdateOne(ctx,
		bson.M{"_id": userId, "bookings": refsMatch(prev)},
		bson.M{"$set": bson.M{"bookings": next, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if err := mdb.userExists(ctx, col, userId); err != nil {
		return err
	}
	return ErrStaleRefs
}

func (mdb *MongodbRepo) userExists(ctx context.Context, col *mongo.Collection, userId primitive.ObjectID) error {
	count, err := col.CountDocuments(ctx, bson.M{"_id": userId})
	if err != nil {
		return fmt.Errorf("error checking user: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (mdb *MongodbRepo) updateUser(ctx context.Context, userId primitive.ObjectID, update bson.M) error {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return err
	}
	res, err := col.UpdateOne(ctx, bson.M{"_id": userId}, update)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
