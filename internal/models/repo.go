package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

const (
	DefaultDbName     = "eventbook"
	UsersColName      = "users"
	EventsColName     = "events"
	BookingsColName   = "bookings"
	bookingUniqueName = "user_event_unique"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateUser    = errors.New("username or email already registered")
	ErrDuplicateBooking = errors.New("booking already exists for user and event")
	ErrSoldOut          = errors.New("not enough seats left")
	// ErrCapacityBelowBooked is returned by ReplaceEvent when the new capacity is
	// lower than the tickets booked at the time of the write.
	ErrCapacityBelowBooked = errors.New("capacity below booked tickets")
	// ErrStaleRefs is returned by the Set*BookingRefs methods when the document no
	// longer holds the references the caller read.
	ErrStaleRefs = errors.New("booking references changed concurrently")
)

// MaxTicketCount bounds a single booking.
const MaxTicketCount = 100

// BookingRefs is an event's booking reference list together with its booked ticket total.
type BookingRefs struct {
	IDs     []primitive.ObjectID
	Tickets int
}

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	AddUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) error
	// RemoveUserBookingRef reports whether the reference was present.
	RemoveUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) (bool, error)
	// SetUserBookingRefs replaces prev with next, or fails with ErrStaleRefs.
	SetUserBookingRefs(ctx context.Context, userId primitive.ObjectID, prev, next []primitive.ObjectID) error
}

type EventRepo interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*Event, error)
	ListEvents(ctx context.Context) ([]*Event, error)
	// ReplaceEvent fails with ErrCapacityBelowBooked when event.Capacity is lower
	// than the stored booked ticket count.
	ReplaceEvent(ctx context.Context, id primitive.ObjectID, event *Event) (*Event, error)
	DeleteEvent(ctx context.Context, id primitive.ObjectID) (*Event, error)
	// ReserveSeats appends bookingId and adds tickets to the booked count in one
	// atomic update, failing with ErrSoldOut when capacity would be exceeded.
	ReserveSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) error
	// ReleaseSeats reports whether bookingId was referenced; a second release is a no-op.
	ReleaseSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) (bool, error)
	// SetEventBookingRefs replaces prev with next, or fails with ErrStaleRefs.
	SetEventBookingRefs(ctx context.Context, eventId primitive.ObjectID, prev, next BookingRefs) error
}

type BookingRepo interface {
	CreateBooking(ctx context.Context, booking *Booking) error
	GetBookingByID(ctx context.Context, id primitive.ObjectID) (*Booking, error)
	FindBooking(ctx context.Context, userId, eventId primitive.ObjectID) (*Booking, error)
	// ListBookingsByUser returns the user's bookings newest first with Event resolved.
	ListBookingsByUser(ctx context.Context, userId primitive.ObjectID) ([]*Booking, error)
	ListBookingsByEvent(ctx context.Context, eventId primitive.ObjectID) ([]*Booking, error)
	ListAllBookings(ctx context.Context) ([]*Booking, error)
	DeleteBooking(ctx context.Context, id primitive.ObjectID) error
}

// TxRunner runs fn atomically when the backing store supports multi-document
// transactions. Transactional reports whether it does.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
	transactions  bool
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string, transactions bool) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultDbName
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
		transactions:  transactions,
	}
}

func (mdb *MongodbRepo) GetCollection(colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}
