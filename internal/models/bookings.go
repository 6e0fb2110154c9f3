package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultTicketCount = 1

type Booking struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     primitive.ObjectID `bson:"event_id" json:"eventId"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	TicketCount int                `bson:"ticket_count" json:"ticketCount"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	// Event is only set on reads that resolve the event reference.
	Event *Event `bson:"event,omitempty" json:"event,omitempty"`
}

func (b *Booking) BeforeCreate() error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if b.TicketCount <= 0 {
		b.TicketCount = DefaultTicketCount
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Event = nil
	return nil
}

// ReconcileReport summarizes a back-reference rebuild.
type ReconcileReport struct {
	Events   int `json:"events"`
	Users    int `json:"users"`
	Bookings int `json:"bookings"`
	// Removed counts bookings deleted because their event or user no longer exists.
	Removed int `json:"removed"`
	// Deferred counts documents left untouched because a booking on them was
	// still inside the grace window.
	Deferred int `json:"deferred"`
}
