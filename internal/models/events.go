package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name" validate:"required,max=200"`
	Description string               `bson:"description" json:"description" validate:"required"`
	Category    string               `bson:"category" json:"category" validate:"required"`
	Date        time.Time            `bson:"date" json:"date" validate:"required"`
	Venue       string               `bson:"venue" json:"venue" validate:"required"`
	Price       float64              `bson:"price" json:"price" validate:"gte=0"`
	Capacity    int                  `bson:"capacity" json:"capacity" validate:"required,gt=0"`
	Image       string               `bson:"image" json:"image" validate:"required"`
	Bookings    []primitive.ObjectID `bson:"bookings" json:"bookings"`
	// BookedTickets is the sum of ticket counts over Bookings.
	BookedTickets int       `bson:"booked_tickets" json:"bookedTickets"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

// EventInput carries the admin-editable fields of an Event. Updates replace all of them.
type EventInput struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Category    string    `json:"category" binding:"required"`
	Date        time.Time `json:"date" binding:"required"`
	Venue       string    `json:"venue" binding:"required"`
	Price       *float64  `json:"price" binding:"required"`
	Capacity    int       `json:"capacity" binding:"required"`
	Image       string    `json:"image" binding:"required"`
}

func (in EventInput) ToEvent() *Event {
	e := &Event{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date.UTC(),
		Venue:       in.Venue,
		Capacity:    in.Capacity,
		Image:       in.Image,
	}
	if in.Price != nil {
		e.Price = *in.Price
	}
	return e
}

func (e *Event) BeforeCreate() error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	e.Bookings = []primitive.ObjectID{}
	e.BookedTickets = 0
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (e *Event) SeatsLeft() int {
	if left := e.Capacity - e.BookedTickets; left > 0 {
		return left
	}
	return 0
}
