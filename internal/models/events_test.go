package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEventInputToEvent(t *testing.T) {
	price := 12.5
	in := EventInput{
		Name:        "Chale Wote",
		Description: "Street art festival",
		Category:    "art",
		Date:        time.Date(2026, 8, 20, 10, 0, 0, 0, time.FixedZone("GMT+1", 3600)),
		Venue:       "Jamestown",
		Price:       &price,
		Capacity:    300,
		Image:       "https://img.example.com/chale.png",
	}

	e := in.ToEvent()
	if e.Price != 12.5 {
		t.Errorf("price = %v, want 12.5", e.Price)
	}
	if e.Date.Location() != time.UTC || e.Date.Hour() != 9 {
		t.Errorf("date not normalized to UTC: %v", e.Date)
	}
	if err := Validate.Struct(e); err != nil {
		t.Fatalf("converted event should validate: %v", err)
	}

	in.Price = nil
	if got := in.ToEvent().Price; got != 0 {
		t.Errorf("nil price should convert to 0, got %v", got)
	}
}

func TestEventBeforeCreateResetsBookings(t *testing.T) {
	e := &Event{Capacity: 10, BookedTickets: 4}
	if err := e.BeforeCreate(); err != nil {
		t.Fatal(err)
	}
	if e.ID.IsZero() {
		t.Error("BeforeCreate should assign an id")
	}
	if e.BookedTickets != 0 || e.Bookings == nil || len(e.Bookings) != 0 {
		t.Errorf("booking state not reset: %+v", e)
	}
	if e.SeatsLeft() != 10 {
		t.Errorf("SeatsLeft = %d, want 10", e.SeatsLeft())
	}
}

func TestSeatsLeftNeverNegative(t *testing.T) {
	e := &Event{Capacity: 2, BookedTickets: 5}
	if got := e.SeatsLeft(); got != 0 {
		t.Errorf("SeatsLeft = %d, want 0", got)
	}
}

func TestBookingBeforeCreateDefaultsTicketCount(t *testing.T) {
	b := &Booking{TicketCount: -3, Event: &Event{}}
	if err := b.BeforeCreate(); err != nil {
		t.Fatal(err)
	}
	if b.TicketCount != DefaultTicketCount {
		t.Errorf("TicketCount = %d, want %d", b.TicketCount, DefaultTicketCount)
	}
	if b.Event != nil {
		t.Error("Event must not be persisted with the booking")
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestBookingBeforeCreateKeepsCreatedAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Booking{ID: primitive.NewObjectID(), TicketCount: 2, CreatedAt: created}
	id := b.ID
	if err := b.BeforeCreate(); err != nil {
		t.Fatal(err)
	}
	if b.ID != id {
		t.Error("BeforeCreate replaced an existing id")
	}
	if !b.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", b.CreatedAt, created)
	}
}
