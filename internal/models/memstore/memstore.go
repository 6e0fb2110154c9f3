// Package memstore is an in-memory implementation of the repository interfaces in
// models. It enforces the same uniqueness constraints as the MongoDB indexes and is
// used as a test double for services, handlers and routes.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/eventbook/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	events   map[primitive.ObjectID]*models.Event
	bookings map[primitive.ObjectID]*models.Booking
}

var (
	_ models.UserRepo    = (*Store)(nil)
	_ models.EventRepo   = (*Store)(nil)
	_ models.BookingRepo = (*Store)(nil)
	_ models.TxRunner    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    make(map[primitive.ObjectID]*models.User),
		events:   make(map[primitive.ObjectID]*models.Event),
		bookings: make(map[primitive.ObjectID]*models.Booking),
	}
}

func (s *Store) Transactional() bool { return false }

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.BeforeCreate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return models.ErrDuplicateUser
		}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.TrimSpace(email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	return users, nil
}

func (s *Store) AddUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userId]
	if !ok {
		return models.ErrNotFound
	}
	if !slices.Contains(u.Bookings, bookingId) {
		u.Bookings = append(u.Bookings, bookingId)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) RemoveUserBookingRef(ctx context.Context, userId, bookingId primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userId]
	if !ok {
		return false, models.ErrNotFound
	}
	if !slices.Contains(u.Bookings, bookingId) {
		return false, nil
	}
	u.Bookings = removeID(u.Bookings, bookingId)
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) SetUserBookingRefs(ctx context.Context, userId primitive.ObjectID, prev, next []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userId]
	if !ok {
		return models.ErrNotFound
	}
	if !slices.Equal(u.Bookings, prev) {
		return models.ErrStaleRefs
	}
	u.Bookings = append([]primitive.ObjectID{}, next...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// events

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := event.BeforeCreate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *Store) GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyEvent(e), nil
}

func (s *Store) ListEvents(ctx context.Context) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]*models.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, copyEvent(e))
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID.Hex() < events[j].ID.Hex()
		}
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}

func (s *Store) ReplaceEvent(ctx context.Context, id primitive.ObjectID, event *models.Event) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if e.BookedTickets > event.Capacity {
		return nil, models.ErrCapacityBelowBooked
	}
	e.Name = event.Name
	e.Description = event.Description
	e.Category = event.Category
	e.Date = event.Date
	e.Venue = event.Venue
	e.Price = event.Price
	e.Capacity = event.Capacity
	e.Image = event.Image
	e.UpdatedAt = time.Now().UTC()
	return copyEvent(e), nil
}

func (s *Store) DeleteEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(s.events, id)
	return e, nil
}

func (s *Store) ReserveSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventId]
	if !ok {
		return models.ErrNotFound
	}
	if tickets > e.Capacity-e.BookedTickets {
		return models.ErrSoldOut
	}
	e.Bookings = append(e.Bookings, bookingId)
	e.BookedTickets += tickets
	return nil
}

func (s *Store) ReleaseSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventId]
	if !ok {
		return false, models.ErrNotFound
	}
	if !slices.Contains(e.Bookings, bookingId) {
		return false, nil
	}
	e.Bookings = removeID(e.Bookings, bookingId)
	e.BookedTickets -= tickets
	return true, nil
}

func (s *Store) SetEventBookingRefs(ctx context.Context, eventId primitive.ObjectID, prev, next models.BookingRefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventId]
	if !ok {
		return models.ErrNotFound
	}
	if !slices.Equal(e.Bookings, prev.IDs) || e.BookedTickets != prev.Tickets {
		return models.ErrStaleRefs
	}
	e.Bookings = append([]primitive.ObjectID{}, next.IDs...)
	e.BookedTickets = next.Tickets
	return nil
}

// bookings

func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.BeforeCreate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == booking.UserID && b.EventID == booking.EventID {
			return models.ErrDuplicateBooking
		}
	}
	s.bookings[booking.ID] = copyBooking(booking)
	return nil
}

func (s *Store) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *Store) FindBooking(ctx context.Context, userId, eventId primitive.ObjectID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userId && b.EventID == eventId {
			return copyBooking(b), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListBookingsByUser(ctx context.Context, userId primitive.ObjectID) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bookings := s.filterBookings(func(b *models.Booking) bool { return b.UserID == userId })
	for _, b := range bookings {
		if e, ok := s.events[b.EventID]; ok {
			b.Event = copyEvent(e)
		}
	}
	// newest first
	slices.Reverse(bookings)
	return bookings, nil
}

func (s *Store) ListBookingsByEvent(ctx context.Context, eventId primitive.ObjectID) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBookings(func(b *models.Booking) bool { return b.EventID == eventId }), nil
}

func (s *Store) ListAllBookings(ctx context.Context) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBookings(func(*models.Booking) bool { return true }), nil
}

func (s *Store) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

// filterBookings returns matching copies ordered oldest first. Callers hold s.mu.
func (s *Store) filterBookings(keep func(*models.Booking) bool) []*models.Booking {
	out := []*models.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, copyBooking(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	return slices.DeleteFunc(slices.Clone(ids), func(x primitive.ObjectID) bool { return x == id })
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Bookings = append([]primitive.ObjectID{}, u.Bookings...)
	return &c
}

func copyEvent(e *models.Event) *models.Event {
	c := *e
	c.Bookings = append([]primitive.ObjectID{}, e.Bookings...)
	return &c
}

func copyBooking(b *models.Booking) *models.Booking {
	c := *b
	c.Event = nil
	return &c
}
