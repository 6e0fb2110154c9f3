package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/models/memstore"
	"github.com/joshua-takyi/eventbook/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errStoreDown = errors.New("store unavailable")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps every published message.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.BookingMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg notify.BookingMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Type)
	}
	return out
}

type recordingCatalog struct {
	mu  sync.Mutex
	ids []primitive.ObjectID
}

func (r *recordingCatalog) Invalidate(_ context.Context, ids ...primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

// brokenUserRefs fails every attempt to attach a booking to a user.
type brokenUserRefs struct {
	*memstore.Store
}

func (b brokenUserRefs) AddUserBookingRef(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return errStoreDown
}

// brokenBookingDelete fails every booking deletion.
type brokenBookingDelete struct {
	*memstore.Store
}

func (b brokenBookingDelete) DeleteBooking(context.Context, primitive.ObjectID) error {
	return errStoreDown
}

// brokenUserDetach fails to detach bookings from users, the last cancel step.
type brokenUserDetach struct {
	*memstore.Store
}

func (b brokenUserDetach) RemoveUserBookingRef(context.Context, primitive.ObjectID, primitive.ObjectID) (bool, error) {
	return false, errStoreDown
}

// beforeFirst runs hook once, ahead of the first call it guards.
type beforeFirst struct {
	once sync.Once
	hook func()
}

func (b *beforeFirst) run() {
	b.once.Do(b.hook)
}

// interleavedEvents runs a hook before the first ReleaseSeats or ReplaceEvent.
type interleavedEvents struct {
	*memstore.Store
	before *beforeFirst
}

func (e interleavedEvents) ReleaseSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) (bool, error) {
	e.before.run()
	return e.Store.ReleaseSeats(ctx, eventId, bookingId, tickets)
}

func (e interleavedEvents) ReplaceEvent(ctx context.Context, id primitive.ObjectID, event *models.Event) (*models.Event, error) {
	e.before.run()
	return e.Store.ReplaceEvent(ctx, id, event)
}

// interleavedBookings runs a hook before the first DeleteBooking or ListBookingsByEvent.
type interleavedBookings struct {
	*memstore.Store
	before *beforeFirst
}

func (b interleavedBookings) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	b.before.run()
	return b.Store.DeleteBooking(ctx, id)
}

func (b interleavedBookings) ListBookingsByEvent(ctx context.Context, eventId primitive.ObjectID) ([]*models.Booking, error) {
	b.before.run()
	return b.Store.ListBookingsByEvent(ctx, eventId)
}

func seedUser(t *testing.T, store *memstore.Store, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedEvent(t *testing.T, store *memstore.Store, name string, capacity int, date time.Time) *models.Event {
	t.Helper()
	e := &models.Event{
		Name:        name,
		Description: "An evening of " + name,
		Category:    "music",
		Date:        date,
		Venue:       "Accra Arena",
		Price:       25,
		Capacity:    capacity,
		Image:       "https://img.example.com/" + name + ".png",
	}
	require.NoError(t, store.CreateEvent(context.Background(), e))
	return e
}

func newBookingService(store *memstore.Store, users models.UserRepo, bookings models.BookingRepo) (*BookingService, *recordingPublisher, *recordingCatalog) {
	pub := &recordingPublisher{}
	cat := &recordingCatalog{}
	if users == nil {
		users = store
	}
	if bookings == nil {
		bookings = store
	}
	return NewBookingService(bookings, store, users, store, cat, pub, quietLogger()), pub, cat
}

func assertKind(t *testing.T, err error, kind helpers.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := helpers.AsAppError(err)
	assert.Equal(t, kind, appErr.Kind)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}
