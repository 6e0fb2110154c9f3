package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
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

type stubUploader struct {
	calls []string
	err   error
}

func (s *stubUploader) Upload(_ context.Context, source string) (string, error) {
	s.calls = append(s.calls, source)
	if s.err != nil {
		return "", s.err
	}
	return "https://res.cloudinary.com/demo/image/upload/events/poster.png", nil
}

func eventInput(name string, capacity int) models.EventInput {
	price := 40.0
	return models.EventInput{
		Name:        name,
		Description: "Live show",
		Category:    "concert",
		Date:        time.Date(2026, 12, 24, 19, 0, 0, 0, time.UTC),
		Venue:       "National Theatre",
		Price:       &price,
		Capacity:    capacity,
		Image:       "https://img.example.com/poster.png",
	}
}

func newEventService(store *memstore.Store, images ImageUploader) (*EventService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewEventService(store, store, store, store, images, pub, quietLogger()), pub
}

func TestListEventsOrderedByDate(t *testing.T) {
	store := memstore.New()
	now := time.Now().UTC()
	seedEvent(t, store, "later", 10, now.Add(72*time.Hour))
	seedEvent(t, store, "sooner", 10, now.Add(24*time.Hour))
	svc, _ := newEventService(store, nil)

	events, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sooner", events[0].Name)
	assert.Equal(t, "later", events[1].Name)
}

func TestGetEventNotFound(t *testing.T) {
	svc, _ := newEventService(memstore.New(), nil)

	_, err := svc.GetEvent(context.Background(), primitive.NewObjectID())
	assertKind(t, err, helpers.KindNotFound, "Event not found")
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("remote image is kept", func(t *testing.T) {
		store := memstore.New()
		images := &stubUploader{}
		svc, _ := newEventService(store, images)

		event, err := svc.CreateEvent(ctx, eventInput("  Harmattan Fest ", 50))
		require.NoError(t, err)
		assert.False(t, event.ID.IsZero())
		assert.Equal(t, "Harmattan Fest", event.Name)
		assert.Equal(t, 40.0, event.Price)
		assert.Empty(t, event.Bookings)
		assert.Empty(t, images.calls)

		stored, err := store.GetEventByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, "Harmattan Fest", stored.Name)
	})

	t.Run("inline image is uploaded", func(t *testing.T) {
		store := memstore.New()
		images := &stubUploader{}
		svc, _ := newEventService(store, images)

		in := eventInput("Poster Night", 50)
		in.Image = "data:image/png;base64,iVBORw0KGgo="
		event, err := svc.CreateEvent(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{in.Image}, images.calls)
		assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/events/poster.png", event.Image)
	})

	t.Run("upload failure", func(t *testing.T) {
		images := &stubUploader{err: errors.New("cloudinary down")}
		svc, _ := newEventService(memstore.New(), images)

		in := eventInput("Poster Night", 50)
		in.Image = "data:image/png;base64,iVBORw0KGgo="
		_, err := svc.CreateEvent(ctx, in)
		assertKind(t, err, helpers.KindInternal, "Error uploading event image")
	})

	t.Run("invalid capacity", func(t *testing.T) {
		svc, _ := newEventService(memstore.New(), nil)

		_, err := svc.CreateEvent(ctx, eventInput("Empty Room", 0))
		assertKind(t, err, helpers.KindValidation, "")
	})
}

func TestUpdateEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces fields and keeps bookings", func(t *testing.T) {
		store := memstore.New()
		alice := seedUser(t, store, "alice")
		event := seedEvent(t, store, "old name", 10, time.Now())
		bookings, _, _ := newBookingService(store, nil, nil)
		booking, err := bookings.CreateBooking(ctx, alice.ID, event.ID, 2)
		require.NoError(t, err)
		svc, _ := newEventService(store, nil)

		updated, err := svc.UpdateEvent(ctx, event.ID, eventInput("new name", 20))
		require.NoError(t, err)
		assert.Equal(t, "new name", updated.Name)
		assert.Equal(t, 20, updated.Capacity)
		assert.Equal(t, []primitive.ObjectID{booking.ID}, updated.Bookings)
		assert.Equal(t, 2, updated.BookedTickets)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc, _ := newEventService(memstore.New(), nil)

		_, err := svc.UpdateEvent(ctx, primitive.NewObjectID(), eventInput("x", 5))
		assertKind(t, err, helpers.KindNotFound, "Event not found")
	})

	t.Run("capacity below booked tickets", func(t *testing.T) {
		store := memstore.New()
		alice := seedUser(t, store, "alice")
		event := seedEvent(t, store, "packed", 10, time.Now())
		bookings, _, _ := newBookingService(store, nil, nil)
		_, err := bookings.CreateBooking(ctx, alice.ID, event.ID, 4)
		require.NoError(t, err)
		svc, _ := newEventService(store, nil)

		_, err = svc.UpdateEvent(ctx, event.ID, eventInput("packed", 3))
		assertKind(t, err, helpers.KindValidation, "capacity cannot be lower than the tickets already booked")

		got, _ := store.GetEventByID(ctx, event.ID)
		assert.Equal(t, 10, got.Capacity)
	})

	t.Run("seats booked after the event was read", func(t *testing.T) {
		store := memstore.New()
		event := seedEvent(t, store, "rush", 10, time.Now())
		before := &beforeFirst{hook: func() {
			require.NoError(t, store.ReserveSeats(ctx, event.ID, primitive.NewObjectID(), 5))
		}}
		svc := NewEventService(interleavedEvents{store, before}, store, store, store, nil, nil, quietLogger())

		_, err := svc.UpdateEvent(ctx, event.ID, eventInput("rush", 2))
		assertKind(t, err, helpers.KindValidation, "capacity cannot be lower than the tickets already booked")

		got, _ := store.GetEventByID(ctx, event.ID)
		assert.Equal(t, 10, got.Capacity)
		assert.Equal(t, 5, got.BookedTickets)
		assert.Equal(t, "rush", got.Name)
	})
}

func TestDeleteEventCascadesBookings(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	doomed := seedEvent(t, store, "doomed", 10, time.Now())
	other := seedEvent(t, store, "other", 10, time.Now())
	bookings, _, _ := newBookingService(store, nil, nil)

	_, err := bookings.CreateBooking(ctx, alice.ID, doomed.ID, 1)
	require.NoError(t, err)
	_, err = bookings.CreateBooking(ctx, bob.ID, doomed.ID, 1)
	require.NoError(t, err)
	survivor, err := bookings.CreateBooking(ctx, alice.ID, other.ID, 1)
	require.NoError(t, err)

	svc, pub := newEventService(store, nil)
	removed, err := svc.DeleteEvent(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{notify.BookingCancelled, notify.BookingCancelled}, pub.types())

	_, err = store.GetEventByID(ctx, doomed.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	all, _ := store.ListAllBookings(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, survivor.ID, all[0].ID)

	a, _ := store.GetUserByID(ctx, alice.ID)
	assert.Equal(t, []primitive.ObjectID{survivor.ID}, a.Bookings)
	b, _ := store.GetUserByID(ctx, bob.ID)
	assert.Empty(t, b.Bookings)

	_, err = svc.DeleteEvent(ctx, doomed.ID)
	assertKind(t, err, helpers.KindNotFound, "Event not found")
}

// failingSecondDelete deletes one booking and then fails.
type failingSecondDelete struct {
	*memstore.Store
	deleted []primitive.ObjectID
}

func (f *failingSecondDelete) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	if len(f.deleted) > 0 {
		return errStoreDown
	}
	if err := f.Store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestDeleteEventLogsPartiallyRemovedBookings(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	event := seedEvent(t, store, "halfway", 10, time.Now())
	bookings, _, _ := newBookingService(store, nil, nil)
	_, err := bookings.CreateBooking(ctx, alice.ID, event.ID, 1)
	require.NoError(t, err)
	_, err = bookings.CreateBooking(ctx, bob.ID, event.ID, 1)
	require.NoError(t, err)

	var logs bytes.Buffer
	repo := &failingSecondDelete{Store: store}
	svc := NewEventService(store, repo, store, store, nil, nil, slog.New(slog.NewJSONHandler(&logs, nil)))

	_, err = svc.DeleteEvent(ctx, event.ID)
	assertKind(t, err, helpers.KindInternal, "Error deleting event")
	require.Len(t, repo.deleted, 1)

	var entry struct {
		Msg     string   `json:"msg"`
		Removed int      `json:"bookings_removed"`
		IDs     []string `json:"removed_booking_ids"`
	}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry), logs.String())
	assert.Equal(t, "event deletion failed", entry.Msg)
	assert.Equal(t, 1, entry.Removed)
	assert.Equal(t, []string{repo.deleted[0].Hex()}, entry.IDs)
}
