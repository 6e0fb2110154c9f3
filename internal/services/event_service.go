package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ImageUploader interface {
	Upload(ctx context.Context, source string) (string, error)
}

type EventService struct {
	eventsRepo   models.EventRepo
	bookingsRepo models.BookingRepo
	usersRepo    models.UserRepo
	tx           models.TxRunner
	images       ImageUploader
	publisher    notify.Publisher
	logger       *slog.Logger
}

func NewEventService(
	eventsRepo models.EventRepo,
	bookingsRepo models.BookingRepo,
	usersRepo models.UserRepo,
	tx models.TxRunner,
	images ImageUploader,
	publisher notify.Publisher,
	logger *slog.Logger,
) *EventService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		eventsRepo:   eventsRepo,
		bookingsRepo: bookingsRepo,
		usersRepo:    usersRepo,
		tx:           tx,
		images:       images,
		publisher:    publisher,
		logger:       logger,
	}
}

func (es *EventService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	events, err := es.eventsRepo.ListEvents(ctx)
	if err != nil {
		return nil, helpers.Internal("Error fetching events", err)
	}
	return events, nil
}

func (es *EventService) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	event, err := es.eventsRepo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, helpers.NotFound("Event not found")
		}
		return nil, helpers.Internal("Error fetching event", err)
	}
	return event, nil
}

func (es *EventService) CreateEvent(ctx context.Context, in models.EventInput) (*models.Event, error) {
	event, err := es.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := es.eventsRepo.CreateEvent(ctx, event); err != nil {
		return nil, helpers.Internal("Error creating event", err)
	}
	es.logger.Info("event created", "event_id", event.ID.Hex(), "name", event.Name)
	return event, nil
}

// UpdateEvent replaces every editable field of the event. Booking references and
// the booked ticket count are left untouched. The store rejects a capacity below
// the booked ticket count as part of the same write.
func (es *EventService) UpdateEvent(ctx context.Context, id primitive.ObjectID, in models.EventInput) (*models.Event, error) {
	if _, err := es.GetEvent(ctx, id); err != nil {
		return nil, err
	}
	event, err := es.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	updated, err := es.eventsRepo.ReplaceEvent(ctx, id, event)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, helpers.NotFound("Event not found")
		case errors.Is(err, models.ErrCapacityBelowBooked):
			return nil, helpers.Validation("capacity cannot be lower than the tickets already booked", nil)
		}
		return nil, helpers.Internal("Error updating event", err)
	}
	return updated, nil
}

// DeleteEvent removes the event together with its bookings and the users'
// references to them, so no dangling booking survives the event.
func (es *EventService) DeleteEvent(ctx context.Context, id primitive.ObjectID) (int, error) {
	var cancelled []*models.Booking
	err := es.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cancelled = nil
		if _, err := es.eventsRepo.GetEventByID(ctx, id); err != nil {
			return err
		}
		bookings, err := es.bookingsRepo.ListBookingsByEvent(ctx, id)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if _, err := es.usersRepo.RemoveUserBookingRef(ctx, b.UserID, b.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
			if err := es.bookingsRepo.DeleteBooking(ctx, b.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
			cancelled = append(cancelled, b)
		}
		_, err = es.eventsRepo.DeleteEvent(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, helpers.NotFound("Event not found")
		}
		// Without a transaction these bookings stay deleted; Reconcile repairs the event.
		es.logger.Error("event deletion failed",
			"event_id", id.Hex(),
			"bookings_removed", len(cancelled),
			"removed_booking_ids", bookingIDs(cancelled),
			"error", err,
		)
		return 0, helpers.Internal("Error deleting event", err)
	}

	for _, b := range cancelled {
		publish(ctx, es.publisher, es.logger, notify.BookingCancelled, b)
	}
	es.logger.Info("event deleted", "event_id", id.Hex(), "bookings_removed", len(cancelled))
	return len(cancelled), nil
}

func bookingIDs(bookings []*models.Booking) []string {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID.Hex())
	}
	return ids
}

func (es *EventService) prepare(ctx context.Context, in models.EventInput) (*models.Event, error) {
	event := in.ToEvent()
	event.Name = strings.TrimSpace(event.Name)
	if err := models.Validate.Struct(event); err != nil {
		return nil, helpers.Validation("invalid event data", err)
	}
	if es.images != nil && event.Image != "" && !helpers.IsRemoteURL(event.Image) {
		url, err := es.images.Upload(ctx, event.Image)
		if err != nil {
			return nil, helpers.Internal("Error uploading event image", err)
		}
		event.Image = url
	}
	return event, nil
}

func publish(ctx context.Context, p notify.Publisher, logger *slog.Logger, kind string, b *models.Booking) {
	msg := notify.BookingMessage{
		Type:        kind,
		BookingID:   b.ID,
		EventID:     b.EventID,
		UserID:      b.UserID,
		TicketCount: b.TicketCount,
		OccurredAt:  time.Now().UTC(),
	}
	if err := p.Publish(ctx, msg); err != nil {
		logger.Warn("booking notification failed", "type", kind, "booking_id", b.ID.Hex(), "error", err)
	}
}
