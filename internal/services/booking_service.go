package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/notify"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	compensationTimeout = 10 * time.Second
	// reconcileGrace is how old a booking id must be before Reconcile treats it
	// as settled when the store has no transactions.
	reconcileGrace    = time.Minute
	reconcileAttempts = 3
)

// CatalogInvalidator drops cached catalog entries once a booking change is committed.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, ids ...primitive.ObjectID)
}

// BookingService keeps Booking records and the Event/User back-references in sync.
// With a transactional store each workflow commits or aborts as a unit; otherwise
// every completed step registers its undo and a failure replays them in reverse.
type BookingService struct {
	bookingsRepo models.BookingRepo
	eventsRepo   models.EventRepo
	usersRepo    models.UserRepo
	tx           models.TxRunner
	catalog      CatalogInvalidator
	publisher    notify.Publisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewBookingService(
	bookingsRepo models.BookingRepo,
	eventsRepo models.EventRepo,
	usersRepo models.UserRepo,
	tx models.TxRunner,
	catalog CatalogInvalidator,
	publisher notify.Publisher,
	logger *slog.Logger,
) *BookingService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingService{
		bookingsRepo: bookingsRepo,
		eventsRepo:   eventsRepo,
		usersRepo:    usersRepo,
		tx:           tx,
		catalog:      catalog,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (bs *BookingService) CreateBooking(ctx context.Context, callerID, eventID primitive.ObjectID, ticketCount int) (*models.Booking, error) {
	if ticketCount <= 0 {
		ticketCount = models.DefaultTicketCount
	}
	if ticketCount > models.MaxTicketCount {
		return nil, helpers.Validation(fmt.Sprintf("ticketCount cannot exceed %d", models.MaxTicketCount), nil)
	}

	var (
		booking *models.Booking
		undo    []undoStep
	)
	err := bs.tx.WithTransaction(ctx, func(ctx context.Context) error {
		undo = undo[:0]

		if _, err := bs.eventsRepo.GetEventByID(ctx, eventID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return helpers.NotFound("Event not found")
			}
			return err
		}

		if _, err := bs.bookingsRepo.FindBooking(ctx, callerID, eventID); err == nil {
			return helpers.Conflict("You have already booked this event")
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		b := &models.Booking{EventID: eventID, UserID: callerID, TicketCount: ticketCount}
		if err := bs.bookingsRepo.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, models.ErrDuplicateBooking) {
				return helpers.Conflict("You have already booked this event")
			}
			return err
		}
		undo = append(undo, undoStep{"delete booking", func(ctx context.Context) error {
			return bs.bookingsRepo.DeleteBooking(ctx, b.ID)
		}})

		if err := bs.eventsRepo.ReserveSeats(ctx, eventID, b.ID, b.TicketCount); err != nil {
			switch {
			case errors.Is(err, models.ErrSoldOut):
				return helpers.Conflict("Event is sold out")
			case errors.Is(err, models.ErrNotFound):
				return helpers.NotFound("Event not found")
			}
			return err
		}
		undo = append(undo, undoStep{"release seats", func(ctx context.Context) error {
			_, err := bs.eventsRepo.ReleaseSeats(ctx, eventID, b.ID, b.TicketCount)
			return err
		}})

		if err := bs.usersRepo.AddUserBookingRef(ctx, callerID, b.ID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return helpers.NotFound("User not found")
			}
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		bs.rollback(ctx, "create", undo)
		return nil, bs.wrap(err, "Error creating booking")
	}

	bs.invalidate(ctx, eventID)
	publish(ctx, bs.publisher, bs.logger, notify.BookingCreated, booking)
	bs.logger.Info("booking created",
		"booking_id", booking.ID.Hex(),
		"event_id", eventID.Hex(),
		"user_id", callerID.Hex(),
		"ticket_count", booking.TicketCount,
	)
	return booking, nil
}

// ListUserBookings returns the caller's bookings, newest first, with events resolved.
func (bs *BookingService) ListUserBookings(ctx context.Context, callerID primitive.ObjectID) ([]*models.Booking, error) {
	bookings, err := bs.bookingsRepo.ListBookingsByUser(ctx, callerID)
	if err != nil {
		return nil, helpers.Internal("Error fetching bookings", err)
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

// CancelBooking is allowed for the booking's owner and for admins. The booking
// record is deleted first, so of two racing cancels only one touches the
// references; each reference step registers its undo only if it changed something.
func (bs *BookingService) CancelBooking(ctx context.Context, caller *helpers.Caller, bookingID primitive.ObjectID) error {
	var (
		booking *models.Booking
		undo    []undoStep
	)
	err := bs.tx.WithTransaction(ctx, func(ctx context.Context) error {
		undo = undo[:0]

		b, err := bs.bookingsRepo.GetBookingByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return helpers.NotFound("Booking not found")
			}
			return err
		}
		if !caller.IsOwner(b.UserID) && !caller.IsAdmin() {
			return helpers.Forbidden("Not authorized")
		}

		if err := bs.bookingsRepo.DeleteBooking(ctx, b.ID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return helpers.NotFound("Booking not found")
			}
			return err
		}
		undo = append(undo, undoStep{"restore booking", func(ctx context.Context) error {
			restored := *b
			return bs.bookingsRepo.CreateBooking(ctx, &restored)
		}})

		// A missing event or user only means that reference is already gone.
		released, err := bs.eventsRepo.ReleaseSeats(ctx, b.EventID, b.ID, b.TicketCount)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if released {
			undo = append(undo, undoStep{"re-reserve seats", func(ctx context.Context) error {
				return bs.eventsRepo.ReserveSeats(ctx, b.EventID, b.ID, b.TicketCount)
			}})
		}

		detached, err := bs.usersRepo.RemoveUserBookingRef(ctx, b.UserID, b.ID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if detached {
			undo = append(undo, undoStep{"re-attach user reference", func(ctx context.Context) error {
				return bs.usersRepo.AddUserBookingRef(ctx, b.UserID, b.ID)
			}})
		}

		booking = b
		return nil
	})
	if err != nil {
		bs.rollback(ctx, "cancel", undo)
		return bs.wrap(err, "Error cancelling booking")
	}

	bs.invalidate(ctx, booking.EventID)
	publish(ctx, bs.publisher, bs.logger, notify.BookingCancelled, booking)
	bs.logger.Info("booking cancelled",
		"booking_id", booking.ID.Hex(),
		"event_id", booking.EventID.Hex(),
		"user_id", booking.UserID.Hex(),
		"cancelled_by", caller.ID.Hex(),
	)
	return nil
}

// Reconcile rebuilds every event's and user's booking references from the
// Booking collection and removes bookings whose event or user is gone. It is
// idempotent and repairs whatever a failed non-transactional workflow left behind.
//
// Each document is re-read and written with a conditional update, so a booking
// created or cancelled while Reconcile runs is never overwritten. Without
// transactions, documents touched by bookings younger than reconcileGrace are
// counted as deferred and left for a later run.
func (bs *BookingService) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	var report *models.ReconcileReport
	err := bs.tx.WithTransaction(ctx, func(ctx context.Context) error {
		report = &models.ReconcileReport{}
		if err := bs.removeOrphans(ctx, report); err != nil {
			return err
		}

		events, err := bs.eventsRepo.ListEvents(ctx)
		if err != nil {
			return err
		}
		for _, e := range events {
			done, err := bs.retryStale(ctx, func() (bool, error) { return bs.reconcileEvent(ctx, e.ID) })
			if err != nil {
				return err
			}
			countReconciled(report, &report.Events, done)
		}

		users, err := bs.usersRepo.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			done, err := bs.retryStale(ctx, func() (bool, error) { return bs.reconcileUser(ctx, u.ID) })
			if err != nil {
				return err
			}
			countReconciled(report, &report.Users, done)
		}
		return nil
	})
	if err != nil {
		return nil, bs.wrap(err, "Error reconciling bookings")
	}

	bs.invalidate(ctx)
	bs.logger.Info("booking references reconciled",
		"events", report.Events,
		"users", report.Users,
		"bookings", report.Bookings,
		"removed", report.Removed,
		"deferred", report.Deferred,
	)
	return report, nil
}

func countReconciled(report *models.ReconcileReport, counter *int, done bool) {
	if done {
		*counter++
	} else {
		report.Deferred++
	}
}

// removeOrphans deletes settled bookings whose event or user no longer exists.
func (bs *BookingService) removeOrphans(ctx context.Context, report *models.ReconcileReport) error {
	bookings, err := bs.bookingsRepo.ListAllBookings(ctx)
	if err != nil {
		return err
	}
	events := make(map[primitive.ObjectID]bool)
	users := make(map[primitive.ObjectID]bool)
	for _, b := range bookings {
		if bs.inFlight(b.ID) {
			report.Deferred++
			continue
		}
		eventOK, err := exists(ctx, events, b.EventID, func(ctx context.Context, id primitive.ObjectID) error {
			_, err := bs.eventsRepo.GetEventByID(ctx, id)
			return err
		})
		if err != nil {
			return err
		}
		userOK, err := exists(ctx, users, b.UserID, func(ctx context.Context, id primitive.ObjectID) error {
			_, err := bs.usersRepo.GetUserByID(ctx, id)
			return err
		})
		if err != nil {
			return err
		}
		if eventOK && userOK {
			report.Bookings++
			continue
		}
		if err := bs.bookingsRepo.DeleteBooking(ctx, b.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		report.Removed++
	}
	return nil
}

func exists(ctx context.Context, seen map[primitive.ObjectID]bool, id primitive.ObjectID, get func(context.Context, primitive.ObjectID) error) (bool, error) {
	if ok, cached := seen[id]; cached {
		return ok, nil
	}
	err := get(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, err
	}
	seen[id] = err == nil
	return err == nil, nil
}

// retryStale runs fn until it stops failing with models.ErrStaleRefs. It reports
// false when the document had to be deferred.
func (bs *BookingService) retryStale(ctx context.Context, fn func() (bool, error)) (bool, error) {
	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		done, err := fn()
		if !errors.Is(err, models.ErrStaleRefs) {
			return done, err
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}
	bs.logger.Warn("booking references kept changing, deferring", "attempts", reconcileAttempts)
	return false, nil
}

// reconcileEvent reports false when the event was deferred. A deleted event
// counts as done.
func (bs *BookingService) reconcileEvent(ctx context.Context, id primitive.ObjectID) (bool, error) {
	event, err := bs.eventsRepo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	live, err := bs.bookingsRepo.ListBookingsByEvent(ctx, id)
	if err != nil {
		return false, err
	}
	if bs.anyInFlight(event.Bookings, live) {
		return false, nil
	}

	next := models.BookingRefs{IDs: mergeRefs(event.Bookings, live)}
	for _, b := range live {
		next.Tickets += b.TicketCount
	}
	prev := models.BookingRefs{IDs: event.Bookings, Tickets: event.BookedTickets}
	if prev.Tickets == next.Tickets && slices.Equal(prev.IDs, next.IDs) {
		return true, nil
	}
	if err := bs.eventsRepo.SetEventBookingRefs(ctx, id, prev, next); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	bs.logger.Warn("event booking references repaired",
		"event_id", id.Hex(),
		"booked_tickets_was", prev.Tickets,
		"booked_tickets", next.Tickets,
	)
	return true, nil
}

func (bs *BookingService) reconcileUser(ctx context.Context, id primitive.ObjectID) (bool, error) {
	user, err := bs.usersRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	live, err := bs.bookingsRepo.ListBookingsByUser(ctx, id)
	if err != nil {
		return false, err
	}
	if bs.anyInFlight(user.Bookings, live) {
		return false, nil
	}
	// listed newest first
	slices.Reverse(live)

	next := mergeRefs(user.Bookings, live)
	if slices.Equal(user.Bookings, next) {
		return true, nil
	}
	if err := bs.usersRepo.SetUserBookingRefs(ctx, id, user.Bookings, next); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	bs.logger.Warn("user booking references repaired", "user_id", id.Hex())
	return true, nil
}

// mergeRefs keeps the stored order of references that still have a booking and
// appends the missing ones in the order given.
func mergeRefs(stored []primitive.ObjectID, live []*models.Booking) []primitive.ObjectID {
	alive := make(map[primitive.ObjectID]bool, len(live))
	for _, b := range live {
		alive[b.ID] = true
	}
	out := make([]primitive.ObjectID, 0, len(live))
	kept := make(map[primitive.ObjectID]bool, len(live))
	for _, id := range stored {
		if alive[id] && !kept[id] {
			out = append(out, id)
			kept[id] = true
		}
	}
	for _, b := range live {
		if !kept[b.ID] {
			out = append(out, b.ID)
			kept[b.ID] = true
		}
	}
	return out
}

// inFlight reports whether a non-transactional workflow may still be writing
// references for the booking id.
func (bs *BookingService) inFlight(id primitive.ObjectID) bool {
	if bs.tx.Transactional() {
		return false
	}
	return id.Timestamp().After(bs.now().Add(-reconcileGrace))
}

func (bs *BookingService) anyInFlight(refs []primitive.ObjectID, live []*models.Booking) bool {
	for _, id := range refs {
		if bs.inFlight(id) {
			return true
		}
	}
	for _, b := range live {
		if bs.inFlight(b.ID) {
			return true
		}
	}
	return false
}

// rollback replays undo in reverse. It is skipped when the store aborted a real
// transaction, since nothing was persisted.
func (bs *BookingService) rollback(ctx context.Context, workflow string, undo []undoStep) {
	if bs.tx.Transactional() || len(undo) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	for i := len(undo) - 1; i >= 0; i-- {
		step := undo[i]
		if err := step.fn(ctx); err != nil {
			// Left for Reconcile to repair.
			bs.logger.Error("booking compensation failed",
				"workflow", workflow,
				"step", step.name,
				"error", err,
			)
			continue
		}
		bs.logger.Warn("booking step compensated", "workflow", workflow, "step", step.name)
	}
}

func (bs *BookingService) invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	if bs.catalog != nil {
		bs.catalog.Invalidate(ctx, ids...)
	}
}

func (bs *BookingService) wrap(err error, message string) error {
	var appErr *helpers.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	bs.logger.Error(message, "error", err)
	return helpers.Internal(message, err)
}
