package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/middleware"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createBookingRequest struct {
	EventID     string `json:"eventId" binding:"required"`
	TicketCount int    `json:"ticketCount" binding:"max=100"`
}

func CreateBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.GetCaller(c)
		if !ok {
			middleware.WriteError(c, helpers.Unauthenticated("Authentication required", helpers.ReasonNoHeader))
			return
		}

		var req createBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.WriteError(c, helpers.Validation("invalid booking payload", err))
			return
		}
		eventID, err := primitive.ObjectIDFromHex(helpers.StringTrim(req.EventID))
		if err != nil {
			middleware.WriteError(c, helpers.Validation("invalid event id", err))
			return
		}

		booking, err := b.CreateBooking(c.Request.Context(), caller.ID, eventID, req.TicketCount)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, booking)
	}
}

func GetUserBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.GetCaller(c)
		if !ok {
			middleware.WriteError(c, helpers.Unauthenticated("Authentication required", helpers.ReasonNoHeader))
			return
		}

		bookings, err := b.ListUserBookings(c.Request.Context(), caller.ID)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

func CancelBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.GetCaller(c)
		if !ok {
			middleware.WriteError(c, helpers.Unauthenticated("Authentication required", helpers.ReasonNoHeader))
			return
		}
		id, ok := pathID(c, "Booking not found")
		if !ok {
			return
		}

		if err := b.CancelBooking(c.Request.Context(), caller, id); err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.MessageResponse("Booking cancelled successfully"))
	}
}

func ReconcileBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := b.Reconcile(c.Request.Context())
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
