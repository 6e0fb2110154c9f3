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

func ListEvents(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := e.ListEvents(c.Request.Context())
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func GetEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "Event not found")
		if !ok {
			return
		}

		event, err := e.GetEvent(c.Request.Context(), id)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func CreateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.EventInput
		if err := c.ShouldBindJSON(&in); err != nil {
			middleware.WriteError(c, helpers.Validation("invalid event payload", err))
			return
		}

		event, err := e.CreateEvent(c.Request.Context(), in)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

func UpdateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "Event not found")
		if !ok {
			return
		}
		var in models.EventInput
		if err := c.ShouldBindJSON(&in); err != nil {
			middleware.WriteError(c, helpers.Validation("invalid event payload", err))
			return
		}

		event, err := e.UpdateEvent(c.Request.Context(), id, in)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func DeleteEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "Event not found")
		if !ok {
			return
		}

		removed, err := e.DeleteEvent(c.Request.Context(), id)
		if err != nil {
			middleware.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":           "Event deleted successfully",
			"cancelledBookings": removed,
		})
	}
}

// pathID parses the :id parameter. A malformed id cannot name an existing
// document, so it is answered with notFound.
func pathID(c *gin.Context, notFound string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(helpers.StringTrim(c.Param("id")))
	if err != nil {
		middleware.WriteError(c, helpers.NotFound(notFound))
		return primitive.NilObjectID, false
	}
	return id, true
}
