package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
)

const (
	RequestIDKey = "request_id"
	CallerKey    = "user"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get(RequestIDKey)

		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler logs errors attached by handlers and answers with a generic 500
// when nothing has been written yet.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get(RequestIDKey)

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if !c.Writer.Written() {
			body := models.ErrorResponse("Internal server error", string(helpers.KindInternal), "")
			body.RequestID, _ = requestID.(string)
			c.JSON(http.StatusInternalServerError, body)
		}
	}
}

// AuthMiddleware verifies the bearer token and stores the caller under CallerKey.
func AuthMiddleware(tokens *helpers.TokenManager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := tokens.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			appErr := helpers.AsAppError(err)
			if appErr.Err != nil {
				logger.Debug("token verification failed", "reason", appErr.Reason, "error", appErr.Err)
			}
			Abort(c, appErr)
			return
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			Abort(c, helpers.Unauthenticated("Authentication required", helpers.ReasonNoHeader))
			return
		}
		if !caller.IsAdmin() {
			Abort(c, helpers.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

func GetCaller(c *gin.Context) (*helpers.Caller, bool) {
	v, exists := c.Get(CallerKey)
	if !exists {
		return nil, false
	}
	caller, ok := v.(*helpers.Caller)
	return caller, ok && caller != nil
}

// Abort writes err as the error body and stops the handler chain.
func Abort(c *gin.Context, err *helpers.AppError) {
	c.AbortWithStatusJSON(err.Status(), errorBody(c, err))
}

func errorBody(c *gin.Context, err *helpers.AppError) models.ErrorBody {
	body := models.ErrorResponse(err.Message, string(err.Kind), err.Reason)
	if requestID, ok := c.Get(RequestIDKey); ok {
		body.RequestID, _ = requestID.(string)
	}
	return body
}

// WriteError maps err to its status and body. Internal errors are attached to
// the context so ErrorHandler logs them; their details never reach the client.
func WriteError(c *gin.Context, err error) {
	appErr := helpers.AsAppError(err)
	if appErr.Kind == helpers.KindInternal {
		_ = c.Error(err)
		body := errorBody(c, appErr)
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(appErr.Status(), errorBody(c, appErr))
}
