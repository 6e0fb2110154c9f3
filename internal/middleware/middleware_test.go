package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(tm *helpers.TokenManager) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(logger))

	r.GET("/private", AuthMiddleware(tm, logger), func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": caller.ID.Hex(), "role": caller.Role})
	})
	r.GET("/admin", AuthMiddleware(tm, logger), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/boom", func(c *gin.Context) {
		WriteError(c, errors.New("connection reset by peer"))
	})
	r.GET("/missing", func(c *gin.Context) {
		WriteError(c, helpers.NotFound("Event not found"))
	})
	return r
}

func do(t *testing.T, r http.Handler, path, auth string) (*httptest.ResponseRecorder, models.ErrorBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body models.ErrorBody
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestAuthMiddleware(t *testing.T) {
	tm := helpers.NewTokenManager("secret", time.Hour, "test")
	expiredTM := helpers.NewTokenManager("secret", -time.Minute, "test")
	r := testRouter(tm)
	id := primitive.NewObjectID()

	token, err := tm.Issue(id, "user")
	require.NoError(t, err)
	expired, err := expiredTM.Issue(id, "user")
	require.NoError(t, err)
	foreign, err := helpers.NewTokenManager("secret", time.Hour, "other-service").Issue(id, "admin")
	require.NoError(t, err)

	w, _ := do(t, r, "/private", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.Hex())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	tests := []struct {
		name   string
		auth   string
		reason string
	}{
		{"no header", "", helpers.ReasonNoHeader},
		{"no token", "Bearer", helpers.ReasonNoToken},
		{"expired", "Bearer " + expired, helpers.ReasonTokenExpired},
		{"malformed", "Bearer not.a.jwt", helpers.ReasonTokenMalformed},
		{"other issuer", "Bearer " + foreign, helpers.ReasonVerificationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, r, "/private", tt.auth)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.reason, body.Reason)
			assert.Equal(t, string(helpers.KindUnauthenticated), body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	tm := helpers.NewTokenManager("secret", time.Hour, "test")
	r := testRouter(tm)

	userToken, err := tm.Issue(primitive.NewObjectID(), "user")
	require.NoError(t, err)
	adminToken, err := tm.Issue(primitive.NewObjectID(), "admin")
	require.NoError(t, err)

	w, _ := do(t, r, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := do(t, r, "/admin", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", body.Message)

	w, _ = do(t, r, "/admin", "Bearer "+adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWriteError(t *testing.T) {
	r := testRouter(helpers.NewTokenManager("secret", time.Hour, "test"))

	w, body := do(t, r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "connection reset")

	w, body = do(t, r, "/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found", body.Message)
	assert.Equal(t, string(helpers.KindNotFound), body.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := testRouter(helpers.NewTokenManager("secret", time.Hour, "test"))
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"request_id":"req-123"`)
}
