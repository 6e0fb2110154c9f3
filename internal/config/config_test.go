package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb+srv://app:<password>@cluster0.example.net")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	for _, key := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "MONGODB_DATABASE", "MONGODB_TRANSACTIONS",
		"JWT_TTL", "ADMIN_EMAILS", "CORS_ORIGINS", "CATALOG_CACHE_TTL", "BOOKING_EVENTS_QUEUE", "REDIS_URL", "RABBITMQ_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "eventbook", cfg.MongoDBDatabase)
	assert.False(t, cfg.MongoDBTransactions)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.AdminEmails)
	assert.Equal(t, "booking.events", cfg.BookingEventsQueue)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MONGODB_TRANSACTIONS", "true")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("ADMIN_EMAILS", " root@example.com, ,ops@example.com ")
	t.Setenv("CORS_ORIGINS", "https://eventbook.example.com")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.MongoDBTransactions)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, []string{"https://eventbook.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.CloudinaryEnabled())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing mongo uri", map[string]string{"MONGODB_URI": ""}, "MONGODB_URI is required"},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET is required"},
		{"bad ttl", map[string]string{"JWT_TTL": "forever"}, "JWT_TTL must be a positive duration"},
		{"negative cache ttl", map[string]string{"CATALOG_CACHE_TTL": "-1m"}, "CATALOG_CACHE_TTL must be a positive duration"},
		{"bad transactions flag", map[string]string{"MONGODB_TRANSACTIONS": "maybe"}, "MONGODB_TRANSACTIONS must be a boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("JWT_TTL", "")
			t.Setenv("CATALOG_CACHE_TTL", "")
			t.Setenv("MONGODB_TRANSACTIONS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
