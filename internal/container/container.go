package container

import (
	"log/slog"

	"github.com/joshua-takyi/eventbook/internal/cache"
	"github.com/joshua-takyi/eventbook/internal/config"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/notify"
	"github.com/joshua-takyi/eventbook/internal/services"
	"github.com/redis/go-redis/v9"
)

const tokenIssuer = "eventbook-api"

// Stores groups the persistence backends. MongodbRepo satisfies all four;
// tests pass a memstore.Store.
type Stores struct {
	Users    models.UserRepo
	Events   models.EventRepo
	Bookings models.BookingRepo
	Tx       models.TxRunner
}

// Container holds all application dependencies
type Container struct {
	Logger         *slog.Logger
	Config         *config.Config
	Tokens         *helpers.TokenManager
	Catalog        *cache.EventCache
	AuthService    *services.AuthService
	EventService   *services.EventService
	BookingService *services.BookingService
}

// NewContainer wires the services. redisClient, publisher and images are optional.
func NewContainer(
	logger *slog.Logger,
	cfg *config.Config,
	stores Stores,
	redisClient *redis.Client,
	publisher notify.Publisher,
	images services.ImageUploader,
) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}

	tokens := helpers.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, tokenIssuer)
	catalog := cache.NewEventCache(stores.Events, redisClient, cfg.CatalogCacheTTL, logger)

	authService := services.NewAuthService(stores.Users, tokens, cfg.AdminEmails)
	eventService := services.NewEventService(catalog, stores.Bookings, stores.Users, stores.Tx, images, publisher, logger)
	// Seat reservation reads and writes the store directly; the cache is only evicted.
	bookingService := services.NewBookingService(stores.Bookings, stores.Events, stores.Users, stores.Tx, catalog, publisher, logger)

	return &Container{
		Logger:         logger,
		Config:         cfg,
		Tokens:         tokens,
		Catalog:        catalog,
		AuthService:    authService,
		EventService:   eventService,
		BookingService: bookingService,
	}
}
