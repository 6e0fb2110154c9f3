package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventbook/internal/container"
	"github.com/joshua-takyi/eventbook/internal/handlers"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(corsConfig(container.Config.CORSOrigins)))
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		middleware.WriteError(c, helpers.NotFound("Route not found"))
	})

	auth := middleware.AuthMiddleware(container.Tokens, container.Logger)
	adminOnly := middleware.AdminOnly()

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "OK",
				"service": "eventbook-api",
			})
		})
	}

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", handlers.Register(container.AuthService))
		authRoutes.POST("/login", handlers.Login(container.AuthService))
		authRoutes.GET("/me", auth, handlers.Me(container.AuthService))
	}

	eventRoutes := api.Group("/events")
	{
		eventRoutes.GET("", handlers.ListEvents(container.EventService))
		eventRoutes.GET("/:id", handlers.GetEvent(container.EventService))
		eventRoutes.POST("", auth, adminOnly, handlers.CreateEvent(container.EventService))
		eventRoutes.PUT("/:id", auth, adminOnly, handlers.UpdateEvent(container.EventService))
		eventRoutes.DELETE("/:id", auth, adminOnly, handlers.DeleteEvent(container.EventService))
	}

	bookingRoutes := api.Group("/bookings", auth)
	{
		bookingRoutes.POST("", handlers.CreateBooking(container.BookingService))
		bookingRoutes.GET("/user", handlers.GetUserBookings(container.BookingService))
		bookingRoutes.DELETE("/:id", handlers.CancelBooking(container.BookingService))
	}

	adminRoutes := api.Group("/admin", auth, adminOnly)
	{
		adminRoutes.POST("/reconcile", handlers.ReconcileBookings(container.BookingService))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
