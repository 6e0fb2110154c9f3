package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/eventbook/internal/config"
	"github.com/joshua-takyi/eventbook/internal/connect"
	"github.com/joshua-takyi/eventbook/internal/container"
	"github.com/joshua-takyi/eventbook/internal/helpers"
	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/joshua-takyi/eventbook/internal/notify"
	"github.com/joshua-takyi/eventbook/internal/routes"
	"github.com/joshua-takyi/eventbook/internal/services"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Starting EventBook API server", "environment", cfg.Environment)

	ctx := context.Background()

	mongoClient, err := connect.MongoDBConnect(ctx, cfg.MongoDBURI, cfg.MongoDBPassword)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully", "database", cfg.MongoDBDatabase)

	repo := models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase, cfg.MongoDBTransactions)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connect.RedisConnect(ctx, cfg.RedisURL)
		if err != nil {
			// The catalog cache is optional; serve straight from MongoDB.
			logger.Warn("Redis unavailable, catalog cache disabled", "error", err)
			redisClient = nil
		} else {
			logger.Info("Connected to Redis successfully")
		}
	}

	var (
		amqpConn  *amqp.Connection
		amqpPub   *notify.AMQPPublisher
		publisher notify.Publisher = notify.Nop{}
	)
	if cfg.RabbitMQURL != "" {
		amqpConn, err = connect.RabbitMQConnect(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, booking notifications disabled", "error", err)
		} else if p, err := notify.NewAMQPPublisher(amqpConn, cfg.BookingEventsQueue); err != nil {
			logger.Warn("Failed to set up booking notifications", "error", err)
		} else {
			amqpPub, publisher = p, p
			logger.Info("Publishing booking notifications", "queue", cfg.BookingEventsQueue)
		}
	}

	var images services.ImageUploader
	if cfg.CloudinaryEnabled() {
		cld, err := connect.CloudinaryCredentials(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Error("Failed to connect to Cloudinary", "error", err)
			os.Exit(1)
		}
		images = helpers.NewCloudinaryUploader(cld, helpers.EventsFolder)
	}

	// Initialize dependency container
	stores := container.Stores{Users: repo, Events: repo, Bookings: repo, Tx: repo}
	appContainer := container.NewContainer(logger, cfg, stores, redisClient, publisher, images)

	// Setup routes
	router := routes.SetupRoutes(appContainer)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	if amqpPub != nil {
		_ = amqpPub.Close()
	}
	if amqpConn != nil {
		if err := amqpConn.Close(); err != nil {
			logger.Error("Error closing RabbitMQ connection", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", "error", err)
		}
	}
	if err := connect.MongoDBDisconnect(mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})
	}

	return slog.New(handler)
}
