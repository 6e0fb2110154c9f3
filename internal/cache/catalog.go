package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/joshua-takyi/eventbook/internal/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	eventListKey      = "catalog:events"
	eventKeyPrefix    = "catalog:event:"
	DefaultCatalogTTL = time.Minute
)

// EventCache wraps an EventRepo with a Redis read-through cache for the catalog
// reads. Every write goes to the base repo first and then evicts the affected keys.
// A nil redis client turns it into a pass-through.
type EventCache struct {
	models.EventRepo
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ models.EventRepo = (*EventCache)(nil)

func NewEventCache(base models.EventRepo, client *redis.Client, ttl time.Duration, logger *slog.Logger) *EventCache {
	if base == nil {
		panic("cache.NewEventCache: base repo is nil")
	}
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventCache{EventRepo: base, redis: client, ttl: ttl, logger: logger}
}

func (c *EventCache) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var events []*models.Event
	if c.load(ctx, eventListKey, &events) {
		return events, nil
	}
	events, err := c.EventRepo.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, eventListKey, events)
	return events, nil
}

func (c *EventCache) GetEventByID(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	var event models.Event
	if c.load(ctx, eventKey(id), &event) {
		return &event, nil
	}
	found, err := c.EventRepo.GetEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, eventKey(id), found)
	return found, nil
}

func (c *EventCache) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := c.EventRepo.CreateEvent(ctx, event); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

func (c *EventCache) ReplaceEvent(ctx context.Context, id primitive.ObjectID, event *models.Event) (*models.Event, error) {
	updated, err := c.EventRepo.ReplaceEvent(ctx, id, event)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, id)
	return updated, nil
}

func (c *EventCache) DeleteEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	deleted, err := c.EventRepo.DeleteEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, id)
	return deleted, nil
}

func (c *EventCache) ReserveSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) error {
	if err := c.EventRepo.ReserveSeats(ctx, eventId, bookingId, tickets); err != nil {
		return err
	}
	c.Invalidate(ctx, eventId)
	return nil
}

func (c *EventCache) ReleaseSeats(ctx context.Context, eventId, bookingId primitive.ObjectID, tickets int) (bool, error) {
	released, err := c.EventRepo.ReleaseSeats(ctx, eventId, bookingId, tickets)
	if err != nil {
		return false, err
	}
	if released {
		c.Invalidate(ctx, eventId)
	}
	return released, nil
}

func (c *EventCache) SetEventBookingRefs(ctx context.Context, eventId primitive.ObjectID, prev, next models.BookingRefs) error {
	if err := c.EventRepo.SetEventBookingRefs(ctx, eventId, prev, next); err != nil {
		return err
	}
	c.Invalidate(ctx, eventId)
	return nil
}

// Invalidate drops the event list and the given events from the cache.
func (c *EventCache) Invalidate(ctx context.Context, ids ...primitive.ObjectID) {
	if c.redis == nil {
		return
	}
	keys := []string{eventListKey}
	for _, id := range ids {
		keys = append(keys, eventKey(id))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("catalog cache eviction failed", "keys", keys, "error", err)
	}
}

func (c *EventCache) load(ctx context.Context, key string, dest any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *EventCache) store(ctx context.Context, key string, value any) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

func eventKey(id primitive.ObjectID) string {
	return eventKeyPrefix + id.Hex()
}
