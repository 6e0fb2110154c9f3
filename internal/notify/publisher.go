package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultQueue = "booking.events"

	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
)

// BookingMessage is published after a booking workflow commits.
type BookingMessage struct {
	Type        string             `json:"type"`
	BookingID   primitive.ObjectID `json:"bookingId"`
	EventID     primitive.ObjectID `json:"eventId"`
	UserID      primitive.ObjectID `json:"userId"`
	TicketCount int                `json:"ticketCount"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, msg BookingMessage) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, BookingMessage) error { return nil }

type AMQPPublisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

// NewAMQPPublisher opens a channel on conn and declares a durable queue.
func NewAMQPPublisher(conn *amqp.Connection, queue string) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg BookingMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         msg.Type,
			MessageId:    msg.BookingID.Hex(),
			Body:         body,
			Timestamp:    msg.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to queue %s: %w", p.queue, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}
