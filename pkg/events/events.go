package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nailstore/nailstore-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	AccountRegistered = "account.registered"
	AccountConfirmed  = "account.confirmed"
	AccountLocked     = "account.locked"

	ListingCreated = "listing.created"
	ListingRemoved = "listing.removed"
)

type AccountRegisteredEvent struct {
	AccountID    uuid.UUID `json:"account_id"`
	UserName     string    `json:"user_name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type AccountConfirmedEvent struct {
	AccountID   uuid.UUID `json:"account_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type AccountLockedEvent struct {
	AccountID  uuid.UUID `json:"account_id"`
	LockedTill time.Time `json:"locked_till"`
}

type ListingCreatedEvent struct {
	ServiceID  int64     `json:"service_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	CategoryID int       `json:"category_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListingRemovedEvent struct {
	ServiceID int64     `json:"service_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	RemovedAt time.Time `json:"removed_at"`
}

// NoopBus satisfies Publisher when NATS is not configured (tests, local dev).
type NoopBus struct{}

func (NoopBus) Publish(context.Context, string, interface{}) error { return nil }
func (NoopBus) Close() error                                       { return nil }
