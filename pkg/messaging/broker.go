package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/pkg/logger"
)

// ErrSubscribeUnsupported is returned by brokers that only publish.
var ErrSubscribeUnsupported = errors.New("broker does not support subscriptions")

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Message is the envelope published for every outbox event.
type Message struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// LogBroker writes events to the application log. It stands in for Redis
// when no broker is configured so the outbox still drains.
type LogBroker struct {
	logger *logger.Logger
}

func NewLogBroker(log *logger.Logger) *LogBroker {
	return &LogBroker{logger: log}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.logger.Info("event published", "channel", channel, "message", string(payload))
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, ErrSubscribeUnsupported
}

func (b *LogBroker) Ping(ctx context.Context) error { return nil }

func (b *LogBroker) Close() error { return nil }
