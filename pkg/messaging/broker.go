package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope every published event travels in.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one message of the type it was registered for.
type Handler func(ctx context.Context, msg Message) error

// Consume subscribes to channel and dispatches each message to the handler
// registered for its type until ctx is cancelled or the subscription closes.
// Malformed messages and handler errors are passed to onError and skipped.
func Consume(ctx context.Context, broker Broker, channel string, handlers map[string]Handler, onError func(error)) error {
	msgChan, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	if onError == nil {
		onError = func(error) {}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgChan:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				onError(fmt.Errorf("failed to decode message: %w", err))
				continue
			}
			handler, found := handlers[msg.Type]
			if !found {
				continue
			}
			if err := handler(ctx, msg); err != nil {
				onError(fmt.Errorf("failed to handle %s message %s: %w", msg.Type, msg.ID, err))
			}
		}
	}
}
