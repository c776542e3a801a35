package messaging

import (
	"context"
	"errors"
)

var ErrBrokerClosed = errors.New("broker closed")

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers messages from the channels until ctx is done
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	Close() error
}

// Message is one delivery received from a channel
type Message struct {
	Channel string
	Payload []byte
}

// Handler processes a single message
type Handler func(ctx context.Context, msg Message) error
