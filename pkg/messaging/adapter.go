package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwalitptl/referral-api/pkg/logger"
)

// BrokerAdapter adds JSON encoding and handler dispatch on top of a Broker
type BrokerAdapter struct {
	broker Broker
	logger *logger.Logger
	wg     sync.WaitGroup
}

func NewBrokerAdapter(broker Broker, log *logger.Logger) *BrokerAdapter {
	if log == nil {
		log = logger.Nop()
	}
	return &BrokerAdapter{broker: broker, logger: log}
}

// PublishJSON encodes v and publishes it on topic
func (a *BrokerAdapter) PublishJSON(ctx context.Context, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return a.broker.Publish(ctx, topic, payload)
}

// Subscribe runs handler for every message on topics until ctx is done.
// Handler errors are logged and do not stop consumption.
func (a *BrokerAdapter) Subscribe(ctx context.Context, handler Handler, topics ...string) error {
	msgChan, err := a.broker.Subscribe(ctx, topics...)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for msg := range msgChan {
			if err := handler(ctx, msg); err != nil {
				a.logger.Error(err, "Failed to handle message", "channel", msg.Channel)
			}
		}
	}()

	return nil
}

// Wait blocks until every subscription started by Subscribe has drained
func (a *BrokerAdapter) Wait() {
	a.wg.Wait()
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}
