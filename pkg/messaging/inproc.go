package messaging

import (
	"context"
	"sync"
)

const inProcBuffer = 100

// InProcBroker fans messages out to subscribers of the same process. It backs
// the memory database driver and tests.
type InProcBroker struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
}

func NewInProcBroker() *InProcBroker {
	return &InProcBroker{subs: make(map[string][]chan Message)}
}

func (b *InProcBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Slow subscribers lose messages, matching pub/sub delivery
	msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *InProcBroker) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	ch := make(chan Message, inProcBuffer)
	for _, name := range channels {
		b.subs[name] = append(b.subs[name], ch)
	}

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch, channels)
	}()
	return ch, nil
}

func (b *InProcBroker) unsubscribe(ch chan Message, channels []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range channels {
		subs := b.subs[name]
		for i, c := range subs {
			if c == ch {
				b.subs[name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	if !b.closed {
		close(ch)
	}
}

// Close stops publishing and closes every subscription
func (b *InProcBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	seen := make(map[chan Message]bool)
	for _, subs := range b.subs {
		for _, ch := range subs {
			if !seen[ch] {
				seen[ch] = true
				close(ch)
			}
		}
	}
	b.subs = make(map[string][]chan Message)
	return nil
}
