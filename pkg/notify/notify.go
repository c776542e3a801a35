// Package notify delivers email to staff. Every implementation is wrapped in
// a circuit breaker so a failing provider does not stall the consumer.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

var (
	ErrNoRecipients = errors.New("to is missing")
	ErrNoSubject    = errors.New("subject is missing")
	ErrNoBody       = errors.New("message is missing")
)

// Notifier sends one message to a list of recipients
type Notifier interface {
	Send(ctx context.Context, to []string, subject, body string) error
	Name() string
}

func validate(to []string, subject, body string) error {
	switch {
	case len(to) == 0:
		return ErrNoRecipients
	case subject == "":
		return ErrNoSubject
	case body == "":
		return ErrNoBody
	}
	return nil
}

type nullNotifier struct{}

// NewNull returns a notifier that accepts everything and sends nothing
func NewNull() Notifier {
	return nullNotifier{}
}

func (nullNotifier) Send(_ context.Context, to []string, subject, body string) error {
	return validate(to, subject, body)
}

func (nullNotifier) Name() string {
	return "null"
}

type breakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker opens after five consecutive failures and probes again after timeout
func WithBreaker(next Notifier, timeout time.Duration) Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &breakerNotifier{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "notify-" + next.Name(),
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Bad input is the caller's fault, not the provider's
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoRecipients) || errors.Is(err, ErrNoSubject) || errors.Is(err, ErrNoBody)
			},
		}),
	}
}

func (n *breakerNotifier) Send(ctx context.Context, to []string, subject, body string) error {
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.next.Send(ctx, to, subject, body)
	})
	if err != nil {
		return fmt.Errorf("%s notifier: %w", n.next.Name(), err)
	}
	return nil
}

func (n *breakerNotifier) Name() string {
	return n.next.Name()
}

// State exposes the breaker state
func (n *breakerNotifier) State() gobreaker.State {
	return n.cb.State()
}
