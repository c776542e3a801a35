package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/pkg/logger"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInProcPublishSubscribe(t *testing.T) {
	b := NewInProcBroker()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "a", "b")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "a", []byte("one")))
	require.NoError(t, b.Publish(ctx, "c", []byte("ignored")))
	require.NoError(t, b.Publish(ctx, "b", []byte("two")))

	assert.Equal(t, Message{Channel: "a", Payload: []byte("one")}, receive(t, ch))
	assert.Equal(t, Message{Channel: "b", Payload: []byte("two")}, receive(t, ch))
}

func TestInProcUnsubscribeOnCancel(t *testing.T) {
	b := NewInProcBroker()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "a")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestInProcClose(t *testing.T) {
	b := NewInProcBroker()
	ch, err := b.Subscribe(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, b.Publish(context.Background(), "a", nil), ErrBrokerClosed)
	_, err = b.Subscribe(context.Background(), "a")
	assert.ErrorIs(t, err, ErrBrokerClosed)
}

func TestAdapterDispatchesJSON(t *testing.T) {
	b := NewInProcBroker()
	a := NewBrokerAdapter(b, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{}, 2)
	handler := func(_ context.Context, msg Message) error {
		mu.Lock()
		got = append(got, string(msg.Payload))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	require.NoError(t, a.Subscribe(ctx, handler, "topic"))

	require.NoError(t, a.PublishJSON(ctx, "topic", map[string]int{"n": 1}))
	require.NoError(t, a.PublishJSON(ctx, "topic", map[string]int{"n": 2}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}

	require.NoError(t, a.Close())
	a.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, got)
}
