package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/messaging"
	"github.com/jwalitptl/referral-api/pkg/metrics"
)

var testConfig = OutboxProcessorConfig{
	BatchSize:     10,
	PollInterval:  time.Second,
	RetryAttempts: 2,
	RetryDelay:    time.Minute,
}

func newProcessor(t *testing.T, broker messaging.Broker) (*OutboxProcessor, *repository.Store) {
	t.Helper()
	store := memory.New().Store()
	p, err := NewOutboxProcessor(store.Outbox, store.Tx, broker, testConfig, logger.Nop(), metrics.Noop())
	require.NoError(t, err)
	return p, store
}

func addEvent(t *testing.T, store *repository.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	now := time.Now().UTC()
	e := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{"referralId":"x"}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Outbox.Create(context.Background(), e))
	return e
}

func pending(t *testing.T, store *repository.Store) []*model.OutboxEvent {
	t.Helper()
	events, err := store.Outbox.GetPendingEvents(context.Background(), 100)
	require.NoError(t, err)
	return events
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig.Validate())

	bad := testConfig
	bad.BatchSize = 0
	assert.Error(t, bad.Validate())

	bad = testConfig
	bad.RetryDelay = 0
	assert.Error(t, bad.Validate())

	_, err := NewOutboxProcessor(nil, nil, nil, OutboxProcessorConfig{}, logger.Nop(), metrics.Noop())
	assert.Error(t, err)
}

func TestProcessBatchPublishesEnvelope(t *testing.T) {
	broker := messaging.NewInProcBroker()
	defer broker.Close()
	p, store := newProcessor(t, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := broker.Subscribe(ctx, model.EventReferralBooked)
	require.NoError(t, err)

	e := addEvent(t, store, model.EventReferralBooked)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, pending(t, store))

	select {
	case msg := <-msgs:
		assert.Equal(t, model.EventReferralBooked, msg.Channel)
		var env model.Envelope
		require.NoError(t, json.Unmarshal(msg.Payload, &env))
		assert.Equal(t, e.ID, env.ID)
		assert.Equal(t, model.EventReferralBooked, env.Type)
		assert.JSONEq(t, `{"referralId":"x"}`, string(env.Payload))
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	broker := messaging.NewInProcBroker()
	defer broker.Close()
	p, _ := newProcessor(t, broker)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	broker := messaging.NewInProcBroker()
	require.NoError(t, broker.Close())
	p, store := newProcessor(t, broker)
	ctx := context.Background()

	e := addEvent(t, store, model.EventRSVPUpdated)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// retry is scheduled a minute out, so nothing is due yet
	assert.Empty(t, pending(t, store))

	// make the retry due now; the retry count is kept
	require.NoError(t, store.Outbox.UpdateStatus(ctx, e.ID, model.OutboxStatusPending, nil, nil))

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pending(t, store))
}

func TestBackoffDoubles(t *testing.T) {
	p := &OutboxProcessor{config: testConfig}
	assert.Equal(t, time.Minute, p.backoff(0))
	assert.Equal(t, 4*time.Minute, p.backoff(2))
	assert.Equal(t, p.backoff(10), p.backoff(50))
}
