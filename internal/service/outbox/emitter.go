package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

// Emitter records domain events. Call Emit with the context of the
// transaction that makes the state change so both commit together.
type Emitter struct {
	repo repository.OutboxRepository
	now  func() time.Time
}

func NewEmitter(repo repository.OutboxRepository) *Emitter {
	return &Emitter{repo: repo, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := e.now().UTC()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Cleanup deletes processed events older than retention
func (e *Emitter) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := e.repo.DeleteProcessedBefore(ctx, e.now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up outbox: %w", err)
	}
	return n, nil
}
