package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

// outboxRow scans the payload through []byte so the driver buffer is copied
type outboxRow struct {
	model.OutboxEvent
	PayloadRaw []byte `db:"payload_raw"`
}

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	_, err := r.exec(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.EventType, string(event.Payload), event.Status,
		event.RetryCount, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents locks the rows it returns when called inside a transaction
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var rows []outboxRow
	err := r.selectAll(ctx, &rows, `
		SELECT id, event_type, payload AS payload_raw, status, error_message, retry_count, retry_at,
			created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status IN ('pending', 'retry')
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}

	events := make([]*model.OutboxEvent, 0, len(rows))
	for i := range rows {
		e := rows[i].OutboxEvent
		e.Payload = rows[i].PayloadRaw
		events = append(events, &e)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	n, err := r.exec(ctx, `
		UPDATE outbox_events
		SET status = ?,
			error_message = ?,
			retry_at = ?,
			retry_count = CASE WHEN ?::text = 'retry' THEN retry_count + 1 ELSE retry_count END,
			processed_at = CASE WHEN ?::text = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = ?`,
		status, errorMessage, retryAt, status, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.exec(ctx, `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return n, nil
}
