package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
)

// OutboxStore is the part of the outbox repository pkg/worker needs
type OutboxStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
}

// Transactor runs fn inside one database transaction
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
