package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
)

// OutboxStore is the slice of the outbox repository the worker needs.
type OutboxStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
