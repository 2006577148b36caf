package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type outboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() repository.OutboxRepository {
	return &outboxRepository{}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	stored := *event
	r.events = append(r.events, &stored)
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*model.OutboxEvent
	for _, e := range r.events {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		copied := *e
		pending = append(pending, &copied)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.RetryCount++
	})
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			fn(e)
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *outboxRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var removed int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed, nil
}
