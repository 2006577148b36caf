package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/messaging"
	"github.com/jwalitptl/claims-api/pkg/metrics"
	"github.com/jwalitptl/claims-api/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

type OutboxProcessor struct {
	repo    repository.OutboxStore
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxStore,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, errors.New("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, errors.New("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, errors.New("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, errors.New("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "batch_size", p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessOnce publishes one batch of pending events and returns how many were published.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}

	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryDelay
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.config.RetryAttempts-1)), ctx)

	err := backoff.RetryNotify(func() error {
		return p.broker.Publish(ctx, event.EventType, msg)
	}, retries, func(err error, wait time.Duration) {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		p.logger.Warn("Retry publishing event", "event_id", event.ID.String(), "wait", wait.String(), "error", err.Error())
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error()); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}

	return nil
}
