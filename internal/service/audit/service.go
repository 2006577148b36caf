package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jwalitptl/claims-api/internal/model"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

// WithActor records the authenticated operator on ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// WithRequestID records the request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ActorFrom returns the operator stored on ctx, or "system".
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Service writes the audit trail as structured JSON lines.
type Service struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, now: time.Now}
}

// NewLogger builds the audit sink. An empty path writes to stdout.
func NewLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "created_at"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if path != "" {
		cfg.OutputPaths = []string{path}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logger: %w", err)
	}
	return logger.Named("audit"), nil
}

// Log records one entry. Audit failures never fail the caller.
func (s *Service) Log(ctx context.Context, action, entityType, entityID, outcome string, metadata map[string]interface{}) {
	entry := model.AuditEntry{
		Actor:      ActorFrom(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    outcome,
		RequestID:  RequestIDFrom(ctx),
		Metadata:   metadata,
		CreatedAt:  s.now(),
	}
	s.write(entry)
}

func (s *Service) write(entry model.AuditEntry) {
	fields := []zap.Field{
		zap.String("actor", entry.Actor),
		zap.String("action", entry.Action),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID),
		zap.String("outcome", entry.Outcome),
		zap.Time("at", entry.CreatedAt),
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("request_id", entry.RequestID))
	}
	if len(entry.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", entry.Metadata))
	}
	s.logger.Info("audit", fields...)
}

// Sync flushes buffered entries.
func (s *Service) Sync() error {
	return s.logger.Sync()
}
