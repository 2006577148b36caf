package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/email"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/metrics"
)

const maxPageSize = 100

type ClaimServicer interface {
	SubmitClaim(ctx context.Context, req *model.SubmitClaimRequest) (*model.Claim, error)
	GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error)
	ListClaims(ctx context.Context, filters *model.ClaimFilters) ([]*model.Claim, int, error)
	DecideClaim(ctx context.Context, id uuid.UUID, req *model.DecideClaimRequest) (*model.Claim, error)
	GetClaimsFinancialSummary(ctx context.Context) (*model.ClaimsFinancialSummary, error)
}

type Service struct {
	claims  repository.ClaimRepository
	outbox  repository.OutboxRepository
	mailer  email.Service
	auditor *audit.Service
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(
	claims repository.ClaimRepository,
	outbox repository.OutboxRepository,
	mailer email.Service,
	auditor *audit.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		claims:  claims,
		outbox:  outbox,
		mailer:  mailer,
		auditor: auditor,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for claim dates and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SubmitClaim appends a Pending claim dated today. The policy number is not
// checked against the policy store and identical submissions are not merged.
func (s *Service) SubmitClaim(ctx context.Context, req *model.SubmitClaimRequest) (*model.Claim, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	claim := &model.Claim{
		ID:         uuid.New(),
		PatientID:  req.PatientID,
		CompanyID:  req.CompanyID,
		Amount:     req.Amount,
		Status:     model.ClaimStatusPending,
		ClaimDate:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Timestamps: model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if req.PolicyNumber != "" {
		claim.PolicyNumber = &req.PolicyNumber
	}
	if req.Notes != "" {
		claim.Notes = &req.Notes
	}

	if err := s.claims.Append(ctx, claim); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to submit claim: %w", err))
	}

	s.metrics.ClaimsSubmitted.Inc()
	s.publish(ctx, model.EventClaimSubmitted, claim)
	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityClaim, claim.ID.String(), audit.OutcomeSuccess, map[string]interface{}{
		"patient_id": claim.PatientID,
		"company_id": claim.CompanyID,
		"amount":     claim.Amount,
	})

	return claim, nil
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	claim, err := s.claims.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("claim", err)
		}
		return nil, apperrors.Internal(err)
	}
	return claim, nil
}

func (s *Service) ListClaims(ctx context.Context, filters *model.ClaimFilters) ([]*model.Claim, int, error) {
	if filters == nil {
		filters = &model.ClaimFilters{}
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, apperrors.BadRequest(fmt.Sprintf("unknown claim status %q", filters.Status), nil)
	}
	filters.Normalize(maxPageSize)

	claims, total, err := s.claims.List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	if claims == nil {
		claims = []*model.Claim{}
	}
	return claims, total, nil
}

// DecideClaim moves a Pending claim to Approved or Rejected.
func (s *Service) DecideClaim(ctx context.Context, id uuid.UUID, req *model.DecideClaimRequest) (*model.Claim, error) {
	if req.Status != model.ClaimStatusApproved && req.Status != model.ClaimStatusRejected {
		return nil, apperrors.BadRequest("status must be Approved or Rejected", nil)
	}
	if req.ApprovedAmount != nil && req.Status != model.ClaimStatusApproved {
		return nil, apperrors.BadRequest("approved_amount is only valid for approved claims", nil)
	}

	claim, err := s.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.Status != model.ClaimStatusPending {
		return nil, apperrors.Conflict(fmt.Sprintf("claim is already %s", claim.Status), nil)
	}
	if req.ApprovedAmount != nil && (math.IsNaN(*req.ApprovedAmount) || *req.ApprovedAmount < 0 || *req.ApprovedAmount > claim.Amount) {
		return nil, apperrors.BadRequest("approved_amount must be between 0 and the claimed amount", nil)
	}

	claim.Status = req.Status
	claim.ApprovedAmount = req.ApprovedAmount
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		claim.Notes = &notes
	}
	claim.UpdatedAt = s.now().UTC()

	if err := s.claims.UpdateStatus(ctx, claim); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("claim", err)
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.Conflict("claim was decided concurrently", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.metrics.ClaimsDecided.WithLabelValues(string(claim.Status)).Inc()
	s.publish(ctx, model.EventClaimDecided, claim)
	s.auditor.Log(ctx, model.AuditActionDecide, model.AuditEntityClaim, claim.ID.String(), audit.OutcomeSuccess, map[string]interface{}{
		"status":          claim.Status,
		"approved_amount": claim.ApprovedAmount,
	})
	if err := s.mailer.SendClaimDecision(ctx, claim); err != nil {
		s.logger.Error(err, "Failed to send claim decision notice", "claim_id", claim.ID.String())
	}

	return claim, nil
}

// GetClaimsFinancialSummary aggregates the claims book per status.
func (s *Service) GetClaimsFinancialSummary(ctx context.Context) (*model.ClaimsFinancialSummary, error) {
	summary := &model.ClaimsFinancialSummary{}

	for _, status := range []model.ClaimStatus{model.ClaimStatusPending, model.ClaimStatusApproved, model.ClaimStatusRejected} {
		claims, err := s.claims.ListByStatus(ctx, status)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		for _, c := range claims {
			summary.TotalClaims++
			summary.TotalClaimed += c.Amount
			switch status {
			case model.ClaimStatusPending:
				summary.PendingCount++
				summary.TotalPending += c.Amount
			case model.ClaimStatusApproved:
				summary.ApprovedCount++
				summary.TotalApproved += c.SettledAmount()
			case model.ClaimStatusRejected:
				summary.RejectedCount++
				summary.TotalRejected += c.Amount
			}
		}
	}

	return summary, nil
}

// publish writes an outbox event. The claim is already stored, so a failure
// here is logged rather than returned.
func (s *Service) publish(ctx context.Context, eventType string, claim *model.Claim) {
	payload, err := json.Marshal(claim)
	if err != nil {
		s.logger.Error(err, "Failed to marshal claim for event", "claim_id", claim.ID.String())
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		s.logger.Error(err, "Failed to create outbox event", "claim_id", claim.ID.String(), "event_type", eventType)
	}
}

func validateSubmit(req *model.SubmitClaimRequest) error {
	if req == nil {
		return apperrors.BadRequest("claim is required", nil)
	}
	if strings.TrimSpace(req.PatientID) == "" {
		return apperrors.BadRequest("patient_id is required", nil)
	}
	if strings.TrimSpace(req.CompanyID) == "" {
		return apperrors.BadRequest("company_id is required", nil)
	}
	if !model.ValidAmount(req.Amount) {
		return apperrors.BadRequest("amount must be a number greater than zero", nil)
	}
	return nil
}
