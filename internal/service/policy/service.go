package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/metrics"
)

const expiryLayout = "2006-01-02"

// Verification messages
const (
	MsgPolicyNotFound = "Policy not found"
	MsgVerified       = "Policy verified"
)

type PolicyServicer interface {
	GetPolicy(ctx context.Context, policyNumber string) (*model.PolicyView, error)
	ListPatientPolicies(ctx context.Context, patientID string) ([]*model.PolicyView, error)
	Verify(ctx context.Context, policyNumber string, amount float64) (*model.VerificationResult, error)
}

// ProviderLookup resolves a company name for a policy.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id string) (*model.InsuranceProvider, error)
}

type Service struct {
	policies  repository.PolicyRepository
	providers ProviderLookup
	auditor   *audit.Service
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(policies repository.PolicyRepository, providers ProviderLookup, auditor *audit.Service, m *metrics.Metrics) *Service {
	return &Service{
		policies:  policies,
		providers: providers,
		auditor:   auditor,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) GetPolicy(ctx context.Context, policyNumber string) (*model.PolicyView, error) {
	p, err := s.policies.FindByNumber(ctx, policyNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("policy", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.view(ctx, p), nil
}

func (s *Service) ListPatientPolicies(ctx context.Context, patientID string) ([]*model.PolicyView, error) {
	policies, err := s.policies.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	views := make([]*model.PolicyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, s.view(ctx, p))
	}
	return views, nil
}

// Verify decides whether amount can be claimed under the policy. Checks run in
// order: existence, status, expiry, remaining coverage. A failed check is a
// normal result with Valid=false; only storage failures return an error.
func (s *Service) Verify(ctx context.Context, policyNumber string, amount float64) (*model.VerificationResult, error) {
	if policyNumber == "" {
		return nil, apperrors.BadRequest("policy number is required", nil)
	}
	if !model.ValidAmount(amount) {
		return nil, apperrors.BadRequest("amount must be a number greater than zero", nil)
	}

	result, err := s.verify(ctx, policyNumber, amount)
	if err != nil {
		s.metrics.Verifications.WithLabelValues("error").Inc()
		return nil, apperrors.Internal(err)
	}

	outcome := "valid"
	auditOutcome := audit.OutcomeSuccess
	if !result.Valid {
		outcome = "invalid"
		auditOutcome = audit.OutcomeFailure
	}
	s.metrics.Verifications.WithLabelValues(outcome).Inc()
	s.auditor.Log(ctx, model.AuditActionVerify, model.AuditEntityPolicy, policyNumber, auditOutcome, map[string]interface{}{
		"amount":  amount,
		"message": result.Message,
	})

	return result, nil
}

func (s *Service) verify(ctx context.Context, policyNumber string, amount float64) (*model.VerificationResult, error) {
	result := &model.VerificationResult{PolicyNumber: policyNumber}

	p, err := s.policies.FindByNumber(ctx, policyNumber)
	if errors.Is(err, repository.ErrNotFound) {
		result.Message = MsgPolicyNotFound
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find policy: %w", err)
	}
	result.CompanyID = p.CompanyID

	if p.Status != model.PolicyStatusActive {
		result.Message = fmt.Sprintf("Policy is %s", p.Status)
		return result, nil
	}

	if p.ExpiryDate.Before(s.now()) {
		result.Message = fmt.Sprintf("Policy expired on %s", p.ExpiryDate.Format(expiryLayout))
		return result, nil
	}

	remaining := p.Remaining()
	if amount > remaining {
		result.Message = fmt.Sprintf("Insufficient coverage. Remaining: %.2f", remaining)
		result.Remaining = remaining
		return result, nil
	}

	result.Valid = true
	result.Message = MsgVerified
	result.Remaining = remaining
	result.CoverageLimit = p.CoverageLimit
	result.CompanyName = s.companyName(ctx, p.CompanyID)
	return result, nil
}

// companyName falls back to the id; a policy may name a company that is not registered.
func (s *Service) companyName(ctx context.Context, companyID string) string {
	provider, err := s.providers.GetProvider(ctx, companyID)
	if err != nil {
		return companyID
	}
	return provider.Name
}

func (s *Service) view(ctx context.Context, p *model.PatientPolicy) *model.PolicyView {
	return &model.PolicyView{
		PatientPolicy: p,
		Remaining:     p.Remaining(),
		CompanyName:   s.companyName(ctx, p.CompanyID),
	}
}
