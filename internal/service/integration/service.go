package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/claims-api/internal/insurer"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/metrics"
	"github.com/jwalitptl/claims-api/pkg/security"
)

type IntegrationServicer interface {
	ListSettings(ctx context.Context) ([]*model.IntegrationSettingView, error)
	GetSetting(ctx context.Context, provider string) (*model.IntegrationSettingView, error)
	SaveSetting(ctx context.Context, provider string, req *model.SaveIntegrationRequest) (*model.IntegrationSettingView, error)
	VerifyEligibility(ctx context.Context, provider string, req *model.EligibilityRequest) (*model.EligibilityResponse, error)
	SubmitExternalClaim(ctx context.Context, provider string, req *model.ExternalClaimRequest) (*model.ExternalClaimStatus, error)
	CheckExternalClaimStatus(ctx context.Context, provider, reference string) (*model.ExternalClaimStatus, error)
}

// ProviderLookup confirms a provider exists before settings are touched.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id string) (*model.InsuranceProvider, error)
}

type Service struct {
	repo      repository.IntegrationRepository
	providers ProviderLookup
	gateway   *insurer.Gateway
	encryptor security.Encryptor
	auditor   *audit.Service
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	repo repository.IntegrationRepository,
	providers ProviderLookup,
	gateway *insurer.Gateway,
	encryptor security.Encryptor,
	auditor *audit.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		gateway:   gateway,
		encryptor: encryptor,
		auditor:   auditor,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Service) ListSettings(ctx context.Context) ([]*model.IntegrationSettingView, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	views := make([]*model.IntegrationSettingView, 0, len(settings))
	for _, setting := range settings {
		view, err := s.view(setting)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetSetting returns a disabled sandbox setting for providers never configured.
func (s *Service) GetSetting(ctx context.Context, provider string) (*model.IntegrationSettingView, error) {
	if _, err := s.providers.GetProvider(ctx, provider); err != nil {
		return nil, err
	}
	setting, err := s.load(ctx, provider)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return &model.IntegrationSettingView{Provider: provider, Environment: model.EnvironmentSandbox}, nil
	}
	return s.view(setting)
}

// SaveSetting upserts a provider's setting. A nil APIKey keeps the stored key;
// an empty one clears it.
func (s *Service) SaveSetting(ctx context.Context, provider string, req *model.SaveIntegrationRequest) (*model.IntegrationSettingView, error) {
	if _, err := s.providers.GetProvider(ctx, provider); err != nil {
		return nil, err
	}
	if req.Environment != model.EnvironmentSandbox && req.Environment != model.EnvironmentLive {
		return nil, apperrors.BadRequest("environment must be sandbox or live", nil)
	}

	existing, err := s.repo.Get(ctx, provider)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	setting := &model.IntegrationSetting{
		Provider:    provider,
		Enabled:     req.Enabled,
		Environment: req.Environment,
		BaseURL:     req.BaseURL,
		UpdatedAt:   s.now().UTC(),
	}
	switch {
	case req.APIKey != nil:
		sealed, err := s.encryptor.EncryptString(*req.APIKey)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		setting.APIKey = sealed
	case existing != nil:
		setting.APIKey = existing.APIKey
	}

	if err := s.repo.Save(ctx, setting); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, model.AuditEntityIntegration, provider, audit.OutcomeSuccess, map[string]interface{}{
		"enabled":     setting.Enabled,
		"environment": setting.Environment,
		"key_changed": req.APIKey != nil,
	})
	return s.view(setting)
}

func (s *Service) VerifyEligibility(ctx context.Context, provider string, req *model.EligibilityRequest) (*model.EligibilityResponse, error) {
	var resp *model.EligibilityResponse
	err := s.call(ctx, provider, "verify_patient", func(c insurer.Client) (err error) {
		resp, err = c.VerifyPatient(ctx, req)
		return err
	})
	return resp, err
}

func (s *Service) SubmitExternalClaim(ctx context.Context, provider string, req *model.ExternalClaimRequest) (*model.ExternalClaimStatus, error) {
	var resp *model.ExternalClaimStatus
	err := s.call(ctx, provider, "submit_claim", func(c insurer.Client) (err error) {
		resp, err = c.SubmitClaim(ctx, req)
		return err
	})
	return resp, err
}

func (s *Service) CheckExternalClaimStatus(ctx context.Context, provider, reference string) (*model.ExternalClaimStatus, error) {
	var resp *model.ExternalClaimStatus
	err := s.call(ctx, provider, "check_claim_status", func(c insurer.Client) (err error) {
		resp, err = c.CheckClaimStatus(ctx, reference)
		return err
	})
	return resp, err
}

// call resolves the provider's client and runs fn with metrics and audit.
func (s *Service) call(ctx context.Context, provider, operation string, fn func(insurer.Client) error) error {
	if _, err := s.providers.GetProvider(ctx, provider); err != nil {
		return err
	}
	setting, err := s.load(ctx, provider)
	if err != nil {
		return err
	}
	if setting != nil {
		if setting.APIKey, err = s.encryptor.DecryptString(setting.APIKey); err != nil {
			return apperrors.Internal(fmt.Errorf("failed to decrypt api key for %s: %w", provider, err))
		}
	}

	client, err := s.gateway.Client(setting)
	if err == nil {
		timer := prometheus.NewTimer(s.metrics.InsurerLatency.WithLabelValues(operation))
		err = fn(client)
		timer.ObserveDuration()
	}

	status := "success"
	outcome := audit.OutcomeSuccess
	if err != nil {
		status = "error"
		outcome = audit.OutcomeFailure
	}
	s.metrics.InsurerCalls.WithLabelValues(provider, operation, status).Inc()
	s.auditor.Log(ctx, model.AuditActionExternal, model.AuditEntityIntegration, provider, outcome, map[string]interface{}{
		"operation": operation,
	})

	if err != nil {
		return mapInsurerError(err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, provider string) (*model.IntegrationSetting, error) {
	setting, err := s.repo.Get(ctx, provider)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return setting, nil
}

func (s *Service) view(setting *model.IntegrationSetting) (*model.IntegrationSettingView, error) {
	key, err := s.encryptor.DecryptString(setting.APIKey)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to decrypt api key for %s: %w", setting.Provider, err))
	}
	return &model.IntegrationSettingView{
		Provider:    setting.Provider,
		Enabled:     setting.Enabled,
		APIKey:      security.Mask(key),
		Environment: setting.Environment,
		BaseURL:     setting.BaseURL,
		UpdatedAt:   setting.UpdatedAt,
	}, nil
}

func mapInsurerError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var apiErr *insurer.APIError
	switch {
	case errors.Is(err, insurer.ErrIntegrationDisabled):
		return apperrors.Unavailable("integration is disabled", err)
	case errors.Is(err, insurer.ErrNotConnected):
		return apperrors.Unavailable("live environment not connected", err)
	case errors.Is(err, insurer.ErrMemberNotFound):
		return apperrors.NotFound("member", err)
	case errors.Is(err, insurer.ErrClaimNotFound):
		return apperrors.NotFound("claim reference", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.Unavailable("insurer temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Unavailable("insurer timed out", err)
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && !apiErr.Temporary():
		return apperrors.BadRequest(apiErr.Message, err)
	}
	return apperrors.Unavailable("insurer request failed", err)
}
