package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/claims-api/internal/insurer"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/repository/memory"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	"github.com/jwalitptl/claims-api/internal/service/provider"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/metrics"
	"github.com/jwalitptl/claims-api/pkg/security"
)

type fixture struct {
	svc     *Service
	repo    repository.IntegrationRepository
	sandbox *insurer.Sandbox
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enc, err := security.NewAESEncryptor(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)

	repo := memory.NewIntegrationRepository()
	providers := provider.NewService(memory.NewProviderRepository(memory.SeedProviders()), time.Minute, time.Minute)
	sandbox := insurer.NewSandbox(0, insurer.Outcome{Eligible: true, Remaining: 5000})
	gateway := insurer.NewGateway(sandbox, insurer.HTTPConfig{Timeout: time.Second, InitialBackoff: time.Millisecond})
	m := metrics.New("test")

	return &fixture{
		svc:     NewService(repo, providers, gateway, enc, audit.NewService(nil), m),
		repo:    repo,
		sandbox: sandbox,
		metrics: m,
	}
}

func strPtr(s string) *string { return &s }

func TestSaveSetting_EncryptsAndMasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.SaveSetting(ctx, "jubilee-ke", &model.SaveIntegrationRequest{
		Enabled: true, APIKey: strPtr("jub_live_998877"), Environment: model.EnvironmentSandbox,
	})
	require.NoError(t, err)
	assert.Equal(t, "****8877", view.APIKey)
	assert.True(t, view.Enabled)

	stored, err := f.repo.Get(ctx, "jubilee-ke")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.APIKey)
	assert.NotContains(t, stored.APIKey, "998877")

	// nil key keeps the stored one
	view, err = f.svc.SaveSetting(ctx, "jubilee-ke", &model.SaveIntegrationRequest{Enabled: false, Environment: model.EnvironmentSandbox})
	require.NoError(t, err)
	assert.Equal(t, "****8877", view.APIKey)
	assert.False(t, view.Enabled)

	// empty key clears it
	view, err = f.svc.SaveSetting(ctx, "jubilee-ke", &model.SaveIntegrationRequest{APIKey: strPtr(""), Environment: model.EnvironmentSandbox})
	require.NoError(t, err)
	assert.Empty(t, view.APIKey)
}

func TestSaveSetting_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SaveSetting(context.Background(), "unknown-co", &model.SaveIntegrationRequest{Environment: model.EnvironmentSandbox})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.SaveSetting(context.Background(), "aar-ke", &model.SaveIntegrationRequest{Environment: "staging"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestGetSetting_DefaultsForUnconfigured(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.GetSetting(context.Background(), "aar-ke")
	require.NoError(t, err)
	assert.False(t, view.Enabled)
	assert.Equal(t, model.EnvironmentSandbox, view.Environment)

	list, err := f.svc.ListSettings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestVerifyEligibility_Sandbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sandbox.Script("MEM-X", insurer.Outcome{Eligible: false, Status: "Suspended"})

	_, err := f.svc.SaveSetting(ctx, "aar-ke", &model.SaveIntegrationRequest{Enabled: true, Environment: model.EnvironmentSandbox})
	require.NoError(t, err)

	resp, err := f.svc.VerifyEligibility(ctx, "aar-ke", &model.EligibilityRequest{MemberNumber: "MEM-1"})
	require.NoError(t, err)
	assert.True(t, resp.Eligible)

	resp, err = f.svc.VerifyEligibility(ctx, "aar-ke", &model.EligibilityRequest{MemberNumber: "MEM-X"})
	require.NoError(t, err)
	assert.False(t, resp.Eligible)
	assert.Equal(t, "Suspended", resp.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.InsurerCalls.WithLabelValues("aar-ke", "verify_patient", "success")))
}

func TestExternalCalls_Disabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyEligibility(ctx, "aar-ke", &model.EligibilityRequest{MemberNumber: "MEM-1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnavailable))
	assert.ErrorIs(t, err, insurer.ErrIntegrationDisabled)

	_, err = f.svc.SaveSetting(ctx, "aar-ke", &model.SaveIntegrationRequest{Enabled: true, Environment: model.EnvironmentLive})
	require.NoError(t, err)
	_, err = f.svc.SubmitExternalClaim(ctx, "aar-ke", &model.ExternalClaimRequest{MemberNumber: "MEM-1", PatientID: "P-1", Amount: 10})
	assert.ErrorIs(t, err, insurer.ErrNotConnected)

	_, err = f.svc.VerifyEligibility(ctx, "ghost-co", &model.EligibilityRequest{MemberNumber: "MEM-1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestExternalClaims_SandboxRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveSetting(ctx, "aar-ke", &model.SaveIntegrationRequest{Enabled: true, Environment: model.EnvironmentSandbox})
	require.NoError(t, err)

	submitted, err := f.svc.SubmitExternalClaim(ctx, "aar-ke", &model.ExternalClaimRequest{MemberNumber: "MEM-1", PatientID: "P-1", Amount: 10})
	require.NoError(t, err)

	status, err := f.svc.CheckExternalClaimStatus(ctx, "aar-ke", submitted.Reference)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusPending, status.Status)

	_, err = f.svc.CheckExternalClaimStatus(ctx, "aar-ke", "SBX-NOPE")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestExternalCalls_LiveUsesDecryptedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "live-key-4321" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(model.EligibilityResponse{Eligible: true, MemberNumber: "MEM-1", Status: "Active"})
	}))
	defer srv.Close()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveSetting(ctx, "axa-mansard", &model.SaveIntegrationRequest{
		Enabled: true, APIKey: strPtr("live-key-4321"), Environment: model.EnvironmentLive, BaseURL: srv.URL,
	})
	require.NoError(t, err)

	resp, err := f.svc.VerifyEligibility(ctx, "axa-mansard", &model.EligibilityRequest{MemberNumber: "MEM-1"})
	require.NoError(t, err)
	assert.True(t, resp.Eligible)

	_, err = f.svc.SaveSetting(ctx, "axa-mansard", &model.SaveIntegrationRequest{
		Enabled: true, APIKey: strPtr("wrong"), Environment: model.EnvironmentLive, BaseURL: srv.URL,
	})
	require.NoError(t, err)
	_, err = f.svc.VerifyEligibility(ctx, "axa-mansard", &model.EligibilityRequest{MemberNumber: "MEM-1"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}
