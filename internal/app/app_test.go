package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jwalitptl/claims-api/internal/config"
	"github.com/jwalitptl/claims-api/internal/email"
	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/security"
)

const password = "s3cret-pass"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t      *testing.T
	app    *App
	audit  *observer.ObservedLogs
	tokens map[string]string
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := security.NewBcryptHasher(4).Hash(password)
	require.NoError(t, err)

	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		Database: config.DatabaseConfig{Driver: "memory"},
		Outbox:   config.OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 1, RetryDelay: time.Millisecond, RetentionDays: 7, CleanupInterval: time.Hour},
		JWT:      config.JWTConfig{Secret: "test-secret", Issuer: "claims-api", ExpiryHours: 1},
		Auth: config.AuthConfig{Operators: []config.OperatorConfig{
			{Username: "desk", PasswordHash: hash, Role: model.RoleBilling},
			{Username: "lead", PasswordHash: hash, Role: model.RoleSupervisor},
			{Username: "root", PasswordHash: hash, Role: model.RoleAdmin},
		}},
		Cache:    config.CacheConfig{TTL: time.Minute, CleanupInterval: time.Minute},
		Insurer:  config.InsurerConfig{Timeout: time.Second, SandboxEligible: true, SandboxCoverage: 50000},
		Security: config.SecurityConfig{EncryptionKey: strings.Repeat("ab", 32), BcryptCost: 4},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.InfoLevel)
	a, err := New(testConfig(t), logger.Nop(), WithAuditLogger(zap.New(core)), WithMailer(email.NewNoopService()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	h := &harness{t: t, app: a, audit: logs, tokens: map[string]string{}}
	for _, user := range []string{"desk", "lead", "root"} {
		w := h.do(http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: user, Password: password})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var tokens model.TokenResponse
		h.decode(w, &tokens)
		h.tokens[user] = tokens.AccessToken
	}
	return h
}

func (h *harness) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.tokens[user])
	}
	w := httptest.NewRecorder()
	h.app.Router.Engine().ServeHTTP(w, req)
	return w
}

func (h *harness) decode(w *httptest.ResponseRecorder, out interface{}) {
	h.t.Helper()
	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(h.t, env.Success, w.Body.String())
	require.NoError(h.t, json.Unmarshal(env.Data, out))
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/health/live", "", nil).Code)

	w := h.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"broker":"UP"`)

	w = h.do(http.MethodGet, "/api/v1/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "claims_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/providers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: "desk", Password: "not-the-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "desk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password is required")
}

func TestProvidersAndPolicies(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/providers?country=ke", "desk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var providers []model.InsuranceProvider
	h.decode(w, &providers)
	assert.Len(t, providers, 3)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/providers/nope", "desk", nil).Code)

	w = h.do(http.MethodPost, "/api/v1/policies/verify", "desk", model.VerifyPolicyRequest{PolicyNumber: "AXA-2024-001", Amount: 1000})
	require.Equal(t, http.StatusOK, w.Code)
	var result model.VerificationResult
	h.decode(w, &result)
	assert.True(t, result.Valid)

	w = h.do(http.MethodPost, "/api/v1/policies/verify", "desk", model.VerifyPolicyRequest{PolicyNumber: "NHIS-2023-778", Amount: 10})
	require.Equal(t, http.StatusOK, w.Code)
	h.decode(w, &result)
	assert.False(t, result.Valid)

	w = h.do(http.MethodGet, "/api/v1/patients/P-1001/policies", "desk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []model.PolicyView
	h.decode(w, &views)
	assert.Len(t, views, 2)

	reads := h.audit.FilterField(zap.String("action", model.AuditActionRead)).All()
	require.Len(t, reads, 1)
	assert.Equal(t, "desk", reads[0].ContextMap()["actor"])
	assert.Equal(t, "P-1001", reads[0].ContextMap()["entity_id"])
}

func TestClaimLifecycle(t *testing.T) {
	h := newHarness(t)

	submit := model.SubmitClaimRequest{PatientID: "P-1001", CompanyID: "axa-mansard", PolicyNumber: "AXA-2024-001", Amount: 1500}
	w := h.do(http.MethodPost, "/api/v1/claims", "desk", submit)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim model.Claim
	h.decode(w, &claim)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)
	assert.Equal(t, "/api/v1/claims/"+claim.ID.String(), w.Header().Get("Location"))

	w = h.do(http.MethodPost, "/api/v1/claims", "desk", submit)
	require.Equal(t, http.StatusCreated, w.Code)
	var second model.Claim
	h.decode(w, &second)
	assert.NotEqual(t, claim.ID, second.ID)

	path := "/api/v1/claims/" + claim.ID.String()
	decision := model.DecideClaimRequest{Status: model.ClaimStatusApproved}

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, path+"/decision", "desk", decision).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPut, path+"/decision", "lead", model.DecideClaimRequest{Status: model.ClaimStatusPending}).Code)

	w = h.do(http.MethodPut, path+"/decision", "lead", decision)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPut, path+"/decision", "lead", decision).Code)

	w = h.do(http.MethodGet, "/api/v1/claims/summary", "desk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.ClaimsFinancialSummary
	h.decode(w, &summary)
	assert.Equal(t, 2, summary.TotalClaims)
	assert.Equal(t, 1, summary.ApprovedCount)
	assert.Equal(t, 1500.0, summary.TotalApproved)

	w = h.do(http.MethodGet, "/api/v1/claims?status=Pending", "desk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), second.ID.String())
	assert.NotContains(t, w.Body.String(), claim.ID.String())

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/v1/claims/not-a-uuid", "desk", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/claims?page=4611686018427387904", "desk", nil).Code)

	processed, err := h.app.Outbox.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	// retention is measured in days, so nothing just processed is pruned
	require.NotNil(t, h.app.OutboxCleanup)
	pruned, err := h.app.OutboxCleanup.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestIntegrations(t *testing.T) {
	h := newHarness(t)
	key := "aar-sandbox-key-7788"
	save := model.SaveIntegrationRequest{Enabled: true, APIKey: &key, Environment: model.EnvironmentSandbox}

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/api/v1/integrations/aar-ke", "desk", save).Code)

	w := h.do(http.MethodPut, "/api/v1/integrations/aar-ke", "root", save)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "****7788")
	assert.NotContains(t, w.Body.String(), key)

	w = h.do(http.MethodPost, "/api/v1/integrations/aar-ke/eligibility", "desk", model.EligibilityRequest{MemberNumber: "M-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var eligibility model.EligibilityResponse
	h.decode(w, &eligibility)
	assert.True(t, eligibility.Eligible)
	assert.Equal(t, 50000.0, eligibility.CoverageLimit)
	assert.Equal(t, 50000.0, eligibility.Remaining)
	assert.True(t, eligibility.ExpiryDate.After(time.Now()))

	w = h.do(http.MethodPost, "/api/v1/integrations/aar-ke/claims", "desk", model.ExternalClaimRequest{MemberNumber: "M-1", PatientID: "P-1", Amount: 200})
	require.Equal(t, http.StatusOK, w.Code)
	var external model.ExternalClaimStatus
	h.decode(w, &external)

	w = h.do(http.MethodGet, "/api/v1/integrations/aar-ke/claims/"+external.Reference, "desk", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/api/v1/integrations/sha-ke/eligibility", "desk", model.EligibilityRequest{MemberNumber: "M-1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "integration is disabled")
}

func TestSandboxFallback(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	eligible := sandboxFallback(config.InsurerConfig{SandboxEligible: true, SandboxCoverage: 250000}, now)
	assert.True(t, eligible.Eligible)
	assert.Equal(t, 250000.0, eligible.CoverageLimit)
	assert.Equal(t, 250000.0, eligible.Remaining)
	assert.Equal(t, now.AddDate(1, 0, 0), eligible.ExpiryDate)
	assert.Empty(t, eligible.ClaimStatus)

	denied := sandboxFallback(config.InsurerConfig{SandboxApprovals: true}, now)
	assert.False(t, denied.Eligible)
	assert.Zero(t, denied.Remaining)
	assert.NotEmpty(t, denied.Message)
	assert.Equal(t, model.ClaimStatusApproved, denied.ClaimStatus)
}

func TestNew_RejectsMalformedOperatorHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Operators[1].PasswordHash = "plaintext"

	_, err := New(cfg, logger.Nop(), WithAuditLogger(zap.NewNop()), WithMailer(email.NewNoopService()))
	require.Error(t, err)
	assert.ErrorIs(t, err, security.ErrMalformedHash)
	assert.Contains(t, err.Error(), `"lead"`)
}
