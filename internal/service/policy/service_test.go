package policy

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/repository/memory"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	"github.com/jwalitptl/claims-api/internal/service/provider"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/metrics"
)

var fixedNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	policies repository.PolicyRepository
	metrics  *metrics.Metrics
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	policies := memory.NewPolicyRepository(memory.SeedPolicies())
	providers := provider.NewService(memory.NewProviderRepository(memory.SeedProviders()), time.Minute, time.Minute)
	m := metrics.New("test")

	svc := NewService(policies, providers, audit.NewService(zap.New(core)), m).
		WithClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, policies: policies, metrics: m, logs: logs}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Active policy whose expiry already passed.
	require.NoError(t, f.policies.Upsert(ctx, &model.PatientPolicy{
		PolicyNumber: "AAR-2022-900", PatientID: "P-2000", CompanyID: "aar-ke",
		CoverageLimit: 100000, Status: model.PolicyStatusActive,
		ExpiryDate: time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC),
	}))

	tests := []struct {
		name      string
		number    string
		amount    float64
		wantValid bool
		wantMsg   string
	}{
		{"valid within remaining", "AXA-2024-001", 1500, true, MsgVerified},
		{"valid at exact remaining", "AXA-2024-001", 380000, true, MsgVerified},
		{"insufficient coverage", "HYG-2024-014", 5000.01, false, "Insufficient coverage. Remaining: 5000.00"},
		{"expired status", "NHIS-2023-778", 1, false, "Policy is Expired"},
		{"suspended status", "JUB-2024-203", 1, false, "Policy is Suspended"},
		{"active but past expiry", "AAR-2022-900", 1, false, "Policy expired on 2026-05-31"},
		{"unknown policy", "NOPE-0000", 1, false, "Policy not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Verify(ctx, tt.number, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, tt.number, res.PolicyNumber)
		})
	}
}

func TestVerify_StatusFailsRegardlessOfAmount(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []float64{0.01, 10, 1e9} {
		res, err := f.svc.Verify(context.Background(), "JUB-2024-203", amount)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	}
}

func TestVerify_ValidResultCarriesCoverage(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Verify(context.Background(), "SHA-2025-051", 1000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 75000.0, res.Remaining)
	assert.Equal(t, 100000.0, res.CoverageLimit)
	assert.Equal(t, "Social Health Authority", res.CompanyName)
	assert.Equal(t, "sha-ke", res.CompanyID)
}

func TestVerify_UnregisteredCompanyFallsBackToID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.policies.Upsert(ctx, &model.PatientPolicy{
		PolicyNumber: "X-1", CompanyID: "ghost-co", CoverageLimit: 10,
		Status: model.PolicyStatusActive, ExpiryDate: fixedNow.AddDate(1, 0, 0),
	}))

	res, err := f.svc.Verify(ctx, "X-1", 5)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "ghost-co", res.CompanyName)
}

func TestVerify_BadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		policy string
		amount float64
	}{
		{"zero amount", "AXA-2024-001", 0},
		{"negative amount", "AXA-2024-001", -10},
		{"NaN amount", "AXA-2024-001", math.NaN()},
		{"infinite amount", "AXA-2024-001", math.Inf(1)},
		{"negative infinity", "AXA-2024-001", math.Inf(-1)},
		{"missing policy number", "", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Verify(context.Background(), tt.policy, tt.amount)
			assert.Nil(t, res)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest), "got %v", err)
		})
	}
}

type brokenPolicies struct {
	repository.PolicyRepository
}

func (brokenPolicies) FindByNumber(ctx context.Context, policyNumber string) (*model.PatientPolicy, error) {
	return nil, errors.New("connection reset")
}

func TestVerify_StorageErrorPropagates(t *testing.T) {
	f := newFixture(t)
	svc := NewService(brokenPolicies{}, nil, audit.NewService(nil), f.metrics)

	_, err := svc.Verify(context.Background(), "AXA-2024-001", 10)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInternal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Verifications.WithLabelValues("error")))
}

func TestVerify_AuditsAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithActor(context.Background(), "desk-1")

	_, err := f.svc.Verify(ctx, "AXA-2024-001", 10)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, "NOPE", 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Verifications.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Verifications.WithLabelValues("invalid")))

	entries := f.logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "success", entries[0].ContextMap()["outcome"])
	assert.Equal(t, "failure", entries[1].ContextMap()["outcome"])
	assert.Equal(t, "desk-1", entries[1].ContextMap()["actor"])
}

func TestGetPolicy(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.GetPolicy(context.Background(), "AXA-2024-001")
	require.NoError(t, err)
	assert.Equal(t, 380000.0, view.Remaining)
	assert.Equal(t, "AXA Mansard Health", view.CompanyName)

	_, err = f.svc.GetPolicy(context.Background(), "NOPE")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestListPatientPolicies(t *testing.T) {
	f := newFixture(t)

	views, err := f.svc.ListPatientPolicies(context.Background(), "P-1001")
	require.NoError(t, err)
	assert.Len(t, views, 2)

	none, err := f.svc.ListPatientPolicies(context.Background(), "P-9999")
	require.NoError(t, err)
	assert.Empty(t, none)
}
