package claim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	"github.com/jwalitptl/claims-api/internal/repository/memory"
	"github.com/jwalitptl/claims-api/internal/service/audit"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
	"github.com/jwalitptl/claims-api/pkg/logger"
	"github.com/jwalitptl/claims-api/pkg/metrics"
)

type recordingMailer struct {
	mu      sync.Mutex
	notices []*model.Claim
	err     error
}

func (m *recordingMailer) SendClaimDecision(ctx context.Context, claim *model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, claim)
	return m.err
}

func (m *recordingMailer) SendCustom(ctx context.Context, to, subject, content string) error {
	return nil
}

type fixture struct {
	svc     *Service
	outbox  repository.OutboxRepository
	mailer  *recordingMailer
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

var fixedNow = time.Date(2026, time.March, 14, 15, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	outbox := memory.NewOutboxRepository()
	mailer := &recordingMailer{}
	m := metrics.New("test")

	svc := NewService(memory.NewClaimRepository(), outbox, mailer, audit.NewService(zap.New(core)), m, logger.Nop()).
		WithClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, outbox: outbox, mailer: mailer, metrics: m, logs: logs}
}

func submitReq() *model.SubmitClaimRequest {
	return &model.SubmitClaimRequest{
		PatientID:    "P-1001",
		CompanyID:    "axa-mansard",
		PolicyNumber: "AXA-2024-001",
		Amount:       1500,
	}
}

func TestSubmitClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, claim.ID)
	assert.Equal(t, model.ClaimStatusPending, claim.Status)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), claim.ClaimDate)
	require.NotNil(t, claim.PolicyNumber)
	assert.Equal(t, "AXA-2024-001", *claim.PolicyNumber)
	assert.Nil(t, claim.ApprovedAmount)
	assert.Nil(t, claim.Notes)

	stored, err := f.svc.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.Amount, stored.Amount)

	events, err := f.outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventClaimSubmitted, events[0].EventType)
	assert.Contains(t, string(events[0].Payload), claim.ID.String())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ClaimsSubmitted))
	assert.Equal(t, 1, f.logs.FilterField(zap.String("action", model.AuditActionCreate)).Len())
}

func TestSubmitClaim_DuplicatesAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)
	second, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	claims, total, err := f.svc.ListClaims(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, claims, 2)
}

func TestSubmitClaim_NoLinkageEnforcement(t *testing.T) {
	f := newFixture(t)
	req := submitReq()
	req.PolicyNumber = "DOES-NOT-EXIST"

	claim, err := f.svc.SubmitClaim(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "DOES-NOT-EXIST", *claim.PolicyNumber)
}

func TestSubmitClaim_ConcurrentIDsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]bool{}
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.svc.SubmitClaim(ctx, submitReq())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[c.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 40)
}

func TestSubmitClaim_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(r *model.SubmitClaimRequest)
	}{
		{"missing patient", func(r *model.SubmitClaimRequest) { r.PatientID = " " }},
		{"missing company", func(r *model.SubmitClaimRequest) { r.CompanyID = "" }},
		{"zero amount", func(r *model.SubmitClaimRequest) { r.Amount = 0 }},
		{"negative amount", func(r *model.SubmitClaimRequest) { r.Amount = -5 }},
		{"NaN amount", func(r *model.SubmitClaimRequest) { r.Amount = math.NaN() }},
		{"infinite amount", func(r *model.SubmitClaimRequest) { r.Amount = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitReq()
			tt.mutate(req)
			_, err := f.svc.SubmitClaim(context.Background(), req)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
		})
	}
}

func TestDecideClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claim, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)

	approved := 1200.0
	decided, err := f.svc.DecideClaim(ctx, claim.ID, &model.DecideClaimRequest{
		Status: model.ClaimStatusApproved, ApprovedAmount: &approved, Notes: "co-pay deducted",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusApproved, decided.Status)
	assert.Equal(t, 1200.0, *decided.ApprovedAmount)
	assert.Equal(t, "co-pay deducted", *decided.Notes)

	stored, err := f.svc.GetClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusApproved, stored.Status)

	require.Len(t, f.mailer.notices, 1)
	assert.Equal(t, claim.ID, f.mailer.notices[0].ID)

	events, err := f.outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventClaimDecided, events[1].EventType)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ClaimsDecided.WithLabelValues("Approved")))

	_, err = f.svc.DecideClaim(ctx, claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusRejected})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestDecideClaim_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	claim, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)

	tooMuch := 5000.0
	someAmount := 10.0
	notANumber := math.NaN()
	tests := []struct {
		name string
		id   uuid.UUID
		req  *model.DecideClaimRequest
		code apperrors.ErrorCode
	}{
		{"pending is not a decision", claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusPending}, apperrors.ErrBadRequest},
		{"amount on rejection", claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusRejected, ApprovedAmount: &someAmount}, apperrors.ErrBadRequest},
		{"approved above claimed", claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusApproved, ApprovedAmount: &tooMuch}, apperrors.ErrBadRequest},
		{"NaN approved amount", claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusApproved, ApprovedAmount: &notANumber}, apperrors.ErrBadRequest},
		{"unknown claim", uuid.New(), &model.DecideClaimRequest{Status: model.ClaimStatusRejected}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.DecideClaim(ctx, tt.id, tt.req)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.mailer.notices)
}

func TestDecideClaim_MailFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	ctx := context.Background()

	claim, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)

	_, err = f.svc.DecideClaim(ctx, claim.ID, &model.DecideClaimRequest{Status: model.ClaimStatusRejected})
	assert.NoError(t, err)
}

func TestGetClaimsFinancialSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submit := func(amount float64) *model.Claim {
		req := submitReq()
		req.Amount = amount
		c, err := f.svc.SubmitClaim(ctx, req)
		require.NoError(t, err)
		return c
	}

	submit(100) // stays pending
	full := submit(200)
	partial := submit(300)
	rejected := submit(400)

	_, err := f.svc.DecideClaim(ctx, full.ID, &model.DecideClaimRequest{Status: model.ClaimStatusApproved})
	require.NoError(t, err)
	partialAmount := 250.0
	_, err = f.svc.DecideClaim(ctx, partial.ID, &model.DecideClaimRequest{Status: model.ClaimStatusApproved, ApprovedAmount: &partialAmount})
	require.NoError(t, err)
	_, err = f.svc.DecideClaim(ctx, rejected.ID, &model.DecideClaimRequest{Status: model.ClaimStatusRejected})
	require.NoError(t, err)

	summary, err := f.svc.GetClaimsFinancialSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalClaims)
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 2, summary.ApprovedCount)
	assert.Equal(t, 1, summary.RejectedCount)
	assert.Equal(t, 1000.0, summary.TotalClaimed)
	assert.Equal(t, 100.0, summary.TotalPending)
	assert.Equal(t, 450.0, summary.TotalApproved, "approved_amount wins over amount")
	assert.Equal(t, 400.0, summary.TotalRejected)
}

func TestListClaims_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitClaim(ctx, submitReq())
	require.NoError(t, err)
	other := submitReq()
	other.PatientID = "P-2000"
	_, err = f.svc.SubmitClaim(ctx, other)
	require.NoError(t, err)

	claims, total, err := f.svc.ListClaims(ctx, &model.ClaimFilters{PatientID: "P-2000"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "P-2000", claims[0].PatientID)

	_, _, err = f.svc.ListClaims(ctx, &model.ClaimFilters{Status: "Lost"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	huge := &model.ClaimFilters{Pagination: model.Pagination{Page: 1 << 62, PageSize: 100}}
	claims, total, err = f.svc.ListClaims(ctx, huge)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, claims)
	assert.GreaterOrEqual(t, huge.Offset(), 0)
}
