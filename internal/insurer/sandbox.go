package insurer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
)

// Outcome scripts how the sandbox answers for a member number.
type Outcome struct {
	Eligible      bool
	Status        string
	Message       string
	CoverageLimit float64
	Remaining     float64
	ExpiryDate    time.Time
	// ClaimStatus is what a submitted claim starts in; empty means Pending.
	ClaimStatus model.ClaimStatus
	// ApproveRatio scales the claimed amount for approved claims; zero approves in full.
	ApproveRatio float64
	// Err, when set, is returned from every call for the member.
	Err error
}

// Sandbox is an in-process stand-in for a provider API. Answers come only from
// scripted outcomes, never from the shape of the request data.
type Sandbox struct {
	mu       sync.RWMutex
	latency  time.Duration
	fallback Outcome
	outcomes map[string]Outcome
	claims   map[string]*model.ExternalClaimStatus
	now      func() time.Time
}

func NewSandbox(latency time.Duration, fallback Outcome) *Sandbox {
	return &Sandbox{
		latency:  latency,
		fallback: fallback,
		outcomes: make(map[string]Outcome),
		claims:   make(map[string]*model.ExternalClaimStatus),
		now:      time.Now,
	}
}

// Script registers the outcome for one member number.
func (s *Sandbox) Script(memberNumber string, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[memberNumber] = o
}

// SetClaimStatus moves a sandbox claim, e.g. to simulate an adjudication.
func (s *Sandbox) SetClaimStatus(reference string, status model.ClaimStatus, approved *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[reference]
	if !ok {
		return ErrClaimNotFound
	}
	c.Status = status
	c.ApprovedAmount = approved
	c.UpdatedAt = s.now()
	return nil
}

func (s *Sandbox) VerifyPatient(ctx context.Context, req *model.EligibilityRequest) (*model.EligibilityResponse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	o := s.outcome(req.MemberNumber)
	if o.Err != nil {
		return nil, o.Err
	}

	status := o.Status
	if status == "" {
		status = string(model.PolicyStatusActive)
		if !o.Eligible {
			status = "Inactive"
		}
	}
	return &model.EligibilityResponse{
		Eligible:      o.Eligible,
		MemberNumber:  req.MemberNumber,
		Status:        status,
		Message:       o.Message,
		CoverageLimit: o.CoverageLimit,
		Remaining:     o.Remaining,
		ExpiryDate:    o.ExpiryDate,
	}, nil
}

func (s *Sandbox) SubmitClaim(ctx context.Context, req *model.ExternalClaimRequest) (*model.ExternalClaimStatus, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	o := s.outcome(req.MemberNumber)
	if o.Err != nil {
		return nil, o.Err
	}

	status := o.ClaimStatus
	if status == "" {
		status = model.ClaimStatusPending
	}
	claim := &model.ExternalClaimStatus{
		Reference: "SBX-" + strings.ToUpper(uuid.NewString()[:8]),
		Status:    status,
		Message:   o.Message,
		UpdatedAt: s.now(),
	}
	if status == model.ClaimStatusApproved {
		approved := req.Amount
		if o.ApproveRatio > 0 {
			approved = req.Amount * o.ApproveRatio
		}
		claim.ApprovedAmount = &approved
	}

	s.mu.Lock()
	s.claims[claim.Reference] = claim
	s.mu.Unlock()

	copied := *claim
	return &copied, nil
}

func (s *Sandbox) CheckClaimStatus(ctx context.Context, reference string) (*model.ExternalClaimStatus, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, reference)
	}
	copied := *c
	return &copied, nil
}

func (s *Sandbox) outcome(memberNumber string) Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.outcomes[memberNumber]; ok {
		return o
	}
	return s.fallback
}

// wait simulates network latency and gives up when ctx ends.
func (s *Sandbox) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
