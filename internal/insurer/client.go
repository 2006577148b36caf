// Package insurer talks to insurance providers' eligibility and claims APIs.
//
// The live wire contract is JSON over HTTPS with the integration API key in the
// X-API-Key header:
//
//	POST {base}/eligibility        EligibilityRequest   -> EligibilityResponse
//	POST {base}/claims             ExternalClaimRequest -> ExternalClaimStatus
//	GET  {base}/claims/{reference}                      -> ExternalClaimStatus
package insurer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/claims-api/internal/model"
)

var (
	ErrIntegrationDisabled = errors.New("integration is disabled")
	ErrNotConnected        = errors.New("live environment not connected")
	ErrMemberNotFound      = errors.New("member not found")
	ErrClaimNotFound       = errors.New("claim reference not found")
)

// Client is implemented by the live HTTP client and the sandbox.
type Client interface {
	VerifyPatient(ctx context.Context, req *model.EligibilityRequest) (*model.EligibilityResponse, error)
	SubmitClaim(ctx context.Context, req *model.ExternalClaimRequest) (*model.ExternalClaimStatus, error)
	CheckClaimStatus(ctx context.Context, reference string) (*model.ExternalClaimStatus, error)
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("insurer responded %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
