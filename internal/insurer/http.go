package insurer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/claims-api/internal/model"
)

const apiKeyHeader = "X-API-Key"

type HTTPConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      uint64
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// InitialBackoff overrides the first retry delay; zero keeps the backoff default.
	InitialBackoff time.Duration
}

// HTTPClient calls a live provider API. Every attempt passes through a circuit
// breaker; transient failures are retried with exponential backoff.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	cb         *gobreaker.CircuitBreaker
	maxRetries uint64
	initial    time.Duration
}

func NewHTTPClient(name string, cfg HTTPConfig) *HTTPClient {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "insurer-" + name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
	})

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		cb:         cb,
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialBackoff,
	}
}

func (c *HTTPClient) VerifyPatient(ctx context.Context, req *model.EligibilityRequest) (*model.EligibilityResponse, error) {
	var resp model.EligibilityResponse
	if err := c.do(ctx, http.MethodPost, "/eligibility", req, &resp, ErrMemberNotFound); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SubmitClaim(ctx context.Context, req *model.ExternalClaimRequest) (*model.ExternalClaimStatus, error) {
	var resp model.ExternalClaimStatus
	if err := c.do(ctx, http.MethodPost, "/claims", req, &resp, ErrMemberNotFound); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CheckClaimStatus(ctx context.Context, reference string) (*model.ExternalClaimStatus, error) {
	var resp model.ExternalClaimStatus
	if err := c.do(ctx, http.MethodGet, "/claims/"+url.PathEscape(reference), nil, &resp, ErrClaimNotFound); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}, notFound error) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	if c.initial > 0 {
		policy.InitialInterval = c.initial
	}
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	op := func() error {
		_, err := c.cb.Execute(func() (interface{}, error) {
			return nil, c.attempt(ctx, method, path, payload, out)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		case !isTransient(err):
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return err
			}
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, retries)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", notFound, apiErr.Message)
	}
	return err
}

func (c *HTTPClient) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response body"}
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fallback
}

// isTransient treats network errors, 5xx and 429 as retryable.
func isTransient(err error) bool {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
