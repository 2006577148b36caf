package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
)

var (
	// ErrNotFound is returned by every repository when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means the row no longer holds the state the caller read.
	ErrConflict = errors.New("record changed concurrently")
)

// All repository interfaces in one file
type (
	// ProviderRepository serves the static provider registry
	ProviderRepository interface {
		Get(ctx context.Context, id string) (*model.InsuranceProvider, error)
		// List returns every provider when country is empty.
		List(ctx context.Context, country string) ([]*model.InsuranceProvider, error)
	}

	PolicyRepository interface {
		FindByNumber(ctx context.Context, policyNumber string) (*model.PatientPolicy, error)
		ListByPatient(ctx context.Context, patientID string) ([]*model.PatientPolicy, error)
		Upsert(ctx context.Context, policy *model.PatientPolicy) error
	}

	// ClaimRepository is append-only apart from status decisions.
	ClaimRepository interface {
		Append(ctx context.Context, claim *model.Claim) error
		Get(ctx context.Context, id uuid.UUID) (*model.Claim, error)
		List(ctx context.Context, filters *model.ClaimFilters) ([]*model.Claim, int, error)
		ListByStatus(ctx context.Context, status model.ClaimStatus) ([]*model.Claim, error)
		// UpdateStatus records a decision on a claim that is still Pending,
		// returning ErrConflict when it has already been decided.
		UpdateStatus(ctx context.Context, claim *model.Claim) error
	}

	IntegrationRepository interface {
		Get(ctx context.Context, provider string) (*model.IntegrationSetting, error)
		List(ctx context.Context) ([]*model.IntegrationSetting, error)
		Save(ctx context.Context, setting *model.IntegrationSetting) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		// Cleanup deletes processed events processed before the cutoff.
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)
