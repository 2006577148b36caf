package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type claimRepository struct {
	mu     sync.RWMutex
	claims []model.Claim
	index  map[uuid.UUID]int
}

func NewClaimRepository() repository.ClaimRepository {
	return &claimRepository{index: make(map[uuid.UUID]int)}
}

func (r *claimRepository) Append(ctx context.Context, claim *model.Claim) error {
	if claim.ID == uuid.Nil {
		return fmt.Errorf("claim id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[claim.ID]; exists {
		return fmt.Errorf("claim %s already exists", claim.ID)
	}
	r.index[claim.ID] = len(r.claims)
	r.claims = append(r.claims, *claim)
	return nil
}

func (r *claimRepository) Get(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := r.claims[i]
	return &c, nil
}

// List returns newest claims first, matching the postgres ordering.
func (r *claimRepository) List(ctx context.Context, filters *model.ClaimFilters) ([]*model.Claim, int, error) {
	if filters == nil {
		filters = &model.ClaimFilters{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*model.Claim
	for i := len(r.claims) - 1; i >= 0; i-- {
		c := r.claims[i]
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.PatientID != "" && c.PatientID != filters.PatientID {
			continue
		}
		if filters.CompanyID != "" && c.CompanyID != filters.CompanyID {
			continue
		}
		matched = append(matched, &c)
	}

	total := len(matched)
	if filters.PageSize > 0 {
		start := filters.Offset()
		if start < 0 || start >= total {
			return []*model.Claim{}, total, nil
		}
		end := start + filters.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (r *claimRepository) ListByStatus(ctx context.Context, status model.ClaimStatus) ([]*model.Claim, error) {
	claims, _, err := r.List(ctx, &model.ClaimFilters{Status: status})
	return claims, err
}

func (r *claimRepository) UpdateStatus(ctx context.Context, claim *model.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[claim.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := &r.claims[i]
	if stored.Status != model.ClaimStatusPending {
		return repository.ErrConflict
	}
	stored.Status = claim.Status
	stored.ApprovedAmount = claim.ApprovedAmount
	stored.Notes = claim.Notes
	stored.UpdatedAt = claim.UpdatedAt
	return nil
}
