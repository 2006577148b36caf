package memory

import (
	"context"
	"strings"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type providerRepository struct {
	providers []*model.InsuranceProvider
	byID      map[string]*model.InsuranceProvider
}

// NewProviderRepository builds a read-only registry; providers are never mutated after this.
func NewProviderRepository(providers []*model.InsuranceProvider) repository.ProviderRepository {
	byID := make(map[string]*model.InsuranceProvider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}
	return &providerRepository{providers: providers, byID: byID}
}

func (r *providerRepository) Get(ctx context.Context, id string) (*model.InsuranceProvider, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *providerRepository) List(ctx context.Context, country string) ([]*model.InsuranceProvider, error) {
	result := make([]*model.InsuranceProvider, 0, len(r.providers))
	for _, p := range r.providers {
		if country != "" && !strings.EqualFold(p.Country, country) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}
