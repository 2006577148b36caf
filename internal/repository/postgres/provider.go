package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(base BaseRepository) repository.ProviderRepository {
	return &providerRepository{base}
}

const providerColumns = `id, name, country, coverage_types, requires_pre_auth, processing_days`

func (r *providerRepository) Get(ctx context.Context, id string) (*model.InsuranceProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM insurance_providers WHERE id = $1`
	var p model.InsuranceProvider
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", notFound(err))
	}
	return &p, nil
}

func (r *providerRepository) List(ctx context.Context, country string) ([]*model.InsuranceProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM insurance_providers
		WHERE ($1 = '' OR upper(country) = upper($1))
		ORDER BY country, name`
	var providers []*model.InsuranceProvider
	if err := r.db.SelectContext(ctx, &providers, query, country); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}
