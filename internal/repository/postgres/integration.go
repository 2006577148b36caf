package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type integrationRepository struct {
	BaseRepository
}

func NewIntegrationRepository(base BaseRepository) repository.IntegrationRepository {
	return &integrationRepository{base}
}

const integrationColumns = `provider, enabled, api_key, environment, base_url, updated_at`

func (r *integrationRepository) Get(ctx context.Context, provider string) (*model.IntegrationSetting, error) {
	query := `SELECT ` + integrationColumns + ` FROM integration_settings WHERE provider = $1`
	var s model.IntegrationSetting
	if err := r.db.GetContext(ctx, &s, query, provider); err != nil {
		return nil, fmt.Errorf("failed to get integration setting: %w", notFound(err))
	}
	return &s, nil
}

func (r *integrationRepository) List(ctx context.Context) ([]*model.IntegrationSetting, error) {
	query := `SELECT ` + integrationColumns + ` FROM integration_settings ORDER BY provider`
	var settings []*model.IntegrationSetting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("failed to list integration settings: %w", err)
	}
	return settings, nil
}

func (r *integrationRepository) Save(ctx context.Context, setting *model.IntegrationSetting) error {
	query := `
		INSERT INTO integration_settings (` + integrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			api_key = EXCLUDED.api_key,
			environment = EXCLUDED.environment,
			base_url = EXCLUDED.base_url,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		setting.Provider,
		setting.Enabled,
		setting.APIKey,
		setting.Environment,
		setting.BaseURL,
		setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save integration setting: %w", err)
	}
	return nil
}
