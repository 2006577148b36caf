package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
)

type integrationRepository struct {
	mu       sync.RWMutex
	settings map[string]model.IntegrationSetting
}

func NewIntegrationRepository() repository.IntegrationRepository {
	return &integrationRepository{settings: make(map[string]model.IntegrationSetting)}
}

func (r *integrationRepository) Get(ctx context.Context, provider string) (*model.IntegrationSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[provider]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *integrationRepository) List(ctx context.Context) ([]*model.IntegrationSetting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.IntegrationSetting, 0, len(r.settings))
	for _, s := range r.settings {
		result = append(result, &s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, nil
}

func (r *integrationRepository) Save(ctx context.Context, setting *model.IntegrationSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[setting.Provider] = *setting
	return nil
}
