package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/claims-api/internal/model"
	"github.com/jwalitptl/claims-api/internal/repository"
	apperrors "github.com/jwalitptl/claims-api/pkg/errors"
)

type ProviderServicer interface {
	ListProviders(ctx context.Context, country string) ([]*model.InsuranceProvider, error)
	GetProvider(ctx context.Context, id string) (*model.InsuranceProvider, error)
}

// Service serves the provider registry through a read-through cache.
// Providers are static reference data so entries are never invalidated.
type Service struct {
	repo  repository.ProviderRepository
	cache *cache.Cache
}

func NewService(repo repository.ProviderRepository, ttl, cleanupInterval time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (s *Service) ListProviders(ctx context.Context, country string) ([]*model.InsuranceProvider, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	key := "providers:" + country
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]*model.InsuranceProvider), nil
	}

	providers, err := s.repo.List(ctx, country)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if providers == nil {
		providers = []*model.InsuranceProvider{}
	}
	s.cache.SetDefault(key, providers)
	return providers, nil
}

func (s *Service) GetProvider(ctx context.Context, id string) (*model.InsuranceProvider, error) {
	key := "provider:" + id
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.InsuranceProvider), nil
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("provider", err)
		}
		return nil, apperrors.Internal(err)
	}
	s.cache.SetDefault(key, p)
	return p, nil
}
