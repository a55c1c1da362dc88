package settings

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/quotedesk/internal/platform/cache"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/totals"
)

// RepositoryPort defines data access for settings.
type RepositoryPort interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, actor shared.Actor, values map[string]string) error
}

// Service serves settings through the Redis cache.
type Service struct {
	repo   RepositoryPort
	cache  *cache.JSONCache
	logger *slog.Logger
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *cache.JSONCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.cache.Fetch(ctx, &out, func(ctx context.Context) (any, error) {
		return s.load(ctx)
	}, "all")
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (s *Service) load(ctx context.Context) (Settings, error) {
	values, err := s.repo.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	settings, invalid := FromValues(values)
	if len(invalid) > 0 {
		s.logger.WarnContext(ctx, "ignoring unparsable settings", slog.Any("keys", invalid))
	}
	return settings, nil
}

// TaxDefaults implements totals.DefaultsProvider.
func (s *Service) TaxDefaults(ctx context.Context) (totals.TaxConfig, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return totals.TaxConfig{}, err
	}
	return settings.Tax(), nil
}

// Update applies a partial update. Only admins may change settings.
func (s *Service) Update(ctx context.Context, actor shared.Actor, input UpdateInput) (Settings, error) {
	if !actor.IsAdmin() {
		return Settings{}, shared.Forbiddenf("only administrators can change settings")
	}
	current, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	next, err := input.Apply(current)
	if err != nil {
		return Settings{}, err
	}
	if err := s.repo.Save(ctx, actor, next.Values()); err != nil {
		return Settings{}, err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.ErrorContext(ctx, "invalidate settings cache", slog.Any("error", err))
	}
	return next, nil
}
