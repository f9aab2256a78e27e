package catalog

import (
	"context"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/rs/zerolog"
)

type CatalogUseCase interface {
	List(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error)
	GetByID(ctx context.Context, id string) (*domain.Pool, error)
	ListUnits(ctx context.Context, poolID string) ([]domain.PoolUnit, error)
	Create(ctx context.Context, pool *domain.Pool, unitIDs []string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type Cache interface {
	GetPools(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error)
	SetPools(ctx context.Context, kind domain.BookingKind, pools []domain.Pool) error
	InvalidatePools(ctx context.Context, kind domain.BookingKind) error
}

type Service struct {
	repo   repository.PoolRepository
	cache  Cache
	logger zerolog.Logger
}

func NewService(repo repository.PoolRepository, cache Cache, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger.With().Str("component", "catalog").Logger()}
}

func (s *Service) List(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error) {
	if !kind.Valid() {
		return nil, domain.NewValidationError("kind", "unknown booking kind")
	}
	if s.cache != nil {
		if cached, err := s.cache.GetPools(ctx, kind); err == nil && cached != nil {
			return cached, nil
		}
	}

	pools, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetPools(ctx, kind, pools); err != nil {
			s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("cache pools failed")
		}
	}
	return pools, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context, poolID string) ([]domain.PoolUnit, error) {
	if _, err := s.repo.GetByID(ctx, poolID); err != nil {
		return nil, err
	}
	return s.repo.ListUnits(ctx, poolID)
}

func (s *Service) Create(ctx context.Context, pool *domain.Pool, unitIDs []string) error {
	if !pool.Kind.Valid() {
		return domain.NewValidationError("kind", "unknown booking kind")
	}
	if pool.TotalCapacity < 0 {
		return domain.NewValidationError("total_capacity", "must not be negative")
	}
	if err := s.repo.Create(ctx, pool, unitIDs); err != nil {
		return err
	}
	s.invalidate(ctx, pool.Kind)
	return nil
}

// SetActive deactivates (or reactivates) a sellable product. Reservations
// against an inactive pool fail validation in the coordinator.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	pool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.invalidate(ctx, pool.Kind)
	return nil
}

func (s *Service) invalidate(ctx context.Context, kind domain.BookingKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePools(ctx, kind); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("invalidate pool cache failed")
	}
}

var _ CatalogUseCase = (*Service)(nil)
