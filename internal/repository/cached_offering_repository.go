package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// Префиксы ключей кэша каталога
const (
	offeringKeyPrefix  = "offering:"
	offeringListPrefix = "offerings:"
)

func offeringKey(kind domain.OfferingKind, id uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", offeringKeyPrefix, kind, id)
}

func offeringListKey(kind domain.OfferingKind) string {
	return fmt.Sprintf("%s%s:all", offeringListPrefix, kind)
}

// CachedOfferingRepository реализует OfferingRepository с кешированием
type CachedOfferingRepository struct {
	repo  OfferingRepository
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedOfferingRepository создает новый репозиторий каталога с кешированием
func NewCachedOfferingRepository(repo OfferingRepository, cache *RedisCache, log *logger.Logger) OfferingRepository {
	return &CachedOfferingRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет предложение в БД и инвалидирует кеш списка
func (r *CachedOfferingRepository) Create(ctx context.Context, offering domain.Offering) error {
	if err := r.repo.Create(ctx, offering); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, offeringListKey(offering.Kind)); err != nil {
		r.log.Warnw("Failed to invalidate offering list cache", "error", err, "kind", offering.Kind)
	}

	return nil
}

// GetByKindID получает предложение по типу и ID (сначала из кеша, потом из БД)
func (r *CachedOfferingRepository) GetByKindID(ctx context.Context, kind domain.OfferingKind, id uuid.UUID) (*domain.Offering, error) {
	key := offeringKey(kind, id)

	var cached domain.Offering
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.log.Warnw("Error getting offering from cache", "error", err, "key", key)
		// Продолжаем выполнение при ошибке кеша
	}
	if found {
		return &cached, nil
	}

	offering, err := r.repo.GetByKindID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, offering); err != nil {
		r.log.Warnw("Failed to cache offering after fetching", "error", err, "key", key)
	}

	return offering, nil
}

// ListByKind возвращает предложения одного типа (сначала из кеша, потом из БД)
func (r *CachedOfferingRepository) ListByKind(ctx context.Context, kind domain.OfferingKind) ([]domain.Offering, error) {
	key := offeringListKey(kind)

	var cached []domain.Offering
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.log.Warnw("Error getting offering list from cache", "error", err, "key", key)
	}
	if found {
		return cached, nil
	}

	offerings, err := r.repo.ListByKind(ctx, kind)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, offerings); err != nil {
		r.log.Warnw("Failed to cache offering list", "error", err, "key", key)
	}

	return offerings, nil
}

// UpdateRegistrationCounts обновляет счетчики в БД и инвалидирует кеш
func (r *CachedOfferingRepository) UpdateRegistrationCounts(ctx context.Context, kind domain.OfferingKind, counts map[uuid.UUID]int) error {
	if err := r.repo.UpdateRegistrationCounts(ctx, kind, counts); err != nil {
		return err
	}

	keys := make([]string, 0, len(counts)+1)
	for id := range counts {
		keys = append(keys, offeringKey(kind, id))
	}
	keys = append(keys, offeringListKey(kind))

	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.log.Warnw("Failed to invalidate offering cache after count update", "error", err, "kind", kind)
	}

	return nil
}
