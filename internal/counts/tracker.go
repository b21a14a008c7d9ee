package counts

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// Redis-множества с идентификаторами предложений, счетчики которых
// нужно пересчитать
const (
	testDirtySetKey   = "test:updated_ids"
	courseDirtySetKey = "course:updated_ids"
)

// dirtySetKey возвращает ключ множества для типа предложения
func dirtySetKey(kind domain.OfferingKind) string {
	if kind == domain.OfferingKindCourse {
		return courseDirtySetKey
	}
	return testDirtySetKey
}

// setClient часть клиента Redis, нужная трекеру и синхронизатору
type setClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// Tracker помечает предложения для пересчета счетчиков регистраций
type Tracker interface {
	MarkDirty(ctx context.Context, kind domain.OfferingKind, offeringID uuid.UUID)
}

// RedisTracker реализует Tracker поверх Redis-множеств
type RedisTracker struct {
	client setClient
	log    *logger.Logger
}

// NewTracker создает новый трекер
func NewTracker(client *redis.Client, log *logger.Logger) *RedisTracker {
	return &RedisTracker{
		client: client,
		log:    log,
	}
}

// MarkDirty добавляет предложение в множество на пересчет. Ошибка
// не прерывает основную операцию, счетчик догонит следующий цикл.
func (t *RedisTracker) MarkDirty(ctx context.Context, kind domain.OfferingKind, offeringID uuid.UUID) {
	if err := t.client.SAdd(ctx, dirtySetKey(kind), offeringID.String()).Err(); err != nil {
		t.log.Warnw("Failed to mark offering for count sync", "error", err, "kind", kind, "offeringID", offeringID)
	}
}
