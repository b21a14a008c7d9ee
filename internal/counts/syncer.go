package counts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// registrationCounter часть репозитория регистраций, нужная синхронизатору
type registrationCounter interface {
	CountRegisteredByOfferings(ctx context.Context, kind domain.OfferingKind, offeringIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// countWriter часть репозитория каталога, нужная синхронизатору
type countWriter interface {
	UpdateRegistrationCounts(ctx context.Context, kind domain.OfferingKind, counts map[uuid.UUID]int) error
}

// Syncer периодически пересчитывает счетчики регистраций предложений,
// помеченных трекером
type Syncer struct {
	client        setClient
	registrations registrationCounter
	offerings     countWriter
	log           *logger.Logger
	stopCh        chan struct{}
}

// NewSyncer создает новый синхронизатор счетчиков
func NewSyncer(client *redis.Client, registrations repository.RegistrationRepository, offerings repository.OfferingRepository, log *logger.Logger) *Syncer {
	return &Syncer{
		client:        client,
		registrations: registrations,
		offerings:     offerings,
		log:           log,
		stopCh:        make(chan struct{}),
	}
}

// Start запускает периодическую синхронизацию с заданным интервалом
func (s *Syncer) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.SyncOnce(ctx)
				cancel()
			case <-s.stopCh:
				return
			}
		}
	}()
	s.log.Infow("Registration count sync started", "interval", interval)
}

// Stop останавливает синхронизацию
func (s *Syncer) Stop() {
	close(s.stopCh)
	s.log.Infow("Registration count sync stopped")
}

// SyncOnce пересчитывает счетчики для обоих типов предложений
func (s *Syncer) SyncOnce(ctx context.Context) {
	for _, kind := range []domain.OfferingKind{domain.OfferingKindTest, domain.OfferingKindCourse} {
		if err := s.syncKind(ctx, kind); err != nil {
			s.log.Errorw("Failed to sync registration counts", "error", err, "kind", kind)
		}
	}
}

// syncKind пересчитывает счетчики предложений одного типа
func (s *Syncer) syncKind(ctx context.Context, kind domain.OfferingKind) error {
	key := dirtySetKey(kind)

	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read dirty set: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(members))
	processed := make([]interface{}, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			// Мусорный элемент все равно удаляем, иначе он останется навсегда
			s.log.Warnw("Dropping malformed offering id from dirty set", "member", member, "kind", kind)
			processed = append(processed, member)
			continue
		}
		ids = append(ids, id)
		processed = append(processed, member)
	}

	if len(ids) > 0 {
		counts, err := s.registrations.CountRegisteredByOfferings(ctx, kind, ids)
		if err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}

		// Предложения, у которых не осталось регистраций, получают явный ноль
		for _, id := range ids {
			if _, ok := counts[id]; !ok {
				counts[id] = 0
			}
		}

		if err := s.offerings.UpdateRegistrationCounts(ctx, kind, counts); err != nil {
			return fmt.Errorf("failed to update registration counts: %w", err)
		}
	}

	// Множество чистится только после успешной записи, чтобы сбой
	// пересчета повторился на следующем цикле
	if err := s.client.SRem(ctx, key, processed...).Err(); err != nil {
		return fmt.Errorf("failed to clear dirty set: %w", err)
	}

	s.log.Debugw("Registration counts synced", "kind", kind, "offerings", len(ids))
	return nil
}
