package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// PostgresRegistrationRepository реализация репозитория регистраций через PostgreSQL
type PostgresRegistrationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresRegistrationRepository создает новый репозиторий регистраций через PostgreSQL
func NewPostgresRegistrationRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{
		db:  db,
		log: log,
	}
}

// Create создает новую регистрацию. Уникальный индекс по паре
// пользователь-предложение превращается в ErrDuplicate.
func (r *PostgresRegistrationRepository) Create(ctx context.Context, registration domain.Registration) error {
	query := `
		INSERT INTO registrations (id, user_id, offering_kind, offering_id, status, created_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := queryEngine(ctx, r.db).Exec(
		ctx,
		query,
		registration.ID,
		registration.UserID,
		registration.OfferingKind,
		registration.OfferingID,
		registration.Status,
		registration.CreatedAt,
		registration.CompletedAt,
		registration.CancelledAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	return nil
}

// GetByID возвращает регистрацию по ID
func (r *PostgresRegistrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	query := `
		SELECT id, user_id, offering_kind, offering_id, status, created_at, completed_at, cancelled_at
		FROM registrations
		WHERE id = $1
	`

	return r.scanOne(queryEngine(ctx, r.db).QueryRow(ctx, query, id))
}

// GetByUserOffering возвращает регистрацию пользователя на предложение
func (r *PostgresRegistrationRepository) GetByUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*domain.Registration, error) {
	query := `
		SELECT id, user_id, offering_kind, offering_id, status, created_at, completed_at, cancelled_at
		FROM registrations
		WHERE user_id = $1 AND offering_kind = $2 AND offering_id = $3
	`

	return r.scanOne(queryEngine(ctx, r.db).QueryRow(ctx, query, userID, kind, offeringID))
}

// ExistsForUserOffering проверяет наличие регистрации в любом статусе
func (r *PostgresRegistrationRepository) ExistsForUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE user_id = $1 AND offering_kind = $2 AND offering_id = $3
		)
	`

	var exists bool
	err := queryEngine(ctx, r.db).QueryRow(ctx, query, userID, kind, offeringID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check registration existence: %w", err)
	}

	return exists, nil
}

// MarkCompleted переводит активную регистрацию в статус completed.
// Если активной записи нет, возвращает ErrNotFound.
func (r *PostgresRegistrationRepository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	query := `
		UPDATE registrations
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := queryEngine(ctx, r.db).Exec(ctx, query,
		domain.RegistrationStatusCompleted, completedAt, id, domain.RegistrationStatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark registration completed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkCancelled переводит активную регистрацию в статус cancelled.
// Если активной записи нет, возвращает ErrNotFound.
func (r *PostgresRegistrationRepository) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) error {
	query := `
		UPDATE registrations
		SET status = $1, cancelled_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := queryEngine(ctx, r.db).Exec(ctx, query,
		domain.RegistrationStatusCancelled, cancelledAt, id, domain.RegistrationStatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark registration cancelled: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// OfferingIDsForUser возвращает предложения, на которые пользователь
// записан (кроме отмененных регистраций)
func (r *PostgresRegistrationRepository) OfferingIDsForUser(ctx context.Context, userID string, kind domain.OfferingKind) ([]uuid.UUID, error) {
	query := `
		SELECT offering_id
		FROM registrations
		WHERE user_id = $1 AND offering_kind = $2 AND status <> $3
	`

	rows, err := queryEngine(ctx, r.db).Query(ctx, query, userID, kind, domain.RegistrationStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query user registrations: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan offering id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user registrations: %w", err)
	}

	return ids, nil
}

// CountRegisteredByOfferings считает неотмененные регистрации по предложениям
func (r *PostgresRegistrationRepository) CountRegisteredByOfferings(ctx context.Context, kind domain.OfferingKind, offeringIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT offering_id, COUNT(*)
		FROM registrations
		WHERE offering_kind = $1 AND offering_id = ANY($2) AND status <> $3
		GROUP BY offering_id
	`

	rows, err := queryEngine(ctx, r.db).Query(ctx, query, kind, offeringIDs, domain.RegistrationStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int, len(offeringIDs))
	for rows.Next() {
		var id uuid.UUID
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan registration count: %w", err)
		}
		counts[id] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration counts: %w", err)
	}

	return counts, nil
}

func (r *PostgresRegistrationRepository) scanOne(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.OfferingKind,
		&reg.OfferingID,
		&reg.Status,
		&reg.CreatedAt,
		&reg.CompletedAt,
		&reg.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan registration: %w", err)
	}

	return &reg, nil
}
