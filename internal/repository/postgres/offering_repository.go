package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// PostgresOfferingRepository реализация репозитория каталога через PostgreSQL
type PostgresOfferingRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresOfferingRepository создает новый репозиторий каталога через PostgreSQL
func NewPostgresOfferingRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresOfferingRepository {
	return &PostgresOfferingRepository{
		db:  db,
		log: log,
	}
}

// Create создает новое предложение
func (r *PostgresOfferingRepository) Create(ctx context.Context, offering domain.Offering) error {
	query := `
		INSERT INTO offerings (id, kind, title, description, price, start_at, end_at, registration_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := queryEngine(ctx, r.db).Exec(
		ctx,
		query,
		offering.ID,
		offering.Kind,
		offering.Title,
		offering.Description,
		offering.Price,
		offering.StartAt,
		offering.EndAt,
		offering.RegistrationCount,
		offering.CreatedAt,
		offering.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create offering: %w", err)
	}

	return nil
}

// GetByKindID возвращает предложение по типу и ID
func (r *PostgresOfferingRepository) GetByKindID(ctx context.Context, kind domain.OfferingKind, id uuid.UUID) (*domain.Offering, error) {
	query := `
		SELECT id, kind, title, description, price, start_at, end_at, registration_count, created_at, updated_at
		FROM offerings
		WHERE kind = $1 AND id = $2
	`

	var offering domain.Offering
	err := queryEngine(ctx, r.db).QueryRow(ctx, query, kind, id).Scan(
		&offering.ID,
		&offering.Kind,
		&offering.Title,
		&offering.Description,
		&offering.Price,
		&offering.StartAt,
		&offering.EndAt,
		&offering.RegistrationCount,
		&offering.CreatedAt,
		&offering.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offering: %w", err)
	}

	return &offering, nil
}

// ListByKind возвращает все предложения одного типа
func (r *PostgresOfferingRepository) ListByKind(ctx context.Context, kind domain.OfferingKind) ([]domain.Offering, error) {
	query := `
		SELECT id, kind, title, description, price, start_at, end_at, registration_count, created_at, updated_at
		FROM offerings
		WHERE kind = $1
		ORDER BY start_at ASC
	`

	rows, err := queryEngine(ctx, r.db).Query(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query offerings: %w", err)
	}
	defer rows.Close()

	var offerings []domain.Offering
	for rows.Next() {
		var offering domain.Offering
		err := rows.Scan(
			&offering.ID,
			&offering.Kind,
			&offering.Title,
			&offering.Description,
			&offering.Price,
			&offering.StartAt,
			&offering.EndAt,
			&offering.RegistrationCount,
			&offering.CreatedAt,
			&offering.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offering: %w", err)
		}
		offerings = append(offerings, offering)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offerings: %w", err)
	}

	return offerings, nil
}

// UpdateRegistrationCounts записывает пересчитанные счетчики регистраций
func (r *PostgresOfferingRepository) UpdateRegistrationCounts(ctx context.Context, kind domain.OfferingKind, counts map[uuid.UUID]int) error {
	query := `
		UPDATE offerings
		SET registration_count = $1, updated_at = now()
		WHERE kind = $2 AND id = $3
	`

	engine := queryEngine(ctx, r.db)
	for id, count := range counts {
		if _, err := engine.Exec(ctx, query, count, kind, id); err != nil {
			return fmt.Errorf("failed to update registration count: %w", err)
		}
	}

	return nil
}
