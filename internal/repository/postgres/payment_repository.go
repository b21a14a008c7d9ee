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

// PostgresPaymentRepository реализация репозитория платежей через PostgreSQL
type PostgresPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentRepository создает новый репозиторий платежей через PostgreSQL
func NewPostgresPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

// Create создает новый платеж
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, registration_id, target_kind, target_id, amount, method, external_ref, status, refund_reason, paid_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := queryEngine(ctx, r.db).Exec(
		ctx,
		query,
		payment.ID,
		payment.UserID,
		payment.RegistrationID,
		payment.TargetKind,
		payment.TargetID,
		payment.Amount,
		payment.Method,
		payment.ExternalRef,
		payment.Status,
		payment.RefundReason,
		payment.PaidAt,
		payment.CancelledAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID возвращает платеж по ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, user_id, registration_id, target_kind, target_id, amount, method, external_ref, status, refund_reason, paid_at, cancelled_at
		FROM payments
		WHERE id = $1
	`

	return r.scanOne(queryEngine(ctx, r.db).QueryRow(ctx, query, id))
}

// GetByIDForUpdate возвращает платеж по ID, удерживая блокировку строки.
// Вызывается только внутри транзакции.
func (r *PostgresPaymentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, user_id, registration_id, target_kind, target_id, amount, method, external_ref, status, refund_reason, paid_at, cancelled_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`

	return r.scanOne(queryEngine(ctx, r.db).QueryRow(ctx, query, id))
}

// ListByUser возвращает платежи пользователя, новые первыми
func (r *PostgresPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	query := `
		SELECT id, user_id, registration_id, target_kind, target_id, amount, method, external_ref, status, refund_reason, paid_at, cancelled_at
		FROM payments
		WHERE user_id = $1
		ORDER BY paid_at DESC
	`

	rows, err := queryEngine(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var payment domain.Payment
		err := rows.Scan(
			&payment.ID,
			&payment.UserID,
			&payment.RegistrationID,
			&payment.TargetKind,
			&payment.TargetID,
			&payment.Amount,
			&payment.Method,
			&payment.ExternalRef,
			&payment.Status,
			&payment.RefundReason,
			&payment.PaidAt,
			&payment.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

// MarkCancelled переводит оплаченный платеж в статус cancelled.
// Если оплаченной записи нет, возвращает ErrNotFound.
func (r *PostgresPaymentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time, reason string) error {
	query := `
		UPDATE payments
		SET status = $1, cancelled_at = $2, refund_reason = $3
		WHERE id = $4 AND status = $5
	`

	result, err := queryEngine(ctx, r.db).Exec(ctx, query,
		domain.PaymentStatusCancelled, cancelledAt, reason, id, domain.PaymentStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to mark payment cancelled: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *PostgresPaymentRepository) scanOne(row pgx.Row) (*domain.Payment, error) {
	var payment domain.Payment
	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.RegistrationID,
		&payment.TargetKind,
		&payment.TargetID,
		&payment.Amount,
		&payment.Method,
		&payment.ExternalRef,
		&payment.Status,
		&payment.RefundReason,
		&payment.PaidAt,
		&payment.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return &payment, nil
}
