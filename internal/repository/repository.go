package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// OfferingRepository доступ к каталогу предложений
type OfferingRepository interface {
	Create(ctx context.Context, offering domain.Offering) error
	GetByKindID(ctx context.Context, kind domain.OfferingKind, id uuid.UUID) (*domain.Offering, error)
	ListByKind(ctx context.Context, kind domain.OfferingKind) ([]domain.Offering, error)
	UpdateRegistrationCounts(ctx context.Context, kind domain.OfferingKind, counts map[uuid.UUID]int) error
}

// RegistrationRepository доступ к записям регистраций
type RegistrationRepository interface {
	Create(ctx context.Context, registration domain.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error)
	GetByUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*domain.Registration, error)
	ExistsForUserOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time) error
	OfferingIDsForUser(ctx context.Context, userID string, kind domain.OfferingKind) ([]uuid.UUID, error)
	CountRegisteredByOfferings(ctx context.Context, kind domain.OfferingKind, offeringIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// PaymentRepository доступ к записям платежей
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Payment, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, cancelledAt time.Time, reason string) error
}

// TxManager выполняет функцию внутри одной транзакции БД
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
