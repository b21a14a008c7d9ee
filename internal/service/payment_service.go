package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// PaymentQueryService отдает историю платежей пользователя
type PaymentQueryService struct {
	payments repository.PaymentRepository
	log      *logger.Logger
}

// NewPaymentQueryService создает новый сервис чтения платежей
func NewPaymentQueryService(payments repository.PaymentRepository, log *logger.Logger) *PaymentQueryService {
	return &PaymentQueryService{
		payments: payments,
		log:      log,
	}
}

// ListForUser возвращает платежи пользователя, новые первыми
func (s *PaymentQueryService) ListForUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// GetForUser возвращает платеж, если он принадлежит пользователю
func (s *PaymentQueryService) GetForUser(ctx context.Context, userID string, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("payment", paymentID.String())
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if payment.UserID != userID {
		return nil, domain.ErrNotOwner
	}

	return payment, nil
}
