package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/counts"
	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/kafka"
	"github.com/enrollhub/enrollment-service/internal/lock"
	"github.com/enrollhub/enrollment-service/internal/metrics"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// ApplyInput данные запроса на регистрацию
type ApplyInput struct {
	UserID       string
	OfferingKind domain.OfferingKind
	OfferingID   uuid.UUID
	Amount       decimal.Decimal
	Method       domain.PaymentMethod
}

// ApplyResult итог успешной регистрации
type ApplyResult struct {
	RegistrationID uuid.UUID
	PaymentID      uuid.UUID
	Method         domain.PaymentMethod
	ExternalRef    string
	Fee            decimal.Decimal
}

// CancelInput данные запроса на отмену платежа
type CancelInput struct {
	UserID    string
	PaymentID uuid.UUID
	Reason    string
}

// CompleteResult итог завершения регистрации
type CompleteResult struct {
	RegistrationID uuid.UUID
	CompletedAt    time.Time
}

// CancelResult итог отмены платежа
type CancelResult struct {
	PaymentID   uuid.UUID
	CancelledAt time.Time
}

// EnrollmentDeps зависимости сервиса регистраций
type EnrollmentDeps struct {
	Offerings     repository.OfferingRepository
	Registrations repository.RegistrationRepository
	Payments      repository.PaymentRepository
	Tx            repository.TxManager
	Locks         lock.Manager
	Tracker       counts.Tracker
	Producer      kafka.Producer
	Metrics       metrics.EnrollmentMetrics
	Log           *logger.Logger
	LockTTL       time.Duration
	LockMaxWait   time.Duration
}

// EnrollmentService проводит регистрацию и платеж как одну операцию.
// Пара регистрация-платеж создается, завершается и отменяется вместе,
// а блокировки по ключу пользователь-предложение не дают провести две
// конкурирующие операции одновременно.
type EnrollmentService struct {
	offerings     repository.OfferingRepository
	registrations repository.RegistrationRepository
	payments      repository.PaymentRepository
	tx            repository.TxManager
	locks         lock.Manager
	tracker       counts.Tracker
	producer      kafka.Producer
	metrics       metrics.EnrollmentMetrics
	log           *logger.Logger
	lockTTL       time.Duration
	lockMaxWait   time.Duration

	// Подменяется в тестах
	now func() time.Time
}

// NewEnrollmentService создает новый сервис регистраций
func NewEnrollmentService(deps EnrollmentDeps) *EnrollmentService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Second
	}
	if deps.LockMaxWait <= 0 {
		deps.LockMaxWait = 500 * time.Millisecond
	}
	if deps.Producer == nil {
		deps.Log.Warnw("Kafka producer is nil, event publishing will be skipped")
	}

	return &EnrollmentService{
		offerings:     deps.Offerings,
		registrations: deps.Registrations,
		payments:      deps.Payments,
		tx:            deps.Tx,
		locks:         deps.Locks,
		tracker:       deps.Tracker,
		producer:      deps.Producer,
		metrics:       deps.Metrics,
		log:           deps.Log,
		lockTTL:       deps.LockTTL,
		lockMaxWait:   deps.LockMaxWait,
		now:           time.Now,
	}
}

// Apply регистрирует пользователя на предложение и проводит платеж
func (s *EnrollmentService) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	result, err := s.apply(ctx, input)
	if err != nil {
		s.metrics.RecordApplyFailure(string(input.OfferingKind), failureReason(err))
		return nil, err
	}
	return result, nil
}

func (s *EnrollmentService) apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	offering, err := s.offerings.GetByKindID(ctx, input.OfferingKind, input.OfferingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("offering", input.OfferingID.String())
		}
		return nil, fmt.Errorf("failed to load offering: %w", err)
	}

	key := lock.ApplyKey(input.OfferingKind, input.UserID, input.OfferingID)
	token, err := s.acquireLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(key, token)

	exists, err := s.registrations.ExistsForUserOffering(ctx, input.UserID, input.OfferingKind, input.OfferingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadyRegistered
	}

	now := s.now()
	if err := validateWindow(offering, now); err != nil {
		return nil, err
	}
	if err := validatePrice(offering, input.Amount); err != nil {
		return nil, err
	}

	strategy, err := StrategyFor(input.Method)
	if err != nil {
		return nil, err
	}
	if err := strategy.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	registration := domain.Registration{
		ID:           uuid.New(),
		UserID:       input.UserID,
		OfferingKind: input.OfferingKind,
		OfferingID:   input.OfferingID,
		Status:       domain.RegistrationStatusActive,
		CreatedAt:    now,
	}
	payment := domain.Payment{
		ID:             uuid.New(),
		UserID:         input.UserID,
		RegistrationID: registration.ID,
		TargetKind:     input.OfferingKind,
		TargetID:       input.OfferingID,
		Amount:         input.Amount,
		Method:         input.Method,
		ExternalRef:    strategy.ExternalRef(input.UserID, input.OfferingID),
		Status:         domain.PaymentStatusPaid,
		PaidAt:         now,
	}

	// Регистрация и платеж либо создаются вместе, либо не создаются вовсе
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.registrations.Create(txCtx, registration); err != nil {
			return err
		}
		return s.payments.Create(txCtx, payment)
	})
	if err != nil {
		// Уникальный индекс в БД страхует проверку выше
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to persist registration: %w", err)
	}

	s.markCountDirty(ctx, input.OfferingKind, input.OfferingID)
	s.metrics.RecordApply(string(input.OfferingKind), string(input.Method), input.Amount.InexactFloat64())

	if s.producer != nil {
		event := kafka.RegistrationAppliedEvent{
			RegistrationID: registration.ID,
			PaymentID:      payment.ID,
			UserID:         input.UserID,
			OfferingKind:   input.OfferingKind,
			OfferingID:     input.OfferingID,
			Amount:         input.Amount,
			Method:         input.Method,
			OccurredAt:     now,
		}
		go s.publishEvent(context.WithoutCancel(ctx), kafka.TopicRegistrationApplied, input.UserID, event)
	}

	s.log.Infow("Registration applied",
		"registrationID", registration.ID, "paymentID", payment.ID,
		"userID", input.UserID, "kind", input.OfferingKind, "offeringID", input.OfferingID)

	return &ApplyResult{
		RegistrationID: registration.ID,
		PaymentID:      payment.ID,
		Method:         input.Method,
		ExternalRef:    payment.ExternalRef,
		Fee:            strategy.Fee(input.Amount),
	}, nil
}

// Complete завершает активную регистрацию пользователя на предложение
func (s *EnrollmentService) Complete(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*CompleteResult, error) {
	registration, err := s.registrations.GetByUserOffering(ctx, userID, kind, offeringID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("registration", offeringID.String())
		}
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	switch registration.Status {
	case domain.RegistrationStatusCompleted:
		return nil, domain.ErrAlreadyCompleted
	case domain.RegistrationStatusCancelled:
		return nil, domain.ErrRegistrationCancelled
	}

	completedAt := s.now()
	if err := s.registrations.MarkCompleted(ctx, registration.ID, completedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Статус сменился между чтением и обновлением
			return nil, s.completeRaceError(ctx, registration.ID)
		}
		return nil, fmt.Errorf("failed to mark registration completed: %w", err)
	}

	s.metrics.RecordCompletion(string(kind))

	if s.producer != nil {
		event := kafka.RegistrationCompletedEvent{
			RegistrationID: registration.ID,
			UserID:         userID,
			OfferingKind:   kind,
			OfferingID:     offeringID,
			OccurredAt:     completedAt,
		}
		go s.publishEvent(context.WithoutCancel(ctx), kafka.TopicRegistrationCompleted, userID, event)
	}

	s.log.Infow("Registration completed",
		"registrationID", registration.ID, "userID", userID, "kind", kind, "offeringID", offeringID)

	return &CompleteResult{RegistrationID: registration.ID, CompletedAt: completedAt}, nil
}

// completeRaceError перечитывает регистрацию и подбирает точную ошибку
func (s *EnrollmentService) completeRaceError(ctx context.Context, id uuid.UUID) error {
	current, err := s.registrations.GetByID(ctx, id)
	if err == nil {
		switch current.Status {
		case domain.RegistrationStatusCompleted:
			return domain.ErrAlreadyCompleted
		case domain.RegistrationStatusCancelled:
			return domain.ErrRegistrationCancelled
		}
	}
	return domain.NewNotFoundError("registration", id.String())
}

// CancelPayment отменяет платеж и связанную с ним регистрацию.
// Завершенная регистрация при этом остается завершенной.
func (s *EnrollmentService) CancelPayment(ctx context.Context, input CancelInput) (*CancelResult, error) {
	key := lock.CancelKey(input.PaymentID)
	token, err := s.acquireLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(key, token)

	cancelledAt := s.now()
	var payment *domain.Payment

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		payment, err = s.payments.GetByIDForUpdate(txCtx, input.PaymentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewNotFoundError("payment", input.PaymentID.String())
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}

		// Принадлежность проверяется раньше статуса, чтобы чужой
		// пользователь не узнал состояние платежа
		if payment.UserID != input.UserID {
			return domain.ErrNotOwner
		}
		if payment.Status == domain.PaymentStatusCancelled {
			return domain.ErrAlreadyCancelled
		}

		if err := s.payments.MarkCancelled(txCtx, payment.ID, cancelledAt, input.Reason); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrAlreadyCancelled
			}
			return fmt.Errorf("failed to mark payment cancelled: %w", err)
		}

		registration, err := s.registrations.GetByID(txCtx, payment.RegistrationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load registration: %w", err)
		}

		if registration.Status == domain.RegistrationStatusActive {
			if err := s.registrations.MarkCancelled(txCtx, registration.ID, cancelledAt); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to mark registration cancelled: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.markCountDirty(ctx, payment.TargetKind, payment.TargetID)
	s.metrics.RecordCancellation(string(payment.TargetKind))

	if s.producer != nil {
		event := kafka.PaymentCancelledEvent{
			PaymentID:      payment.ID,
			RegistrationID: payment.RegistrationID,
			UserID:         input.UserID,
			OfferingKind:   payment.TargetKind,
			OfferingID:     payment.TargetID,
			Amount:         payment.Amount,
			Reason:         input.Reason,
			OccurredAt:     cancelledAt,
		}
		go s.publishEvent(context.WithoutCancel(ctx), kafka.TopicPaymentCancelled, input.UserID, event)
	}

	s.log.Infow("Payment cancelled",
		"paymentID", payment.ID, "registrationID", payment.RegistrationID,
		"userID", input.UserID, "reason", input.Reason)

	return &CancelResult{PaymentID: payment.ID, CancelledAt: cancelledAt}, nil
}

// acquireLock захватывает блокировку и переводит ошибки в доменные
func (s *EnrollmentService) acquireLock(ctx context.Context, key string) (string, error) {
	start := time.Now()
	token, err := s.locks.AcquireWithRetry(ctx, key, s.lockTTL, s.lockMaxWait)
	s.metrics.RecordLockWait(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, lock.ErrBusy):
			s.metrics.RecordLockBusy()
			return "", domain.ErrOperationInProgress
		case errors.Is(err, lock.ErrUnavailable):
			return "", domain.ErrLockUnavailable
		}
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}

	return token, nil
}

// releaseLock снимает блокировку на свежем контексте, чтобы отмена
// исходного запроса не оставила ключ висеть до конца TTL
func (s *EnrollmentService) releaseLock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := s.locks.Release(ctx, key, token); err != nil {
		s.log.Warnw("Failed to release lock", "error", err, "key", key)
	}
}

// markCountDirty помечает предложение на пересчет счетчика
func (s *EnrollmentService) markCountDirty(ctx context.Context, kind domain.OfferingKind, offeringID uuid.UUID) {
	if s.tracker == nil {
		return
	}
	s.tracker.MarkDirty(context.WithoutCancel(ctx), kind, offeringID)
}

// publishEvent отправляет событие в Kafka из фоновой горутины
func (s *EnrollmentService) publishEvent(ctx context.Context, topic, key string, event any) {
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.producer.Publish(publishCtx, topic, key, event); err != nil {
		s.log.Errorw("Failed to publish event", "error", err, "topic", topic)
	}
}

// failureReason метка причины отказа для метрик
func failureReason(err error) string {
	var validationErr *domain.ValidationError
	var priceErr *domain.PriceMismatchError

	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return "duplicate"
	case errors.Is(err, domain.ErrOperationInProgress):
		return "lock_busy"
	case errors.Is(err, domain.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &priceErr):
		return domain.CodePriceMismatch
	case errors.As(err, &validationErr):
		return validationErr.Code
	}
	return "internal"
}
