package kafka

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// RegistrationAppliedEvent публикуется после создания регистрации и платежа
type RegistrationAppliedEvent struct {
	RegistrationID uuid.UUID            `json:"registration_id"`
	PaymentID      uuid.UUID            `json:"payment_id"`
	UserID         string               `json:"user_id"`
	OfferingKind   domain.OfferingKind  `json:"offering_kind"`
	OfferingID     uuid.UUID            `json:"offering_id"`
	Amount         decimal.Decimal      `json:"amount"`
	Method         domain.PaymentMethod `json:"payment_method"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// RegistrationCompletedEvent публикуется после завершения регистрации
type RegistrationCompletedEvent struct {
	RegistrationID uuid.UUID           `json:"registration_id"`
	UserID         string              `json:"user_id"`
	OfferingKind   domain.OfferingKind `json:"offering_kind"`
	OfferingID     uuid.UUID           `json:"offering_id"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// PaymentCancelledEvent публикуется после отмены платежа
type PaymentCancelledEvent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	RegistrationID uuid.UUID           `json:"registration_id"`
	UserID         string              `json:"user_id"`
	OfferingKind   domain.OfferingKind `json:"offering_kind"`
	OfferingID     uuid.UUID           `json:"offering_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Reason         string              `json:"reason,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}
