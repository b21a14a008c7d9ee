package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus статус жизненного цикла регистрации. Статусы completed
// и cancelled терминальны, записи никогда не удаляются.
type RegistrationStatus string

const (
	RegistrationStatusActive    RegistrationStatus = "active"
	RegistrationStatusCompleted RegistrationStatus = "completed"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
)

// Registration связывает пользователя с оплаченным предложением. На пару
// пользователь-предложение существует не более одной записи в любом статусе.
type Registration struct {
	ID           uuid.UUID          `json:"id"`
	UserID       string             `json:"user_id"`
	OfferingKind OfferingKind       `json:"offering_kind"`
	OfferingID   uuid.UUID          `json:"offering_id"`
	Status       RegistrationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
}
