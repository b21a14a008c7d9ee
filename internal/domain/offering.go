package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferingKind тип предложения, доступного для регистрации
type OfferingKind string

const (
	OfferingKindTest   OfferingKind = "test"
	OfferingKindCourse OfferingKind = "course"
)

// ParseOfferingKind проверяет строку типа предложения, пришедшую извне
func ParseOfferingKind(s string) (OfferingKind, bool) {
	switch OfferingKind(s) {
	case OfferingKindTest, OfferingKindCourse:
		return OfferingKind(s), true
	}
	return "", false
}

// Offering предложение с окном регистрации, за которое пользователь платит
type Offering struct {
	ID                uuid.UUID       `json:"id"`
	Kind              OfferingKind    `json:"kind"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	StartAt           time.Time       `json:"start_at"`
	EndAt             time.Time       `json:"end_at"`
	RegistrationCount int             `json:"registration_count"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsOpenAt сообщает, принимает ли предложение регистрации в данный момент.
// Обе границы окна включительны.
func (o *Offering) IsOpenAt(now time.Time) bool {
	return !now.Before(o.StartAt) && !now.After(o.EndAt)
}
