package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod способ оплаты, выбранный пользователем
type PaymentMethod string

const (
	PaymentMethodKakaoPay     PaymentMethod = "kakaopay"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ParsePaymentMethod проверяет строку способа оплаты, пришедшую извне
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodKakaoPay, PaymentMethodCard, PaymentMethodBankTransfer:
		return PaymentMethod(s), true
	}
	return "", false
}

// PaymentStatus статус жизненного цикла платежа
type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment денежная сторона регистрации. Суммы везде хранятся как
// десятичные числа с фиксированной точкой, никогда как float.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	RegistrationID uuid.UUID       `json:"registration_id"`
	TargetKind     OfferingKind    `json:"target_kind"`
	TargetID       uuid.UUID       `json:"target_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"payment_method"`
	ExternalRef    string          `json:"external_ref"`
	Status         PaymentStatus   `json:"status"`
	RefundReason   string          `json:"refund_reason,omitempty"`
	PaidAt         time.Time       `json:"paid_at"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
}
