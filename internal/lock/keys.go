package lock

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// ApplyKey ключ блокировки регистрации пользователя на предложение.
// Шаблон ключа зависит от типа предложения.
func ApplyKey(kind domain.OfferingKind, userID string, offeringID uuid.UUID) string {
	if kind == domain.OfferingKindCourse {
		return fmt.Sprintf("enrollment:user:%s:course:%s", userID, offeringID)
	}
	return fmt.Sprintf("payment:user:%s:test:%s", userID, offeringID)
}

// CancelKey ключ блокировки отмены платежа
func CancelKey(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:cancel:%s", paymentID)
}
