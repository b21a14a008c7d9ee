package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// validateWindow проверяет, что предложение открыто для регистрации
func validateWindow(offering *domain.Offering, now time.Time) error {
	if !offering.IsOpenAt(now) {
		return domain.NewValidationError(domain.CodeOutsideWindow,
			"registration for %s %q is open from %s to %s",
			offering.Kind, offering.Title,
			offering.StartAt.Format(time.RFC3339), offering.EndAt.Format(time.RFC3339))
	}
	return nil
}

// validatePrice сверяет сумму запроса с ценой предложения
func validatePrice(offering *domain.Offering, submitted decimal.Decimal) error {
	if !offering.Price.Equal(submitted) {
		return &domain.PriceMismatchError{Expected: offering.Price, Submitted: submitted}
	}
	return nil
}
