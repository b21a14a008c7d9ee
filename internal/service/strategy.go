package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// PaymentStrategy параметры обработки одного способа оплаты
type PaymentStrategy struct {
	Method    domain.PaymentMethod
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	FeeRate   decimal.Decimal
	RefPrefix string
}

// Границы сумм и комиссии по способам оплаты
var methodStrategies = map[domain.PaymentMethod]PaymentStrategy{
	domain.PaymentMethodKakaoPay: {
		Method:    domain.PaymentMethodKakaoPay,
		MinAmount: decimal.NewFromInt(100),
		MaxAmount: decimal.NewFromInt(50000000),
		FeeRate:   decimal.RequireFromString("0.029"),
		RefPrefix: "KAKAO",
	},
	domain.PaymentMethodCard: {
		Method:    domain.PaymentMethodCard,
		MinAmount: decimal.NewFromInt(1000),
		MaxAmount: decimal.NewFromInt(100000000),
		FeeRate:   decimal.RequireFromString("0.032"),
		RefPrefix: "CARD",
	},
	domain.PaymentMethodBankTransfer: {
		Method:    domain.PaymentMethodBankTransfer,
		MinAmount: decimal.NewFromInt(1000),
		MaxAmount: decimal.NewFromInt(200000000),
		FeeRate:   decimal.RequireFromString("0.005"),
		RefPrefix: "BANK",
	},
}

// StrategyFor возвращает стратегию для способа оплаты
func StrategyFor(method domain.PaymentMethod) (PaymentStrategy, error) {
	strategy, ok := methodStrategies[method]
	if !ok {
		return PaymentStrategy{}, domain.NewValidationError(domain.CodeInvalidMethod,
			"unsupported payment method: %s", method)
	}
	return strategy, nil
}

// ValidateAmount проверяет сумму против границ способа оплаты
func (s PaymentStrategy) ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThan(s.MinAmount) || amount.GreaterThan(s.MaxAmount) {
		return domain.NewValidationError(domain.CodeAmountBounds,
			"amount %s is outside the allowed range %s..%s for %s",
			amount, s.MinAmount, s.MaxAmount, s.Method)
	}
	return nil
}

// Fee считает комиссию способа оплаты, округленную до двух знаков
func (s PaymentStrategy) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.FeeRate).Round(2)
}

// ExternalRef строит внешний идентификатор платежа
func (s PaymentStrategy) ExternalRef(userID string, offeringID uuid.UUID) string {
	return fmt.Sprintf("%s_%s_%s", s.RefPrefix, userID, offeringID)
}
