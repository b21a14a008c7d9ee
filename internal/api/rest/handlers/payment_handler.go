package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/api/rest/middleware"
	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/service"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// PaymentCanceller операция отмены платежа
type PaymentCanceller interface {
	CancelPayment(ctx context.Context, input service.CancelInput) (*service.CancelResult, error)
}

// PaymentReader операции чтения платежей пользователя
type PaymentReader interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Payment, error)
	GetForUser(ctx context.Context, userID string, paymentID uuid.UUID) (*domain.Payment, error)
}

// PaymentHandler обработчик для платежей
type PaymentHandler struct {
	coordinator PaymentCanceller
	reader      PaymentReader
	log         *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(coordinator PaymentCanceller, reader PaymentReader, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		coordinator: coordinator,
		reader:      reader,
		log:         log,
	}
}

// cancelRequest необязательное тело запроса на отмену
type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel отменяет платеж вместе со связанной регистрацией
func (h *PaymentHandler) Cancel(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: domain.CodeInvalidRequest})
			return
		}
	}

	result, err := h.coordinator.CancelPayment(c.Request.Context(), service.CancelInput{
		UserID:    middleware.UserID(c),
		PaymentID: paymentID,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "payment cancelled",
		"payment_id":   result.PaymentID,
		"cancelled_at": result.CancelledAt,
	})
}

// List возвращает платежи пользователя, новые первыми
func (h *PaymentHandler) List(c *gin.Context) {
	payments, err := h.reader.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if payments == nil {
		payments = []domain.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// Get возвращает платеж по ID
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.reader.GetForUser(c.Request.Context(), middleware.UserID(c), paymentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
