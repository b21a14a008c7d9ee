package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enrollhub/enrollment-service/internal/api/rest/middleware"
	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/service"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// EnrollmentCoordinator операции координатора, нужные обработчику
type EnrollmentCoordinator interface {
	Apply(ctx context.Context, input service.ApplyInput) (*service.ApplyResult, error)
	Complete(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.CompleteResult, error)
}

// EnrollmentHandler обработчик регистраций на предложения
type EnrollmentHandler struct {
	service EnrollmentCoordinator
	log     *logger.Logger
}

// NewEnrollmentHandler создает новый обработчик регистраций
func NewEnrollmentHandler(service EnrollmentCoordinator, log *logger.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		log:     log,
	}
}

// applyRequest тело запроса на регистрацию. Сумма приходит строкой и
// разбирается в десятичное число без потери точности.
type applyRequest struct {
	Amount        string `json:"amount" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,paymentmethod"`
}

// Apply регистрирует пользователя на предложение и проводит платеж
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	offeringID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindingError(c, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid amount %q", req.Amount),
			Code:  domain.CodeInvalidRequest,
		})
		return
	}

	result, err := h.service.Apply(c.Request.Context(), service.ApplyInput{
		UserID:       middleware.UserID(c),
		OfferingKind: kind,
		OfferingID:   offeringID,
		Amount:       amount,
		Method:       domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "registration applied",
		"registration_id": result.RegistrationID,
		"payment_id":      result.PaymentID,
		"payment_method":  result.Method,
		"transaction_metadata": gin.H{
			"external_ref": result.ExternalRef,
			"fee":          result.Fee,
		},
	})
}

// Complete завершает активную регистрацию пользователя
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	offeringID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Complete(c.Request.Context(), middleware.UserID(c), kind, offeringID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "registration completed",
		"registration_id": result.RegistrationID,
		"completed_at":    result.CompletedAt,
	})
}

// writeBindingError показывает точный код для своих правил валидации
func (h *EnrollmentHandler) writeBindingError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			if fieldErr.Tag() == "paymentmethod" {
				c.JSON(http.StatusBadRequest, errorResponse{
					Error: fmt.Sprintf("unsupported payment method %v", fieldErr.Value()),
					Code:  domain.CodeInvalidMethod,
				})
				return
			}
		}
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: domain.CodeInvalidRequest})
}
