package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// errorResponse тело любой ошибки API
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError переводит доменную ошибку в HTTP ответ. Неизвестные
// ошибки логируются и наружу не утекают.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	var validationErr *domain.ValidationError
	var priceErr *domain.PriceMismatchError
	var notFoundErr *domain.NotFoundError

	switch {
	case errors.As(err, &priceErr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: priceErr.Error(), Code: domain.CodePriceMismatch})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Message, Code: validationErr.Code})
	case errors.Is(err, domain.ErrAlreadyCompleted):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "already_completed"})
	case errors.Is(err, domain.ErrRegistrationCancelled):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "registration_cancelled"})
	case errors.Is(err, domain.ErrAlreadyCancelled):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "already_cancelled"})
	case errors.Is(err, domain.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "duplicate_registration"})
	case errors.Is(err, domain.ErrOperationInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "operation_in_progress"})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, errorResponse{Error: notFoundErr.Error(), Code: "not_found"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found", Code: "not_found"})
	case errors.Is(err, domain.ErrNotOwner):
		c.JSON(http.StatusForbidden, errorResponse{Error: err.Error(), Code: "forbidden"})
	case errors.Is(err, domain.ErrLockUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Code: "unavailable"})
	default:
		log.Errorw("Unhandled error", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal_error"})
	}
}

// parseKind достает вид предложения из пути
func parseKind(c *gin.Context) (domain.OfferingKind, bool) {
	kind, ok := domain.ParseOfferingKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("unknown offering kind %q", c.Param("kind")),
			Code:  "not_found",
		})
		return "", false
	}
	return kind, true
}

// parseUUIDParam достает UUID из параметра пути
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("invalid %s %q", name, c.Param(name)),
			Code:  "not_found",
		})
		return uuid.Nil, false
	}
	return id, true
}
