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

// CatalogReader операции чтения каталога предложений
type CatalogReader interface {
	ListOfferings(ctx context.Context, userID string, kind domain.OfferingKind) ([]service.OfferingView, error)
	GetOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*service.OfferingView, error)
}

// CatalogHandler обработчик каталога предложений
type CatalogHandler struct {
	service CatalogReader
	log     *logger.Logger
}

// NewCatalogHandler создает новый обработчик каталога
func NewCatalogHandler(service CatalogReader, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log,
	}
}

// List возвращает предложения указанного вида
func (h *CatalogHandler) List(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	views, err := h.service.ListOfferings(c.Request.Context(), middleware.UserID(c), kind)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offerings": views})
}

// Get возвращает предложение по виду и ID
func (h *CatalogHandler) Get(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	offeringID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	view, err := h.service.GetOffering(c.Request.Context(), middleware.UserID(c), kind, offeringID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
