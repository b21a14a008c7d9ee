package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/enrollhub/enrollment-service/internal/domain"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// OfferingView предложение вместе с признаком регистрации пользователя
type OfferingView struct {
	domain.Offering
	IsRegistered bool `json:"is_registered"`
}

// CatalogService отдает каталог предложений
type CatalogService struct {
	offerings     repository.OfferingRepository
	registrations repository.RegistrationRepository
	log           *logger.Logger
}

// NewCatalogService создает новый сервис каталога
func NewCatalogService(offerings repository.OfferingRepository, registrations repository.RegistrationRepository, log *logger.Logger) *CatalogService {
	return &CatalogService{
		offerings:     offerings,
		registrations: registrations,
		log:           log,
	}
}

// ListOfferings возвращает предложения указанного вида.
// Для авторизованного пользователя проставляется признак регистрации.
func (s *CatalogService) ListOfferings(ctx context.Context, userID string, kind domain.OfferingKind) ([]OfferingView, error) {
	offerings, err := s.offerings.ListByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}

	registered := make(map[uuid.UUID]bool)
	if userID != "" {
		ids, err := s.registrations.OfferingIDsForUser(ctx, userID, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load user registrations: %w", err)
		}
		for _, id := range ids {
			registered[id] = true
		}
	}

	views := make([]OfferingView, 0, len(offerings))
	for _, offering := range offerings {
		views = append(views, OfferingView{
			Offering:     offering,
			IsRegistered: registered[offering.ID],
		})
	}

	return views, nil
}

// GetOffering возвращает предложение с признаком регистрации пользователя
func (s *CatalogService) GetOffering(ctx context.Context, userID string, kind domain.OfferingKind, offeringID uuid.UUID) (*OfferingView, error) {
	offering, err := s.offerings.GetByKindID(ctx, kind, offeringID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("offering", offeringID.String())
		}
		return nil, fmt.Errorf("failed to load offering: %w", err)
	}

	view := &OfferingView{Offering: *offering}

	if userID != "" {
		registration, err := s.registrations.GetByUserOffering(ctx, userID, kind, offeringID)
		switch {
		case err == nil:
			view.IsRegistered = registration.Status != domain.RegistrationStatusCancelled
		case errors.Is(err, repository.ErrNotFound):
			// Пользователь не регистрировался
		default:
			return nil, fmt.Errorf("failed to load registration: %w", err)
		}
	}

	return view, nil
}
