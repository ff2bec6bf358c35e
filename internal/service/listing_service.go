package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
	"github.com/agrovoz/agromarket-backend/internal/validation"
)

// ListingStore описывает зависимости ListingService от слоя хранилища.
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, category string, limit, offset int) ([]models.Listing, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Listing, error)
	Update(ctx context.Context, l *models.Listing) error
	Delete(ctx context.Context, id, providerID uuid.UUID) error
}

// ListingService инкапсулирует бизнес-логику объявлений.
type ListingService struct {
	listings ListingStore
}

// NewListingService создаёт сервис объявлений.
func NewListingService(listings ListingStore) *ListingService {
	return &ListingService{listings: listings}
}

// ListingInput содержит редактируемые поля объявления.
type ListingInput struct {
	Title       string
	Description *string
	Category    string
	UnitPrice   float64
	Unit        string
	Region      *string
	IsActive    bool
	PhotoID     *uuid.UUID
}

// validate проверяет поля объявления.
func (in *ListingInput) validate() error {
	if err := validation.ValidateListingTitle(in.Title); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.Description != nil {
		if err := validation.ValidateListingDescription(*in.Description); err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if _, ok := models.ValidListingCategories[in.Category]; !ok {
		return apperror.New(apperror.ErrCodeValidation, "неизвестная категория объявления")
	}
	if err := validation.ValidatePrice(in.UnitPrice); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateNonEmpty("единица измерения", in.Unit); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateRegion(in.Region); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	return nil
}

// Create публикует новое объявление поставщика.
func (s *ListingService) Create(ctx context.Context, providerID uuid.UUID, in ListingInput) (*models.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	listing := &models.Listing{
		ProviderID:  providerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		UnitPrice:   in.UnitPrice,
		Unit:        in.Unit,
		Region:      in.Region,
		IsActive:    in.IsActive,
		PhotoID:     in.PhotoID,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, mapListingError(err)
	}
	return listing, nil
}

// Get возвращает объявление по идентификатору.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, mapListingError(err)
	}
	return listing, nil
}

// List возвращает активные объявления, опционально по категории.
func (s *ListingService) List(ctx context.Context, category string, limit, offset int) ([]models.Listing, error) {
	if category != "" {
		if _, ok := models.ValidListingCategories[category]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "неизвестная категория объявления")
		}
	}

	list, err := s.listings.List(ctx, category, limit, offset)
	if err != nil {
		return nil, mapListingError(err)
	}
	return list, nil
}

// ListMine возвращает все объявления поставщика, включая снятые.
func (s *ListingService) ListMine(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	list, err := s.listings.ListByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, mapListingError(err)
	}
	return list, nil
}

// Update обновляет объявление. Разрешено только владельцу.
func (s *ListingService) Update(ctx context.Context, id, providerID uuid.UUID, in ListingInput) (*models.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, mapListingError(err)
	}
	if current.ProviderID != providerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "объявление принадлежит другому поставщику")
	}

	current.Title = in.Title
	current.Description = in.Description
	current.Category = in.Category
	current.UnitPrice = in.UnitPrice
	current.Unit = in.Unit
	current.Region = in.Region
	current.IsActive = in.IsActive
	current.PhotoID = in.PhotoID

	if err := s.listings.Update(ctx, current); err != nil {
		return nil, mapListingError(err)
	}
	return current, nil
}

// Delete удаляет объявление владельца.
func (s *ListingService) Delete(ctx context.Context, id, providerID uuid.UUID) error {
	if err := s.listings.Delete(ctx, id, providerID); err != nil {
		return mapListingError(err)
	}
	return nil
}

// mapListingError переводит ошибки репозитория в ошибки приложения.
func mapListingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrListingNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "объявление не найдено")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса объявлений")
	}
}
