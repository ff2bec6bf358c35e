package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agrovoz/agromarket-backend/internal/cache"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
	"github.com/agrovoz/agromarket-backend/internal/validation"
)

const ratingSummaryTTL = 1 * time.Minute

// RatingStore описывает зависимости RatingService от слоя хранилища.
type RatingStore interface {
	Create(ctx context.Context, rating *models.Rating) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error)
	SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error)
}

// RatingService инкапсулирует оценки контрагентов.
type RatingService struct {
	ratings RatingStore
	orders  OrderGetter
	cache   *cache.Cache
}

// NewRatingService создаёт сервис оценок.
func NewRatingService(ratings RatingStore, orders OrderGetter, c *cache.Cache) *RatingService {
	return &RatingService{ratings: ratings, orders: orders, cache: c}
}

// Rate выставляет оценку второй стороне завершённого заказа.
func (s *RatingService) Rate(ctx context.Context, orderID, raterID uuid.UUID, score int, comment *string) (*models.Rating, error) {
	if err := validation.ValidateRatingScore(score); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateRatingComment(comment); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRatingError(err)
	}

	rated, ok := order.OtherParty(raterID)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeForbidden, "оценку может оставить только сторона заказа")
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "оценка доступна только по завершённому заказу")
	}

	rating := &models.Rating{
		OrderID: orderID,
		RaterID: raterID,
		RatedID: rated,
		Score:   score,
		Comment: comment,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		return nil, mapRatingError(err)
	}

	if s.cache != nil {
		s.cache.Delete(cache.RatingSummaryCacheKey(rated))
	}

	return rating, nil
}

// ListForUser возвращает полученные пользователем оценки.
func (s *RatingService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	list, err := s.ratings.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapRatingError(err)
	}
	return list, nil
}

// SummaryForUser возвращает среднюю оценку и количество отзывов.
func (s *RatingService) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	if s.cache == nil {
		summary, err := s.ratings.SummaryForUser(ctx, userID)
		if err != nil {
			return nil, mapRatingError(err)
		}
		return summary, nil
	}

	value, err := s.cache.GetOrSet(ctx, cache.RatingSummaryCacheKey(userID), ratingSummaryTTL, func() (interface{}, error) {
		return s.ratings.SummaryForUser(ctx, userID)
	})
	if err != nil {
		return nil, mapRatingError(err)
	}

	summary, ok := value.(*models.RatingSummary)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка кэша оценок")
	}
	return summary, nil
}

// mapRatingError переводит ошибки репозитория в ошибки приложения.
func mapRatingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "заказ не найден")
	case errors.Is(err, repository.ErrRatingExists):
		return apperror.New(apperror.ErrCodeConflict, "оценка по этому заказу уже оставлена")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса оценок")
	}
}
