package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

type mockRatingStore struct {
	mock.Mock
}

func (m *mockRatingStore) Create(ctx context.Context, rating *models.Rating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *mockRatingStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Rating), args.Error(1)
}

func (m *mockRatingStore) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func TestRatingService_Rate_Success(t *testing.T) {
	ratings := new(mockRatingStore)
	orders := new(mockOrderGetter)
	svc := NewRatingService(ratings, orders, nil)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	providerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: providerID, Status: models.OrderStatusCompleted}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	ratings.On("Create", ctx, mock.MatchedBy(func(r *models.Rating) bool {
		return r.RaterID == seekerID && r.RatedID == providerID && r.Score == 5
	})).Return(nil)

	rating, err := svc.Rate(ctx, orderID, seekerID, 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, providerID, rating.RatedID)
}

func TestRatingService_Rate_OrderNotCompleted(t *testing.T) {
	ratings := new(mockRatingStore)
	orders := new(mockOrderGetter)
	svc := NewRatingService(ratings, orders, nil)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), Status: models.OrderStatusPaid}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Rate(ctx, orderID, seekerID, 4, nil)
	assert.True(t, apperror.IsInvalidState(err))
	ratings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRatingService_Rate_Outsider(t *testing.T) {
	ratings := new(mockRatingStore)
	orders := new(mockOrderGetter)
	svc := NewRatingService(ratings, orders, nil)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: uuid.New(), ProviderID: uuid.New(), Status: models.OrderStatusCompleted}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Rate(ctx, orderID, uuid.New(), 4, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestRatingService_Rate_ScoreOutOfRange(t *testing.T) {
	svc := NewRatingService(new(mockRatingStore), new(mockOrderGetter), nil)

	_, err := svc.Rate(context.Background(), uuid.New(), uuid.New(), 6, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Rate(context.Background(), uuid.New(), uuid.New(), 0, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestRatingService_Rate_Duplicate(t *testing.T) {
	ratings := new(mockRatingStore)
	orders := new(mockOrderGetter)
	svc := NewRatingService(ratings, orders, nil)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), Status: models.OrderStatusCompleted}
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	ratings.On("Create", ctx, mock.Anything).Return(repository.ErrRatingExists)

	_, err := svc.Rate(ctx, orderID, seekerID, 3, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestRatingService_SummaryForUser(t *testing.T) {
	ratings := new(mockRatingStore)
	svc := NewRatingService(ratings, new(mockOrderGetter), nil)
	ctx := context.Background()

	userID := uuid.New()
	expected := &models.RatingSummary{AvgScore: 4.5, Count: 12}
	ratings.On("SummaryForUser", ctx, userID).Return(expected, nil)

	summary, err := svc.SummaryForUser(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, expected, summary)
}
