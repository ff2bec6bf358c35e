package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) Create(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderStore) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockListingGetter struct {
	mock.Mock
}

func (m *mockListingGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func newOrderService(orders OrderStore, listings ListingGetter) *OrderService {
	return NewOrderService(orders, listings, events.NoopPublisher{}, nil)
}

func TestOrderService_Create_Success(t *testing.T) {
	orders := new(mockOrderStore)
	listings := new(mockListingGetter)
	svc := newOrderService(orders, listings)
	ctx := context.Background()

	listingID := uuid.New()
	seekerID := uuid.New()
	providerID := uuid.New()
	listing := &models.Listing{ID: listingID, ProviderID: providerID, UnitPrice: 1200, Unit: "га", IsActive: true}

	listings.On("GetByID", ctx, listingID).Return(listing, nil)
	orders.On("Create", ctx, mock.MatchedBy(func(o *models.Order) bool {
		return o.ProviderID == providerID &&
			o.TotalAmount == 1200*3.5 &&
			o.Status == models.OrderStatusPending &&
			o.Unit == "га" &&
			o.ExpiresAt.After(time.Now())
	})).Return(nil)

	order, err := svc.Create(ctx, CreateOrderInput{
		ListingID: listingID,
		SeekerID:  seekerID,
		Type:      models.OrderTypeHiring,
		Quantity:  3.5,
	})
	assert.NoError(t, err)
	assert.Equal(t, seekerID, order.SeekerID)
	orders.AssertExpectations(t)
}

func TestOrderService_Create_UnknownType(t *testing.T) {
	svc := newOrderService(new(mockOrderStore), new(mockListingGetter))

	_, err := svc.Create(context.Background(), CreateOrderInput{
		ListingID: uuid.New(),
		SeekerID:  uuid.New(),
		Type:      "barter",
		Quantity:  1,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_Create_InactiveListing(t *testing.T) {
	orders := new(mockOrderStore)
	listings := new(mockListingGetter)
	svc := newOrderService(orders, listings)
	ctx := context.Background()

	listingID := uuid.New()
	listing := &models.Listing{ID: listingID, ProviderID: uuid.New(), UnitPrice: 500, IsActive: false}
	listings.On("GetByID", ctx, listingID).Return(listing, nil)

	_, err := svc.Create(ctx, CreateOrderInput{
		ListingID: listingID,
		SeekerID:  uuid.New(),
		Type:      models.OrderTypeRental,
		Quantity:  2,
	})
	assert.True(t, apperror.IsInvalidState(err))
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_Create_OwnListing(t *testing.T) {
	orders := new(mockOrderStore)
	listings := new(mockListingGetter)
	svc := newOrderService(orders, listings)
	ctx := context.Background()

	listingID := uuid.New()
	providerID := uuid.New()
	listing := &models.Listing{ID: listingID, ProviderID: providerID, UnitPrice: 500, IsActive: true}
	listings.On("GetByID", ctx, listingID).Return(listing, nil)

	_, err := svc.Create(ctx, CreateOrderInput{
		ListingID: listingID,
		SeekerID:  providerID,
		Type:      models.OrderTypeRental,
		Quantity:  2,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_Create_ServiceWindowInverted(t *testing.T) {
	svc := newOrderService(new(mockOrderStore), new(mockListingGetter))

	start := time.Now().Add(48 * time.Hour)
	end := start.Add(-time.Hour)
	_, err := svc.Create(context.Background(), CreateOrderInput{
		ListingID:      uuid.New(),
		SeekerID:       uuid.New(),
		Type:           models.OrderTypeHiring,
		Quantity:       1,
		ServiceStartAt: &start,
		ServiceEndAt:   &end,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_Get_Forbidden(t *testing.T) {
	orders := new(mockOrderStore)
	svc := newOrderService(orders, new(mockListingGetter))
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: uuid.New(), ProviderID: uuid.New()}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Get(ctx, orderID, uuid.New(), models.RoleProvider)
	assert.True(t, apperror.IsForbidden(err))

	got, err := svc.Get(ctx, orderID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, order, got)
}

func TestOrderService_UpdateStatus_NoSequenceCheck(t *testing.T) {
	orders := new(mockOrderStore)
	svc := newOrderService(orders, new(mockListingGetter))
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	pending := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), Status: models.OrderStatusPending}
	completed := &models.Order{ID: orderID, SeekerID: seekerID, Status: models.OrderStatusCompleted}

	orders.On("GetByID", ctx, orderID).Return(pending, nil)
	// pending -> completed проходит без промежуточных статусов.
	orders.On("UpdateStatus", ctx, orderID, models.OrderStatusCompleted).Return(completed, nil)

	order, err := svc.UpdateStatus(ctx, orderID, models.OrderStatusCompleted, seekerID, models.RoleSeeker)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestOrderService_UpdateStatus_UnknownStatus(t *testing.T) {
	svc := newOrderService(new(mockOrderStore), new(mockListingGetter))

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "archived", uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderService_UpdateStatus_NotFound(t *testing.T) {
	orders := new(mockOrderStore)
	svc := newOrderService(orders, new(mockListingGetter))
	ctx := context.Background()

	orderID := uuid.New()
	orders.On("GetByID", ctx, orderID).Return(nil, repository.ErrOrderNotFound)

	_, err := svc.UpdateStatus(ctx, orderID, models.OrderStatusAccepted, uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrderService_ExpireStale(t *testing.T) {
	orders := new(mockOrderStore)
	svc := newOrderService(orders, new(mockListingGetter))
	ctx := context.Background()

	orders.On("ExpirePending", ctx, mock.AnythingOfType("time.Time")).Return(int64(3), nil)

	count, err := svc.ExpireStale(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
