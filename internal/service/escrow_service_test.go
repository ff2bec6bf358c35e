package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

type mockEscrowStore struct {
	mock.Mock
}

func (m *mockEscrowStore) Create(ctx context.Context, orderID uuid.UUID, amount float64) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) Release(ctx context.Context, orderID, actorID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) Refund(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) PartialRefund(ctx context.Context, orderID uuid.UUID, refundAmount float64, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, refundAmount, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowStore) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.EscrowSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowSummary), args.Error(1)
}

type mockOrderGetter struct {
	mock.Mock
}

func (m *mockOrderGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func newEscrowService(escrows EscrowStore, orders OrderGetter) *EscrowService {
	return NewEscrowService(escrows, orders, events.NoopPublisher{}, nil, nil)
}

func TestEscrowService_Open_FullAmountByDefault(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), TotalAmount: 15000}
	expected := &models.Escrow{ID: uuid.New(), OrderID: orderID, SeekerID: seekerID, Amount: 15000, Status: models.EscrowStatusHeld}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	escrows.On("Create", ctx, orderID, float64(15000)).Return(expected, nil)

	escrow, err := svc.Open(ctx, orderID, 0, seekerID, models.RoleSeeker)
	assert.NoError(t, err)
	assert.Equal(t, expected, escrow)
	escrows.AssertExpectations(t)
}

func TestEscrowService_Open_NotParty(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: uuid.New(), ProviderID: uuid.New(), TotalAmount: 15000}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Open(ctx, orderID, 0, uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsForbidden(err))
	escrows.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Open_AlreadyExists(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), TotalAmount: 15000}
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	escrows.On("Create", ctx, orderID, float64(15000)).Return(nil, repository.ErrEscrowExists)

	_, err := svc.Open(ctx, orderID, 0, seekerID, models.RoleSeeker)
	assert.True(t, apperror.IsConflict(err))
}

func TestEscrowService_Open_NegativeAmount(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), TotalAmount: 15000}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Open(ctx, orderID, -500, seekerID, models.RoleSeeker)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_Release_OnlySeeker(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	providerID := uuid.New()
	held := &models.Escrow{OrderID: orderID, SeekerID: seekerID, ProviderID: providerID, Amount: 7000, Status: models.EscrowStatusHeld}
	escrows.On("GetByOrderID", ctx, orderID).Return(held, nil)

	// Поставщик не может выплатить средства сам себе.
	_, err := svc.Release(ctx, orderID, providerID, models.RoleProvider)
	assert.True(t, apperror.IsForbidden(err))
	escrows.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)

	released := &models.Escrow{OrderID: orderID, SeekerID: seekerID, ProviderID: providerID, Amount: 7000, Status: models.EscrowStatusReleased}
	escrows.On("Release", ctx, orderID, seekerID).Return(released, nil)

	escrow, err := svc.Release(ctx, orderID, seekerID, models.RoleSeeker)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, escrow.Status)
}

func TestEscrowService_Release_TerminalState(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	refunded := &models.Escrow{OrderID: orderID, SeekerID: seekerID, ProviderID: uuid.New(), Status: models.EscrowStatusRefunded}
	escrows.On("GetByOrderID", ctx, orderID).Return(refunded, nil)
	escrows.On("Release", ctx, orderID, seekerID).Return(nil, repository.ErrEscrowInvalidState)

	_, err := svc.Release(ctx, orderID, seekerID, models.RoleSeeker)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestEscrowService_Refund_RequiresReason(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	_, err := svc.Refund(ctx, uuid.New(), "", uuid.New(), models.RoleProvider)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_Refund_OnlyProvider(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	providerID := uuid.New()
	held := &models.Escrow{OrderID: orderID, SeekerID: seekerID, ProviderID: providerID, Amount: 4000, Status: models.EscrowStatusHeld}
	escrows.On("GetByOrderID", ctx, orderID).Return(held, nil)

	_, err := svc.Refund(ctx, orderID, "не смогу выполнить заказ", seekerID, models.RoleSeeker)
	assert.True(t, apperror.IsForbidden(err))

	refunded := &models.Escrow{OrderID: orderID, SeekerID: seekerID, ProviderID: providerID, Amount: 4000, Status: models.EscrowStatusRefunded}
	escrows.On("Refund", ctx, orderID, "не смогу выполнить заказ", &providerID).Return(refunded, nil)

	escrow, err := svc.Refund(ctx, orderID, "не смогу выполнить заказ", providerID, models.RoleProvider)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, escrow.Status)
}

func TestEscrowService_PartialRefund_AdminOnly(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	_, err := svc.PartialRefund(ctx, orderID, 1000, "компромисс", uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsForbidden(err))

	adminID := uuid.New()
	refundAmount := 1000.0
	partial := &models.Escrow{OrderID: orderID, SeekerID: uuid.New(), ProviderID: uuid.New(), Amount: 5000, RefundAmount: &refundAmount, Status: models.EscrowStatusPartialRefund}
	escrows.On("PartialRefund", ctx, orderID, refundAmount, "компромисс", &adminID).Return(partial, nil)

	escrow, err := svc.PartialRefund(ctx, orderID, refundAmount, "компромисс", adminID, models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPartialRefund, escrow.Status)
}

func TestEscrowService_PartialRefund_TooLarge(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	adminID := uuid.New()
	escrows.On("PartialRefund", ctx, orderID, float64(9000), "компромисс", &adminID).Return(nil, repository.ErrRefundTooLarge)

	_, err := svc.PartialRefund(ctx, orderID, 9000, "компромисс", adminID, models.RoleAdmin)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_MarkDisputed_NotHeld(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	escrows.On("MarkDisputed", ctx, orderID, "спорная работа").Return(nil, repository.ErrEscrowInvalidState)

	_, err := svc.MarkDisputed(ctx, orderID, "спорная работа")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestEscrowService_Get_NotFound(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	escrows.On("GetByOrderID", ctx, orderID).Return(nil, repository.ErrEscrowNotFound)

	_, err := svc.Get(ctx, orderID, uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEscrowService_Get_UnknownError(t *testing.T) {
	escrows := new(mockEscrowStore)
	orders := new(mockOrderGetter)
	svc := newEscrowService(escrows, orders)
	ctx := context.Background()

	orderID := uuid.New()
	escrows.On("GetByOrderID", ctx, orderID).Return(nil, errors.New("connection reset"))

	_, err := svc.Get(ctx, orderID, uuid.New(), models.RoleSeeker)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeInternal, apperror.CodeOf(err))
}

// casEscrowStore имитирует условный переход на уровне хранилища: из двух
// конкурентных Release успешным оказывается ровно один.
type casEscrowStore struct {
	mu     sync.Mutex
	escrow models.Escrow
}

func (s *casEscrowStore) Create(ctx context.Context, orderID uuid.UUID, amount float64) (*models.Escrow, error) {
	return nil, repository.ErrEscrowExists
}

func (s *casEscrowStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.escrow
	return &e, nil
}

func (s *casEscrowStore) Release(ctx context.Context, orderID, actorID uuid.UUID) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escrow.Status != models.EscrowStatusHeld {
		return nil, repository.ErrEscrowInvalidState
	}
	s.escrow.Status = models.EscrowStatusReleased
	e := s.escrow
	return &e, nil
}

func (s *casEscrowStore) Refund(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escrow.Status != models.EscrowStatusHeld && s.escrow.Status != models.EscrowStatusDisputed {
		return nil, repository.ErrEscrowInvalidState
	}
	s.escrow.Status = models.EscrowStatusRefunded
	e := s.escrow
	return &e, nil
}

func (s *casEscrowStore) PartialRefund(ctx context.Context, orderID uuid.UUID, refundAmount float64, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	return nil, repository.ErrEscrowInvalidState
}

func (s *casEscrowStore) MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escrow.Status != models.EscrowStatusHeld {
		return nil, repository.ErrEscrowInvalidState
	}
	s.escrow.Status = models.EscrowStatusDisputed
	e := s.escrow
	return &e, nil
}

func (s *casEscrowStore) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.EscrowSummary, error) {
	return &models.EscrowSummary{}, nil
}

func TestEscrowService_ConcurrentRelease_OnlyOneWins(t *testing.T) {
	seekerID := uuid.New()
	orderID := uuid.New()
	store := &casEscrowStore{escrow: models.Escrow{
		OrderID:    orderID,
		SeekerID:   seekerID,
		ProviderID: uuid.New(),
		Amount:     3000,
		Status:     models.EscrowStatusHeld,
	}}
	svc := newEscrowService(store, new(mockOrderGetter))
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Release(ctx, orderID, seekerID, models.RoleSeeker)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperror.IsInvalidState(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, models.EscrowStatusReleased, store.escrow.Status)
}

func TestEscrowService_ReleaseAfterRefund_Rejected(t *testing.T) {
	seekerID := uuid.New()
	providerID := uuid.New()
	orderID := uuid.New()
	store := &casEscrowStore{escrow: models.Escrow{
		OrderID:    orderID,
		SeekerID:   seekerID,
		ProviderID: providerID,
		Amount:     3000,
		Status:     models.EscrowStatusHeld,
	}}
	svc := newEscrowService(store, new(mockOrderGetter))
	ctx := context.Background()

	_, err := svc.Refund(ctx, orderID, "сделка сорвалась", providerID, models.RoleProvider)
	assert.NoError(t, err)

	_, err = svc.Release(ctx, orderID, seekerID, models.RoleSeeker)
	assert.True(t, apperror.IsInvalidState(err))
}
