package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) AddMessage(ctx context.Context, msg *models.DisputeMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockDisputeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, id uuid.UUID, p repository.ResolveParams) (*models.Dispute, *models.Escrow, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Dispute), args.Get(1).(*models.Escrow), args.Error(2)
}

func (m *mockDisputeStore) Stats(ctx context.Context) (*models.DisputeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputeStats), args.Error(1)
}

type mockEscrowFreezer struct {
	mock.Mock
}

func (m *mockEscrowFreezer) MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func newDisputeService(disputes DisputeStore, orders OrderGetter, freezer EscrowFreezer) *DisputeService {
	return NewDisputeService(disputes, orders, freezer, events.NoopPublisher{}, nil)
}

func TestDisputeService_Create_Success(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	providerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: providerID}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	disputes.On("Create", ctx, mock.MatchedBy(func(d *models.Dispute) bool {
		return d.OrderID == orderID && d.RaisedBy == seekerID && d.AgainstUser == providerID && d.Status == models.DisputeStatusOpen
	})).Return(nil)
	freezer.On("MarkDisputed", ctx, orderID, "работа не выполнена").
		Return(&models.Escrow{OrderID: orderID, Status: models.EscrowStatusDisputed}, nil)

	d, err := svc.Create(ctx, CreateDisputeInput{
		OrderID:  orderID,
		RaisedBy: seekerID,
		Reason:   "работа не выполнена",
	})
	assert.NoError(t, err)
	assert.Equal(t, providerID, d.AgainstUser)
	freezer.AssertExpectations(t)
}

func TestDisputeService_Create_FreezeFailureDoesNotFail(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New()}

	orders.On("GetByID", ctx, orderID).Return(order, nil)
	disputes.On("Create", ctx, mock.Anything).Return(nil)
	// Escrow ещё не открыт: спор всё равно создаётся.
	freezer.On("MarkDisputed", ctx, orderID, "техника сломана").Return(nil, repository.ErrEscrowNotFound)

	d, err := svc.Create(ctx, CreateDisputeInput{
		OrderID:  orderID,
		RaisedBy: seekerID,
		Reason:   "техника сломана",
	})
	assert.NoError(t, err)
	assert.NotNil(t, d)
}

func TestDisputeService_Create_NotParty(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	orderID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: uuid.New(), ProviderID: uuid.New()}
	orders.On("GetByID", ctx, orderID).Return(order, nil)

	_, err := svc.Create(ctx, CreateDisputeInput{
		OrderID:  orderID,
		RaisedBy: uuid.New(),
		Reason:   "жалоба постороннего",
	})
	assert.True(t, apperror.IsForbidden(err))
	disputes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDisputeService_Create_Duplicate(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	orderID := uuid.New()
	seekerID := uuid.New()
	order := &models.Order{ID: orderID, SeekerID: seekerID, ProviderID: uuid.New()}
	orders.On("GetByID", ctx, orderID).Return(order, nil)
	disputes.On("Create", ctx, mock.Anything).Return(repository.ErrDisputeExists)

	_, err := svc.Create(ctx, CreateDisputeInput{
		OrderID:  orderID,
		RaisedBy: seekerID,
		Reason:   "повторный спор",
	})
	assert.True(t, apperror.IsConflict(err))
	freezer.AssertNotCalled(t, "MarkDisputed", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Create_BadEvidenceURL(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateDisputeInput{
		OrderID:      uuid.New(),
		RaisedBy:     uuid.New(),
		Reason:       "спор с кривыми ссылками",
		EvidenceURLs: []string{"ftp://evidence.example.com/file"},
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_AddMessage_TerminalDispute(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	disputeID := uuid.New()
	authorID := uuid.New()
	resolved := &models.Dispute{ID: disputeID, RaisedBy: authorID, AgainstUser: uuid.New(), Status: models.DisputeStatusResolved}
	disputes.On("GetByID", ctx, disputeID).Return(resolved, nil)

	_, err := svc.AddMessage(ctx, disputeID, authorID, models.RoleSeeker, "ещё аргумент")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_AddMessage_Outsider(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	disputeID := uuid.New()
	open := &models.Dispute{ID: disputeID, RaisedBy: uuid.New(), AgainstUser: uuid.New(), Status: models.DisputeStatusOpen}
	disputes.On("GetByID", ctx, disputeID).Return(open, nil)

	_, err := svc.AddMessage(ctx, disputeID, uuid.New(), models.RoleProvider, "я тут мимо проходил")
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_AddMessage_AdminAllowed(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	disputeID := uuid.New()
	adminID := uuid.New()
	open := &models.Dispute{ID: disputeID, RaisedBy: uuid.New(), AgainstUser: uuid.New(), Status: models.DisputeStatusUnderReview}
	disputes.On("GetByID", ctx, disputeID).Return(open, nil)
	disputes.On("AddMessage", ctx, mock.MatchedBy(func(m *models.DisputeMessage) bool {
		return m.DisputeID == disputeID && m.AuthorID == adminID
	})).Return(nil)

	msg, err := svc.AddMessage(ctx, disputeID, adminID, models.RoleAdmin, "прошу предоставить фото")
	assert.NoError(t, err)
	assert.Equal(t, "прошу предоставить фото", msg.Body)
}

func TestDisputeService_UpdateStatus_ResolvedRejected(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, uuid.New(), models.DisputeStatusResolved)
	assert.True(t, apperror.IsValidation(err))
	disputes.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_UpdateStatus_Finalized(t *testing.T) {
	disputes := new(mockDisputeStore)
	orders := new(mockOrderGetter)
	freezer := new(mockEscrowFreezer)
	svc := newDisputeService(disputes, orders, freezer)
	ctx := context.Background()

	disputeID := uuid.New()
	disputes.On("UpdateStatus", ctx, disputeID, models.DisputeStatusUnderReview).Return(nil, repository.ErrDisputeFinalized)

	_, err := svc.UpdateStatus(ctx, disputeID, models.DisputeStatusUnderReview)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_Resolve_VerdictDrivesEscrowTarget(t *testing.T) {
	cases := []struct {
		resolution   string
		refundAmount *float64
		wantTarget   string
	}{
		{models.ResolutionRefundToSeeker, nil, models.EscrowStatusRefunded},
		{models.ResolutionReleaseToProvider, nil, models.EscrowStatusReleased},
		{models.ResolutionPartialRefund, ptrFloat(2500), models.EscrowStatusPartialRefund},
	}

	for _, tc := range cases {
		disputes := new(mockDisputeStore)
		svc := newDisputeService(disputes, new(mockOrderGetter), new(mockEscrowFreezer))
		ctx := context.Background()

		disputeID := uuid.New()
		adminID := uuid.New()
		resolvedDispute := &models.Dispute{ID: disputeID, Status: models.DisputeStatusResolved, Resolution: &tc.resolution}
		resolvedEscrow := &models.Escrow{Status: tc.wantTarget, Amount: 5000, RefundAmount: tc.refundAmount}

		disputes.On("Resolve", ctx, disputeID, mock.MatchedBy(func(p repository.ResolveParams) bool {
			return p.EscrowTarget == tc.wantTarget && p.Resolution == tc.resolution && p.AdminID == adminID
		})).Return(resolvedDispute, resolvedEscrow, nil)

		d, err := svc.Resolve(ctx, ResolveDisputeInput{
			DisputeID:    disputeID,
			AdminID:      adminID,
			Resolution:   tc.resolution,
			RefundAmount: tc.refundAmount,
		})
		assert.NoError(t, err, tc.resolution)
		assert.Equal(t, models.DisputeStatusResolved, d.Status)
		disputes.AssertExpectations(t)
	}
}

func TestDisputeService_Resolve_UnknownVerdict(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockOrderGetter), new(mockEscrowFreezer))

	_, err := svc.Resolve(context.Background(), ResolveDisputeInput{
		DisputeID:  uuid.New(),
		AdminID:    uuid.New(),
		Resolution: "split_the_difference",
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_PartialWithoutAmount(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockOrderGetter), new(mockEscrowFreezer))

	_, err := svc.Resolve(context.Background(), ResolveDisputeInput{
		DisputeID:  uuid.New(),
		AdminID:    uuid.New(),
		Resolution: models.ResolutionPartialRefund,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_AmountWithoutPartial(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockOrderGetter), new(mockEscrowFreezer))

	_, err := svc.Resolve(context.Background(), ResolveDisputeInput{
		DisputeID:    uuid.New(),
		AdminID:      uuid.New(),
		Resolution:   models.ResolutionReleaseToProvider,
		RefundAmount: ptrFloat(100),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_EscrowFailurePropagates(t *testing.T) {
	disputes := new(mockDisputeStore)
	svc := newDisputeService(disputes, new(mockOrderGetter), new(mockEscrowFreezer))
	ctx := context.Background()

	disputeID := uuid.New()
	// Переход escrow внутри транзакции вердикта не удался: вердикт не фиксируется.
	disputes.On("Resolve", ctx, disputeID, mock.Anything).Return(nil, nil, repository.ErrEscrowInvalidState)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID:  disputeID,
		AdminID:    uuid.New(),
		Resolution: models.ResolutionReleaseToProvider,
	})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	disputes := new(mockDisputeStore)
	svc := newDisputeService(disputes, new(mockOrderGetter), new(mockEscrowFreezer))
	ctx := context.Background()

	disputeID := uuid.New()
	disputes.On("Resolve", ctx, disputeID, mock.Anything).Return(nil, nil, repository.ErrDisputeFinalized)

	_, err := svc.Resolve(ctx, ResolveDisputeInput{
		DisputeID:  disputeID,
		AdminID:    uuid.New(),
		Resolution: models.ResolutionRefundToSeeker,
	})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_ListAll_UnknownStatus(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockOrderGetter), new(mockEscrowFreezer))

	_, err := svc.ListAll(context.Background(), "pending", 20, 0)
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Get_Outsider(t *testing.T) {
	disputes := new(mockDisputeStore)
	svc := newDisputeService(disputes, new(mockOrderGetter), new(mockEscrowFreezer))
	ctx := context.Background()

	disputeID := uuid.New()
	d := &models.Dispute{ID: disputeID, RaisedBy: uuid.New(), AgainstUser: uuid.New(), Status: models.DisputeStatusOpen}
	disputes.On("GetByID", ctx, disputeID).Return(d, nil)

	_, err := svc.Get(ctx, disputeID, uuid.New(), models.RoleSeeker)
	assert.True(t, apperror.IsForbidden(err))

	got, err := svc.Get(ctx, disputeID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, d, got)
}

func ptrFloat(v float64) *float64 {
	return &v
}
