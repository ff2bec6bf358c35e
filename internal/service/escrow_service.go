package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agrovoz/agromarket-backend/internal/cache"
	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/logger"
	"github.com/agrovoz/agromarket-backend/internal/metrics"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
	"github.com/agrovoz/agromarket-backend/internal/validation"
)

// TTL кэша сводок по escrow: сводка агрегатная, короткое устаревание допустимо.
const escrowSummaryTTL = 30 * time.Second

// EscrowStore описывает зависимости EscrowService от слоя хранилища.
type EscrowStore interface {
	Create(ctx context.Context, orderID uuid.UUID, amount float64) (*models.Escrow, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, orderID, actorID uuid.UUID) (*models.Escrow, error)
	Refund(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Escrow, error)
	PartialRefund(ctx context.Context, orderID uuid.UUID, refundAmount float64, reason string, actorID *uuid.UUID) (*models.Escrow, error)
	MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error)
	SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.EscrowSummary, error)
}

// OrderGetter читает заказы для проверок сторон.
type OrderGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// EscrowService инкапсулирует бизнес-логику удержания средств.
// Сами переходы статусов атомарны на уровне хранилища; сервис отвечает
// за авторизацию, валидацию и побочные эффекты (события, метрики, кэш).
type EscrowService struct {
	escrows EscrowStore
	orders  OrderGetter
	events  events.Publisher
	metrics *metrics.Metrics
	cache   *cache.Cache
	log     *logrus.Entry
}

// NewEscrowService создаёт сервис escrow.
func NewEscrowService(escrows EscrowStore, orders OrderGetter, pub events.Publisher, m *metrics.Metrics, c *cache.Cache) *EscrowService {
	return &EscrowService{
		escrows: escrows,
		orders:  orders,
		events:  pub,
		metrics: m,
		cache:   c,
		log:     logger.WithComponent("escrow_service"),
	}
}

// Open создаёт запись escrow по заказу со статусом held.
// При amount == 0 удерживается полная сумма заказа.
func (s *EscrowService) Open(ctx context.Context, orderID uuid.UUID, amount float64, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if !order.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого заказа")
	}

	if amount == 0 {
		amount = order.TotalAmount
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	escrow, err := s.escrows.Create(ctx, orderID, amount)
	if err != nil {
		return nil, s.recordFailure(mapEscrowError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEscrowOpened()
	}
	s.publishEscrow(ctx, escrow, nil)
	s.invalidateSummaries(escrow)

	return escrow, nil
}

// Get возвращает запись escrow по заказу. Доступна сторонам и администратору.
func (s *EscrowService) Get(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if actorID != escrow.SeekerID && actorID != escrow.ProviderID && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этой сделки")
	}

	return escrow, nil
}

// Release выплачивает удержанные средства исполнителю.
// Инициировать выплату может заказчик либо администратор.
func (s *EscrowService) Release(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	current, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if actorID != current.SeekerID && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выплату может подтвердить только заказчик")
	}

	escrow, err := s.escrows.Release(ctx, orderID, actorID)
	if err != nil {
		return nil, s.recordFailure(mapEscrowError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEscrowReleased(escrow.Amount)
	}
	s.publishEscrow(ctx, escrow, &actorID)
	s.invalidateSummaries(escrow)

	return escrow, nil
}

// Refund возвращает всю удержанную сумму заказчику.
// Инициировать возврат может поставщик (отказ от сделки) либо администратор.
func (s *EscrowService) Refund(ctx context.Context, orderID uuid.UUID, reason string, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	if err := validation.ValidateNonEmpty("причина возврата", reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	current, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapEscrowError(err)
	}

	if actorID != current.ProviderID && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "возврат может инициировать только поставщик")
	}

	escrow, err := s.escrows.Refund(ctx, orderID, reason, &actorID)
	if err != nil {
		return nil, s.recordFailure(mapEscrowError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEscrowRefunded(escrow.Amount, false)
	}
	s.publishEscrow(ctx, escrow, &actorID)
	s.invalidateSummaries(escrow)

	return escrow, nil
}

// PartialRefund возвращает заказчику часть суммы, остаток уходит исполнителю.
// Операция доступна только администратору.
func (s *EscrowService) PartialRefund(ctx context.Context, orderID uuid.UUID, refundAmount float64, reason string, actorID uuid.UUID, actorRole string) (*models.Escrow, error) {
	if actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "частичный возврат доступен только администратору")
	}
	if err := validation.ValidateNonEmpty("причина возврата", reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	escrow, err := s.escrows.PartialRefund(ctx, orderID, refundAmount, reason, &actorID)
	if err != nil {
		return nil, s.recordFailure(mapEscrowError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEscrowRefunded(refundAmount, true)
	}
	s.publishEscrow(ctx, escrow, &actorID)
	s.invalidateSummaries(escrow)

	return escrow, nil
}

// MarkDisputed замораживает удержанные средства на время спора.
// Вызывается только из DisputeService, внешней авторизации не требует.
func (s *EscrowService) MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error) {
	escrow, err := s.escrows.MarkDisputed(ctx, orderID, reason)
	if err != nil {
		return nil, s.recordFailure(mapEscrowError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordEscrowDisputed()
	}
	s.publishEscrow(ctx, escrow, nil)

	return escrow, nil
}

// SummaryForUser возвращает агрегированную сводку escrow пользователя по ролям.
func (s *EscrowService) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.EscrowSummary, error) {
	if s.cache == nil {
		return s.escrows.SummaryForUser(ctx, userID)
	}

	value, err := s.cache.GetOrSet(ctx, cache.EscrowSummaryCacheKey(userID), escrowSummaryTTL, func() (interface{}, error) {
		return s.escrows.SummaryForUser(ctx, userID)
	})
	if err != nil {
		return nil, mapEscrowError(err)
	}

	summary, ok := value.(*models.EscrowSummary)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInternal, "внутренняя ошибка кэша сводок")
	}
	return summary, nil
}

// publishEscrow отправляет событие перехода. Ошибка публикации не прерывает операцию.
func (s *EscrowService) publishEscrow(ctx context.Context, e *models.Escrow, actorID *uuid.UUID) {
	event := events.EscrowEvent{
		EscrowID:     e.ID,
		OrderID:      e.OrderID,
		Status:       e.Status,
		Amount:       e.Amount,
		RefundAmount: e.RefundAmount,
		ActorID:      actorID,
	}
	if err := s.events.PublishEscrow(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": e.OrderID,
			"status":   e.Status,
			"error":    err.Error(),
		}).Warn("не удалось опубликовать событие escrow")
	}
}

// invalidateSummaries сбрасывает кэшированные сводки обеих сторон.
func (s *EscrowService) invalidateSummaries(e *models.Escrow) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(cache.EscrowSummaryCacheKey(e.SeekerID))
	s.cache.Delete(cache.EscrowSummaryCacheKey(e.ProviderID))
}

// recordFailure учитывает отклонённые конкурентные переходы в метриках.
func (s *EscrowService) recordFailure(err error) error {
	if s.metrics != nil && (apperror.IsInvalidState(err) || apperror.IsConflict(err)) {
		s.metrics.RecordConflict("escrow")
	}
	return err
}

// mapEscrowError переводит ошибки репозитория в ошибки приложения.
func mapEscrowError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "заказ не найден")
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "запись escrow не найдена")
	case errors.Is(err, repository.ErrEscrowExists):
		return apperror.New(apperror.ErrCodeConflict, "средства по этому заказу уже удержаны")
	case errors.Is(err, repository.ErrEscrowInvalidState):
		return apperror.New(apperror.ErrCodeInvalidState, "текущий статус escrow не допускает эту операцию")
	case errors.Is(err, repository.ErrRefundTooLarge):
		return apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает удержанную сумму")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса escrow")
	}
}
