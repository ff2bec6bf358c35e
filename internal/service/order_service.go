package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agrovoz/agromarket-backend/internal/events"
	"github.com/agrovoz/agromarket-backend/internal/logger"
	"github.com/agrovoz/agromarket-backend/internal/metrics"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
	"github.com/agrovoz/agromarket-backend/internal/validation"
)

// Срок, в течение которого неоплаченный заказ ждёт подтверждения.
const orderDefaultExpiry = 48 * time.Hour

// OrderStore описывает зависимости OrderService от слоя хранилища.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error)
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// ListingGetter читает объявления при создании заказа.
type ListingGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// OrderService инкапсулирует бизнес-логику заказов.
// Последовательность статусов заказа сервис намеренно не проверяет:
// это зона внешнего процесса оформления, перевод статуса лишь фиксируется.
type OrderService struct {
	orders   OrderStore
	listings ListingGetter
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(orders OrderStore, listings ListingGetter, pub events.Publisher, m *metrics.Metrics) *OrderService {
	return &OrderService{
		orders:   orders,
		listings: listings,
		events:   pub,
		metrics:  m,
		log:      logger.WithComponent("order_service"),
	}
}

// CreateOrderInput содержит данные нового заказа.
type CreateOrderInput struct {
	ListingID      uuid.UUID
	SeekerID       uuid.UUID
	Type           string
	Quantity       float64
	ServiceStartAt *time.Time
	ServiceEndAt   *time.Time
}

// Create оформляет заказ заказчика на объявление.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if _, ok := models.ValidOrderTypes[in.Type]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип заказа")
	}
	if in.Quantity <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "количество должно быть положительным")
	}
	if in.ServiceStartAt != nil && in.ServiceEndAt != nil && in.ServiceEndAt.Before(*in.ServiceStartAt) {
		return nil, apperror.New(apperror.ErrCodeValidation, "окончание работ не может быть раньше начала")
	}

	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if !listing.IsActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "объявление снято с публикации")
	}
	if listing.ProviderID == in.SeekerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя оформить заказ на собственное объявление")
	}

	total := listing.UnitPrice * in.Quantity
	if err := validation.ValidateAmount(total); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	order := &models.Order{
		ListingID:      in.ListingID,
		SeekerID:       in.SeekerID,
		ProviderID:     listing.ProviderID,
		Type:           in.Type,
		TotalAmount:    total,
		Status:         models.OrderStatusPending,
		ServiceStartAt: in.ServiceStartAt,
		ServiceEndAt:   in.ServiceEndAt,
		Quantity:       in.Quantity,
		Unit:           listing.Unit,
		ExpiresAt:      time.Now().Add(orderDefaultExpiry),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, mapOrderError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(order.Type, order.TotalAmount)
	}
	s.publishOrder(ctx, order)

	return order, nil
}

// Get возвращает заказ. Доступен сторонам и администратору.
func (s *OrderService) Get(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}

	if !order.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого заказа")
	}

	return order, nil
}

// ListMine возвращает заказы, в которых участвует пользователь.
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	list, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return list, nil
}

// UpdateStatus переводит заказ в новый статус без проверки последовательности.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actorID uuid.UUID, actorRole string) (*models.Order, error) {
	if _, ok := models.ValidOrderStatuses[status]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}

	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if !current.IsParty(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого заказа")
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, mapOrderError(err)
	}

	s.publishOrder(ctx, order)

	return order, nil
}

// ExpireStale отменяет просроченные неоплаченные заказы.
// Вызывается фоновым тикером из main.
func (s *OrderService) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.orders.ExpirePending(ctx, time.Now())
	if err != nil {
		return 0, mapOrderError(err)
	}

	if count > 0 {
		s.log.WithField("count", count).Info("отменены просроченные заказы")
		if s.metrics != nil {
			s.metrics.RecordOrdersExpired(int(count))
		}
	}

	return count, nil
}

// publishOrder отправляет событие заказа. Ошибка публикации не прерывает операцию.
func (s *OrderService) publishOrder(ctx context.Context, o *models.Order) {
	event := events.OrderEvent{
		OrderID:    o.ID,
		SeekerID:   o.SeekerID,
		ProviderID: o.ProviderID,
		OrderType:  o.Type,
		Status:     o.Status,
		Amount:     o.TotalAmount,
	}
	if err := s.events.PublishOrder(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"status":   o.Status,
			"error":    err.Error(),
		}).Warn("не удалось опубликовать событие заказа")
	}
}

// mapOrderError переводит ошибки репозитория в ошибки приложения.
func mapOrderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "заказ не найден")
	case errors.Is(err, repository.ErrListingNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "объявление не найдено")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса заказов")
	}
}
