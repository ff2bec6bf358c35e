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

// DisputeStore описывает зависимости DisputeService от слоя хранилища.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error)
	AddMessage(ctx context.Context, m *models.DisputeMessage) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error)
	Resolve(ctx context.Context, id uuid.UUID, p repository.ResolveParams) (*models.Dispute, *models.Escrow, error)
	Stats(ctx context.Context) (*models.DisputeStats, error)
}

// EscrowFreezer замораживает удержанные средства при открытии спора.
type EscrowFreezer interface {
	MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error)
}

// escrowTransition описывает, какой переход escrow влечёт вердикт.
type escrowTransition struct {
	target      string
	needsAmount bool
}

// Таблица соответствий вердикт -> переход escrow.
var verdictTransitions = map[string]escrowTransition{
	models.ResolutionRefundToSeeker:    {target: models.EscrowStatusRefunded},
	models.ResolutionReleaseToProvider: {target: models.EscrowStatusReleased},
	models.ResolutionPartialRefund:     {target: models.EscrowStatusPartialRefund, needsAmount: true},
}

// DisputeService инкапсулирует жизненный цикл споров.
type DisputeService struct {
	disputes DisputeStore
	orders   OrderGetter
	escrow   EscrowFreezer
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeStore, orders OrderGetter, escrow EscrowFreezer, pub events.Publisher, m *metrics.Metrics) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		orders:   orders,
		escrow:   escrow,
		events:   pub,
		metrics:  m,
		log:      logger.WithComponent("dispute_service"),
	}
}

// CreateDisputeInput содержит данные нового спора.
type CreateDisputeInput struct {
	OrderID      uuid.UUID
	RaisedBy     uuid.UUID
	Reason       string
	Description  *string
	EvidenceURLs []string
}

// Create открывает спор по заказу. Вторая сторона вычисляется из заказа.
// Заморозка escrow является сопутствующим эффектом: её отказ логируется,
// но спор всё равно создаётся.
func (s *DisputeService) Create(ctx context.Context, in CreateDisputeInput) (*models.Dispute, error) {
	if err := validation.ValidateDisputeReason(in.Reason); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateEvidenceURLs(in.EvidenceURLs); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		return nil, mapDisputeError(err)
	}

	against, ok := order.OtherParty(in.RaisedBy)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeForbidden, "спор может открыть только сторона заказа")
	}

	d := &models.Dispute{
		OrderID:      in.OrderID,
		RaisedBy:     in.RaisedBy,
		AgainstUser:  against,
		Reason:       in.Reason,
		Description:  in.Description,
		EvidenceURLs: in.EvidenceURLs,
		Status:       models.DisputeStatusOpen,
	}

	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, s.recordFailure(mapDisputeError(err))
	}

	// Замораживаем средства, если они ещё в held. Если escrow отсутствует
	// или уже перешёл в другой статус, спор остаётся открытым без заморозки.
	if _, err := s.escrow.MarkDisputed(ctx, in.OrderID, in.Reason); err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id":   in.OrderID,
			"dispute_id": d.ID,
			"error":      err.Error(),
		}).Warn("не удалось заморозить escrow при открытии спора")
	}

	if s.metrics != nil {
		s.metrics.RecordDisputeOpened()
	}
	s.publishDispute(ctx, d)

	return d, nil
}

// Get возвращает спор с тредом сообщений. Доступен сторонам и администратору.
func (s *DisputeService) Get(ctx context.Context, disputeID, actorID uuid.UUID, actorRole string) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}

	if !d.IsParticipant(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого спора")
	}

	return d, nil
}

// GetByOrder возвращает спор по заказу.
func (s *DisputeService) GetByOrder(ctx context.Context, orderID, actorID uuid.UUID, actorRole string) (*models.Dispute, error) {
	d, err := s.disputes.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapDisputeError(err)
	}

	if !d.IsParticipant(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого спора")
	}

	return d, nil
}

// ListMine возвращает споры, в которых участвует пользователь.
func (s *DisputeService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	list, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	return list, nil
}

// ListAll возвращает все споры с фильтром по статусу. Только для администратора.
func (s *DisputeService) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	if status != "" {
		if _, ok := models.ValidDisputeStatuses[status]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
		}
	}

	list, err := s.disputes.ListAll(ctx, status, limit, offset)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	return list, nil
}

// AddMessage добавляет сообщение в тред спора.
// Писать могут обе стороны спора и администратор, пока спор не завершён.
func (s *DisputeService) AddMessage(ctx context.Context, disputeID, authorID uuid.UUID, actorRole, body string) (*models.DisputeMessage, error) {
	if err := validation.ValidateMessageContent(body); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, mapDisputeError(err)
	}

	if !d.IsParticipant(authorID) && actorRole != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь стороной этого спора")
	}
	if d.IsTerminal() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор завершён, новые сообщения недоступны")
	}

	m := &models.DisputeMessage{
		DisputeID: disputeID,
		AuthorID:  authorID,
		Body:      body,
	}
	if err := s.disputes.AddMessage(ctx, m); err != nil {
		return nil, mapDisputeError(err)
	}

	return m, nil
}

// UpdateStatus переводит спор между нетерминальными статусами.
// Вердикт выносится только через Resolve; статус resolved здесь запрещён.
func (s *DisputeService) UpdateStatus(ctx context.Context, disputeID uuid.UUID, status string) (*models.Dispute, error) {
	if _, ok := models.ValidDisputeStatuses[status]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
	}
	if status == models.DisputeStatusResolved {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус resolved устанавливается только вынесением вердикта")
	}

	d, err := s.disputes.UpdateStatus(ctx, disputeID, status)
	if err != nil {
		return nil, s.recordFailure(mapDisputeError(err))
	}

	s.publishDispute(ctx, d)

	return d, nil
}

// ResolveDisputeInput содержит вердикт администратора.
type ResolveDisputeInput struct {
	DisputeID    uuid.UUID
	AdminID      uuid.UUID
	Resolution   string
	AdminNotes   *string
	RefundAmount *float64
}

// Resolve выносит вердикт и выполняет соответствующий переход escrow.
// В отличие от заморозки при создании спора, отказ перехода escrow здесь
// фатален: вердикт без движения средств не фиксируется.
func (s *DisputeService) Resolve(ctx context.Context, in ResolveDisputeInput) (*models.Dispute, error) {
	transition, ok := verdictTransitions[in.Resolution]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный вердикт")
	}
	if transition.needsAmount && (in.RefundAmount == nil || *in.RefundAmount <= 0) {
		return nil, apperror.New(apperror.ErrCodeValidation, "для частичного возврата требуется положительная сумма")
	}
	if !transition.needsAmount && in.RefundAmount != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата указывается только для частичного возврата")
	}
	if err := validation.ValidateAdminNotes(in.AdminNotes); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	d, escrow, err := s.disputes.Resolve(ctx, in.DisputeID, repository.ResolveParams{
		AdminID:      in.AdminID,
		Resolution:   in.Resolution,
		AdminNotes:   in.AdminNotes,
		RefundAmount: in.RefundAmount,
		EscrowTarget: transition.target,
		EscrowReason: "вердикт по спору: " + in.Resolution,
	})
	if err != nil {
		return nil, s.recordFailure(mapDisputeError(err))
	}

	if s.metrics != nil {
		s.metrics.RecordDisputeResolved(in.Resolution, time.Since(d.CreatedAt).Seconds())
		switch escrow.Status {
		case models.EscrowStatusReleased:
			s.metrics.RecordEscrowReleased(escrow.Amount)
		case models.EscrowStatusRefunded:
			s.metrics.RecordEscrowRefunded(escrow.Amount, false)
		case models.EscrowStatusPartialRefund:
			if escrow.RefundAmount != nil {
				s.metrics.RecordEscrowRefunded(*escrow.RefundAmount, true)
			}
		}
	}
	s.publishDispute(ctx, d)

	return d, nil
}

// Stats возвращает агрегированную сводку по спорам для административной панели.
func (s *DisputeService) Stats(ctx context.Context) (*models.DisputeStats, error) {
	stats, err := s.disputes.Stats(ctx)
	if err != nil {
		return nil, mapDisputeError(err)
	}
	return stats, nil
}

// publishDispute отправляет событие спора. Ошибка публикации не прерывает операцию.
func (s *DisputeService) publishDispute(ctx context.Context, d *models.Dispute) {
	event := events.DisputeEvent{
		DisputeID:  d.ID,
		OrderID:    d.OrderID,
		OpenedBy:   d.RaisedBy,
		Status:     d.Status,
		Resolution: d.Resolution,
		Reason:     d.Reason,
	}
	if err := s.events.PublishDispute(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"dispute_id": d.ID,
			"status":     d.Status,
			"error":      err.Error(),
		}).Warn("не удалось опубликовать событие спора")
	}
}

// recordFailure учитывает отклонённые конкурентные переходы в метриках.
func (s *DisputeService) recordFailure(err error) error {
	if s.metrics != nil && (apperror.IsInvalidState(err) || apperror.IsConflict(err)) {
		s.metrics.RecordConflict("dispute")
	}
	return err
}

// mapDisputeError переводит ошибки репозиториев в ошибки приложения.
// Ошибки escrow, пришедшие из транзакции вердикта, пробрасываются с тем же кодом.
func mapDisputeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "заказ не найден")
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "спор не найден")
	case errors.Is(err, repository.ErrDisputeExists):
		return apperror.New(apperror.ErrCodeConflict, "по этому заказу уже открыт спор")
	case errors.Is(err, repository.ErrDisputeFinalized):
		return apperror.New(apperror.ErrCodeInvalidState, "спор уже завершён")
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "запись escrow не найдена")
	case errors.Is(err, repository.ErrEscrowInvalidState):
		return apperror.New(apperror.ErrCodeInvalidState, "текущий статус escrow не допускает эту операцию")
	case errors.Is(err, repository.ErrRefundTooLarge):
		return apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает удержанную сумму")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса споров")
	}
}
