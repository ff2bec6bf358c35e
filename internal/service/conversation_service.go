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

// ConversationStore описывает зависимости ConversationService от слоя хранилища.
type ConversationStore interface {
	GetOrCreateByOrder(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID, authorID uuid.UUID) error
}

// Broadcaster доставляет сообщения подключённым по WebSocket пользователям.
type Broadcaster interface {
	SendToUsers(userIDs []uuid.UUID, payload interface{})
}

// ConversationService инкапсулирует чат между сторонами заказа.
type ConversationService struct {
	conversations ConversationStore
	orders        OrderGetter
	broadcaster   Broadcaster
}

// NewConversationService создаёт сервис чатов.
func NewConversationService(conversations ConversationStore, orders OrderGetter, b Broadcaster) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		orders:        orders,
		broadcaster:   b,
	}
}

// OpenByOrder возвращает чат по заказу, создавая его при первом обращении.
func (s *ConversationService) OpenByOrder(ctx context.Context, orderID, actorID uuid.UUID) (*models.Conversation, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapConversationError(err)
	}
	if !order.IsParty(actorID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "чат доступен только сторонам заказа")
	}

	conv, err := s.conversations.GetOrCreateByOrder(ctx, orderID)
	if err != nil {
		return nil, mapConversationError(err)
	}
	return conv, nil
}

// ListMine возвращает чаты пользователя.
func (s *ConversationService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	list, err := s.conversations.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapConversationError(err)
	}
	return list, nil
}

// SendMessage сохраняет сообщение и рассылает его сторонам чата.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, authorID uuid.UUID, content string) (*models.Message, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	conv, err := s.participantConversation(ctx, conversationID, authorID)
	if err != nil {
		return nil, err
	}

	m := &models.Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
	}
	if err := s.conversations.CreateMessage(ctx, m); err != nil {
		return nil, mapConversationError(err)
	}

	if s.broadcaster != nil {
		s.broadcaster.SendToUsers([]uuid.UUID{conv.SeekerID, conv.ProviderID}, m)
	}

	return m, nil
}

// ListMessages возвращает сообщения чата.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, actorID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, actorID); err != nil {
		return nil, err
	}

	messages, err := s.conversations.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, mapConversationError(err)
	}
	return messages, nil
}

// DeleteMessage удаляет собственное сообщение автора.
func (s *ConversationService) DeleteMessage(ctx context.Context, messageID, authorID uuid.UUID) error {
	if err := s.conversations.DeleteMessage(ctx, messageID, authorID); err != nil {
		return mapConversationError(err)
	}
	return nil
}

// participantConversation загружает чат и проверяет участие пользователя.
func (s *ConversationService) participantConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, mapConversationError(err)
	}
	if userID != conv.SeekerID && userID != conv.ProviderID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не являетесь участником этого чата")
	}
	return conv, nil
}

// mapConversationError переводит ошибки репозитория в ошибки приложения.
func mapConversationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "заказ не найден")
	case errors.Is(err, repository.ErrConversationNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "чат не найден")
	case errors.Is(err, repository.ErrMessageNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "сообщение не найдено")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса чатов")
	}
}
