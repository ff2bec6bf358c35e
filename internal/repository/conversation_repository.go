package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agrovoz/agromarket-backend/internal/models"
)

// Ошибки уровня репозитория чатов.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// ConversationRepository отвечает за чаты и сообщения.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository создаёт новый экземпляр.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreateByOrder возвращает чат заказа, создавая его при первом обращении.
// Уникальность чата на заказ закрыта ограничением в БД.
func (r *ConversationRepository) GetOrCreateByOrder(ctx context.Context, orderID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	query := `
		INSERT INTO conversations (order_id, seeker_id, provider_id)
		SELECT o.id, o.seeker_id, o.provider_id FROM orders o WHERE o.id = $1
		ON CONFLICT (order_id) DO UPDATE SET order_id = EXCLUDED.order_id
		RETURNING id, order_id, seeker_id, provider_id, created_at
	`
	err := r.db.GetContext(ctx, &conv, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation repository: get or create %w", err)
	}
	return &conv, nil
}

// GetByID возвращает чат по идентификатору.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation repository: get by id %w", err)
	}
	return &conv, nil
}

// ListByUser возвращает чаты пользователя.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE seeker_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list by user %w", err)
	}
	return convs, nil
}

// CreateMessage сохраняет сообщение чата.
func (r *ConversationRepository) CreateMessage(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, m.ConversationID, m.AuthorID, m.Content).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("conversation repository: create message %w", err)
	}
	return nil
}

// ListMessages возвращает сообщения чата от новых к старым.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list messages %w", err)
	}
	return messages, nil
}

// DeleteMessage удаляет сообщение автора.
func (r *ConversationRepository) DeleteMessage(ctx context.Context, messageID, authorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1 AND author_id = $2`, messageID, authorID)
	if err != nil {
		return fmt.Errorf("conversation repository: delete message %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation repository: delete message rows affected %w", err)
	}
	if affected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
