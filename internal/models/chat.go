package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation описывает чат между сторонами заказа.
type Conversation struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OrderID    uuid.UUID `db:"order_id" json:"order_id"`
	SeekerID   uuid.UUID `db:"seeker_id" json:"seeker_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Message описывает сообщение в чате.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ConversationID uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	AuthorID       uuid.UUID  `db:"author_id" json:"author_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
