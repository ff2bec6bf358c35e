package models

import (
	"time"

	"github.com/google/uuid"
)

// Order описывает заказ между заказчиком (seeker) и поставщиком (provider).
// После создания заказ неизменяем, кроме поля статуса.
type Order struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ListingID      uuid.UUID  `db:"listing_id" json:"listing_id"`
	SeekerID       uuid.UUID  `db:"seeker_id" json:"seeker_id"`
	ProviderID     uuid.UUID  `db:"provider_id" json:"provider_id"`
	Type           string     `db:"type" json:"type"`
	TotalAmount    float64    `db:"total_amount" json:"total_amount"`
	Status         string     `db:"status" json:"status"`
	ServiceStartAt *time.Time `db:"service_start_at" json:"service_start_at,omitempty"`
	ServiceEndAt   *time.Time `db:"service_end_at" json:"service_end_at,omitempty"`
	Quantity       float64    `db:"quantity" json:"quantity"`
	Unit           string     `db:"unit" json:"unit"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
}

// OtherParty возвращает вторую сторону заказа относительно userID.
// Вторая сторона определяется чисто по двум идентификаторам заказа;
// случай seeker == provider здесь намеренно не обрабатывается.
func (o *Order) OtherParty(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case o.SeekerID:
		return o.ProviderID, true
	case o.ProviderID:
		return o.SeekerID, true
	default:
		return uuid.Nil, false
	}
}

// IsParty сообщает, является ли userID стороной заказа.
func (o *Order) IsParty(userID uuid.UUID) bool {
	return userID == o.SeekerID || userID == o.ProviderID
}
