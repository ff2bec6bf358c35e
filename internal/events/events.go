package events

import "github.com/google/uuid"

// Топики событий платформы
const (
	TopicOrders   = "agromarket.orders"
	TopicEscrow   = "agromarket.escrow"
	TopicDisputes = "agromarket.disputes"
)

// OrderEvent публикуется при создании сделки и смене ее статуса
type OrderEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	SeekerID   uuid.UUID `json:"seeker_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	OrderType  string    `json:"order_type"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount"`
}

// EscrowEvent публикуется при переходах эскроу-счета
type EscrowEvent struct {
	EscrowID     uuid.UUID  `json:"escrow_id"`
	OrderID      uuid.UUID  `json:"order_id"`
	Status       string     `json:"status"`
	Amount       float64    `json:"amount"`
	RefundAmount *float64   `json:"refund_amount,omitempty"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
}

// DisputeEvent публикуется при открытии и разрешении спора
type DisputeEvent struct {
	DisputeID  uuid.UUID `json:"dispute_id"`
	OrderID    uuid.UUID `json:"order_id"`
	OpenedBy   uuid.UUID `json:"opened_by"`
	Status     string    `json:"status"`
	Resolution *string   `json:"resolution,omitempty"`
	Reason     string    `json:"reason"`
}
