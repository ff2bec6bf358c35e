package dto

import "time"

// RegisterRequest запрос на регистрацию.
type RegisterRequest struct {
	Email       string  `json:"email" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	Username    string  `json:"username"`
	Role        string  `json:"role"`
	DisplayName string  `json:"display_name"`
	Region      *string `json:"region"`
	Phone       *string `json:"phone"`
	FarmName    *string `json:"farm_name"`
}

// LoginRequest запрос на вход.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest запрос на обновление токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest запрос на обновление профиля.
type UpdateProfileRequest struct {
	DisplayName string  `json:"display_name" binding:"required"`
	Bio         *string `json:"bio"`
	Region      *string `json:"region"`
	Phone       *string `json:"phone"`
	FarmName    *string `json:"farm_name"`
}

// ListingRequest запрос на создание или обновление объявления.
type ListingRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Category    string  `json:"category" binding:"required"`
	UnitPrice   float64 `json:"unit_price" binding:"required"`
	Unit        string  `json:"unit" binding:"required"`
	Region      *string `json:"region"`
	IsActive    bool    `json:"is_active"`
	PhotoID     *string `json:"photo_id"`
}

// CreateOrderRequest запрос на оформление заказа.
type CreateOrderRequest struct {
	ListingID      string     `json:"listing_id" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	Quantity       float64    `json:"quantity" binding:"required"`
	ServiceStartAt *time.Time `json:"service_start_at"`
	ServiceEndAt   *time.Time `json:"service_end_at"`
}

// UpdateOrderStatusRequest запрос на смену статуса заказа.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OpenEscrowRequest запрос на удержание средств по заказу.
// Нулевая сумма означает полную сумму заказа.
type OpenEscrowRequest struct {
	Amount float64 `json:"amount"`
}

// RefundEscrowRequest запрос на возврат средств.
type RefundEscrowRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PartialRefundEscrowRequest запрос на частичный возврат средств.
type PartialRefundEscrowRequest struct {
	RefundAmount float64 `json:"refund_amount" binding:"required"`
	Reason       string  `json:"reason" binding:"required"`
}

// CreateDisputeRequest запрос на открытие спора.
type CreateDisputeRequest struct {
	Reason       string   `json:"reason" binding:"required"`
	Description  *string  `json:"description"`
	EvidenceURLs []string `json:"evidence_urls"`
}

// DisputeMessageRequest запрос на сообщение в треде спора.
type DisputeMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// UpdateDisputeStatusRequest запрос на смену статуса спора.
type UpdateDisputeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ResolveDisputeRequest запрос на вынесение вердикта.
type ResolveDisputeRequest struct {
	Resolution   string   `json:"resolution" binding:"required"`
	AdminNotes   *string  `json:"admin_notes"`
	RefundAmount *float64 `json:"refund_amount"`
}

// SendMessageRequest запрос на сообщение в чате.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// RateRequest запрос на оценку контрагента.
type RateRequest struct {
	Score   int     `json:"score" binding:"required"`
	Comment *string `json:"comment"`
}
