package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Статусы escrow. Терминальные: released, refunded, partial_refund.
const (
	EscrowStatusHeld          = "held"
	EscrowStatusReleased      = "released"
	EscrowStatusRefunded      = "refunded"
	EscrowStatusDisputed      = "disputed"
	EscrowStatusPartialRefund = "partial_refund"
)

// EscrowMetadata хранит произвольные текстовые атрибуты записи escrow
// (в частности причину возврата). Сериализуется в JSONB.
type EscrowMetadata map[string]string

// Value реализует driver.Valuer.
func (m EscrowMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan реализует sql.Scanner.
func (m *EscrowMetadata) Scan(src interface{}) error {
	if src == nil {
		*m = EscrowMetadata{}
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("escrow metadata: неожиданный тип %T", src)
	}
	return json.Unmarshal(raw, m)
}

// Escrow представляет запись о средствах, удержанных по заказу.
// Ровно одна запись на заказ; сумма фиксируется при создании.
type Escrow struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	OrderID       uuid.UUID      `db:"order_id" json:"order_id"`
	SeekerID      uuid.UUID      `db:"seeker_id" json:"seeker_id"`
	ProviderID    uuid.UUID      `db:"provider_id" json:"provider_id"`
	Amount        float64        `db:"amount" json:"amount"`
	Status        string         `db:"status" json:"status"`
	RefundAmount  *float64       `db:"refund_amount" json:"refund_amount,omitempty"`
	DisputeReason *string        `db:"dispute_reason" json:"dispute_reason,omitempty"`
	TransactionID *string        `db:"transaction_id" json:"transaction_id,omitempty"`
	Metadata      EscrowMetadata `db:"metadata" json:"metadata,omitempty"`
	HeldAt        time.Time      `db:"held_at" json:"held_at"`
	ReleasedAt    *time.Time     `db:"released_at" json:"released_at,omitempty"`
	RefundedAt    *time.Time     `db:"refunded_at" json:"refunded_at,omitempty"`
	ReleasedBy    *uuid.UUID     `db:"released_by" json:"released_by,omitempty"`
	RefundedBy    *uuid.UUID     `db:"refunded_by" json:"refunded_by,omitempty"`
}

// IsTerminal сообщает, достигла ли запись терминального статуса.
func (e *Escrow) IsTerminal() bool {
	switch e.Status {
	case EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusPartialRefund:
		return true
	}
	return false
}

// EscrowRoleSummary агрегирует суммы escrow для одной роли пользователя.
type EscrowRoleSummary struct {
	TotalAmount float64            `json:"total_amount"`
	Count       int                `json:"count"`
	ByStatus    map[string]float64 `json:"by_status"`
}

// EscrowSummary агрегирует записи escrow пользователя по обеим ролям.
type EscrowSummary struct {
	AsSeeker   EscrowRoleSummary `json:"as_seeker"`
	AsProvider EscrowRoleSummary `json:"as_provider"`
}
