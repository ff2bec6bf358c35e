package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Статусы споров. Терминальные: resolved, closed.
// closed используется только для ручной архивации администратором.
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusClosed      = "closed"
)

// Вердикты по спору: куда уходят удержанные средства.
const (
	ResolutionRefundToSeeker    = "refund_to_seeker"
	ResolutionReleaseToProvider = "release_to_provider"
	ResolutionPartialRefund     = "partial_refund"
)

// ValidDisputeStatuses список валидных статусов споров.
var ValidDisputeStatuses = map[string]struct{}{
	DisputeStatusOpen:        {},
	DisputeStatusUnderReview: {},
	DisputeStatusResolved:    {},
	DisputeStatusClosed:      {},
}

// ValidResolutions список валидных вердиктов.
var ValidResolutions = map[string]struct{}{
	ResolutionRefundToSeeker:    {},
	ResolutionReleaseToProvider: {},
	ResolutionPartialRefund:     {},
}

// Dispute представляет спор по заказу. Не более одного спора на заказ.
// AgainstUser всегда вторая сторона заказа относительно RaisedBy.
type Dispute struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	OrderID      uuid.UUID      `db:"order_id" json:"order_id"`
	RaisedBy     uuid.UUID      `db:"raised_by" json:"raised_by"`
	AgainstUser  uuid.UUID      `db:"against_user" json:"against_user"`
	Reason       string         `db:"reason" json:"reason"`
	Description  *string        `db:"description" json:"description,omitempty"`
	EvidenceURLs pq.StringArray `db:"evidence_urls" json:"evidence_urls,omitempty"`
	Status       string         `db:"status" json:"status"`
	Resolution   *string        `db:"resolution" json:"resolution,omitempty"`
	RefundAmount *float64       `db:"refund_amount" json:"refund_amount,omitempty"`
	AdminNotes   *string        `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedBy   *uuid.UUID     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	EscalatedAt  *time.Time     `db:"escalated_at" json:"escalated_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`

	// Тред сообщений, загружается отдельным запросом.
	Messages []DisputeMessage `json:"messages,omitempty"`
}

// IsTerminal сообщает, завершён ли спор.
func (d *Dispute) IsTerminal() bool {
	return d.Status == DisputeStatusResolved || d.Status == DisputeStatusClosed
}

// IsParticipant сообщает, является ли userID стороной спора.
func (d *Dispute) IsParticipant(userID uuid.UUID) bool {
	return userID == d.RaisedBy || userID == d.AgainstUser
}

// DisputeMessage описывает одно сообщение в треде спора.
type DisputeMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DisputeID uuid.UUID `db:"dispute_id" json:"dispute_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DisputeStats агрегирует сводку по спорам для административной панели.
type DisputeStats struct {
	Total               int     `db:"total" json:"total"`
	Open                int     `db:"open" json:"open"`
	UnderReview         int     `db:"under_review" json:"under_review"`
	Resolved            int     `db:"resolved" json:"resolved"`
	Closed              int     `db:"closed" json:"closed"`
	AvgResolutionTimeMs float64 `db:"avg_resolution_time_ms" json:"avg_resolution_time_ms"`
}
