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

// Ошибки уровня репозитория escrow.
var (
	ErrEscrowNotFound     = errors.New("escrow not found")
	ErrEscrowExists       = errors.New("escrow already exists for this order")
	ErrEscrowInvalidState = errors.New("escrow status forbids this transition")
	ErrRefundTooLarge     = errors.New("refund amount exceeds held amount")
)

const escrowColumns = `id, order_id, seeker_id, provider_id, amount, status, refund_amount,
	dispute_reason, transaction_id, metadata, held_at, released_at, refunded_at, released_by, refunded_by`

// EscrowRepository отвечает за записи escrow.
// Все переходы статусов выполняются одним условным UPDATE
// ("перевести из допустимого множества в целевой"), чтобы два
// конкурентных вызова не могли оба успешно пройти проверку.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create создаёт запись escrow со статусом held, копируя стороны из заказа.
// Уникальность по order_id закрыта ограничением в БД, гонка при создании невозможна.
func (r *EscrowRepository) Create(ctx context.Context, orderID uuid.UUID, amount float64) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		INSERT INTO escrow (order_id, seeker_id, provider_id, amount, status)
		SELECT o.id, o.seeker_id, o.provider_id, $2, 'held'
		FROM orders o
		WHERE o.id = $1
		ON CONFLICT (order_id) DO NOTHING
		RETURNING ` + escrowColumns
	err := r.db.GetContext(ctx, &escrow, query, orderID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		// Строка не вставлена: либо заказа нет, либо escrow уже существует.
		exists, checkErr := r.orderExists(ctx, orderID)
		if checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, ErrOrderNotFound
		}
		return nil, ErrEscrowExists
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: create %w", err)
	}
	return &escrow, nil
}

// GetByOrderID возвращает запись escrow по заказу.
func (r *EscrowRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `SELECT ` + escrowColumns + ` FROM escrow WHERE order_id = $1`
	err := r.db.GetContext(ctx, &escrow, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEscrowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: get by order id %w", err)
	}
	return &escrow, nil
}

// Release переводит запись из held/disputed в released.
func (r *EscrowRepository) Release(ctx context.Context, orderID, actorID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrow
		SET status = 'released', released_at = NOW(), released_by = $2
		WHERE order_id = $1 AND status IN ('held', 'disputed')
		RETURNING ` + escrowColumns
	err := r.db.GetContext(ctx, &escrow, query, orderID, actorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrInvalidState(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: release %w", err)
	}
	return &escrow, nil
}

// Refund переводит запись из held/disputed в refunded и записывает причину возврата.
func (r *EscrowRepository) Refund(ctx context.Context, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrow
		SET status = 'refunded', refunded_at = NOW(), refunded_by = $3,
		    metadata = metadata || jsonb_build_object('refund_reason', $2::text)
		WHERE order_id = $1 AND status IN ('held', 'disputed')
		RETURNING ` + escrowColumns
	err := r.db.GetContext(ctx, &escrow, query, orderID, reason, actorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrInvalidState(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: refund %w", err)
	}
	return &escrow, nil
}

// PartialRefund переводит запись из held/disputed в partial_refund.
// Условие refundAmount <= amount входит в тот же UPDATE: при нарушении
// строка не изменяется и запись остаётся в прежнем статусе.
func (r *EscrowRepository) PartialRefund(ctx context.Context, orderID uuid.UUID, refundAmount float64, reason string, actorID *uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrow
		SET status = 'partial_refund', refunded_at = NOW(), refunded_by = $4, refund_amount = $2,
		    metadata = metadata || jsonb_build_object('refund_reason', $3::text)
		WHERE order_id = $1 AND status IN ('held', 'disputed')
		  AND $2::numeric > 0 AND $2::numeric <= amount
		RETURNING ` + escrowColumns
	err := r.db.GetContext(ctx, &escrow, query, orderID, refundAmount, reason, actorID)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := r.GetByOrderID(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status != models.EscrowStatusHeld && current.Status != models.EscrowStatusDisputed {
			return nil, ErrEscrowInvalidState
		}
		return nil, ErrRefundTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: partial refund %w", err)
	}
	return &escrow, nil
}

// MarkDisputed переводит запись из held в disputed.
// Уже оспоренную, выплаченную или возвращённую запись оспорить нельзя.
func (r *EscrowRepository) MarkDisputed(ctx context.Context, orderID uuid.UUID, reason string) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `
		UPDATE escrow
		SET status = 'disputed', dispute_reason = $2
		WHERE order_id = $1 AND status = 'held'
		RETURNING ` + escrowColumns
	err := r.db.GetContext(ctx, &escrow, query, orderID, reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrInvalidState(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: mark disputed %w", err)
	}
	return &escrow, nil
}

// SummaryForUser агрегирует суммы escrow пользователя по ролям и статусам.
func (r *EscrowRepository) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.EscrowSummary, error) {
	rows := []struct {
		Role   string  `db:"role"`
		Status string  `db:"status"`
		Count  int     `db:"count"`
		Total  float64 `db:"total"`
	}{}
	query := `
		SELECT CASE WHEN seeker_id = $1 THEN 'seeker' ELSE 'provider' END AS role,
		       status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM escrow
		WHERE seeker_id = $1 OR provider_id = $1
		GROUP BY 1, 2
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("escrow repository: summary %w", err)
	}

	summary := &models.EscrowSummary{
		AsSeeker:   models.EscrowRoleSummary{ByStatus: map[string]float64{}},
		AsProvider: models.EscrowRoleSummary{ByStatus: map[string]float64{}},
	}
	for _, row := range rows {
		target := &summary.AsSeeker
		if row.Role == "provider" {
			target = &summary.AsProvider
		}
		target.Count += row.Count
		target.TotalAmount += row.Total
		target.ByStatus[row.Status] += row.Total
	}
	return summary, nil
}

// missOrInvalidState различает отсутствие записи и недопустимый статус
// после неуспешного условного UPDATE.
func (r *EscrowRepository) missOrInvalidState(ctx context.Context, orderID uuid.UUID) error {
	if _, err := r.GetByOrderID(ctx, orderID); err != nil {
		return err
	}
	return ErrEscrowInvalidState
}

// orderExists проверяет наличие заказа.
func (r *EscrowRepository) orderExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID)
	if err != nil {
		return false, fmt.Errorf("escrow repository: order exists %w", err)
	}
	return exists, nil
}
