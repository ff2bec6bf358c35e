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

// Ошибки уровня репозитория споров.
var (
	ErrDisputeNotFound  = errors.New("dispute not found")
	ErrDisputeExists    = errors.New("dispute already exists for this order")
	ErrDisputeFinalized = errors.New("dispute is already resolved or closed")
)

const disputeColumns = `id, order_id, raised_by, against_user, reason, description, evidence_urls,
	status, resolution, refund_amount, admin_notes, resolved_by, resolved_at, escalated_at, created_at`

// DisputeRepository отвечает за споры и их тред сообщений.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create создаёт спор со статусом open. Уникальность по order_id закрыта
// ограничением в БД: второй спор по заказу не вставится даже при гонке.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (order_id, raised_by, against_user, reason, description, evidence_urls, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'open')
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, status, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		d.OrderID, d.RaisedBy, d.AgainstUser, d.Reason, d.Description, d.EvidenceURLs).
		Scan(&d.ID, &d.Status, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDisputeExists
	}
	if err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	return nil
}

// GetByID возвращает спор вместе с тредом сообщений.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}

	if err := r.db.SelectContext(ctx, &d.Messages, `
		SELECT id, dispute_id, author_id, body, created_at
		FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at
	`, id); err != nil {
		return nil, fmt.Errorf("dispute repository: load messages %w", err)
	}
	return &d, nil
}

// GetByOrderID возвращает спор по заказу.
func (r *DisputeRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get by order id %w", err)
	}
	return &d, nil
}

// ListByUser возвращает споры, в которых пользователь участвует с любой стороны.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE raised_by = $1 OR against_user = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListAll возвращает споры для административной панели, опционально по статусу.
func (r *DisputeRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &disputes, `
			SELECT `+disputeColumns+` FROM disputes
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &disputes, `
			SELECT `+disputeColumns+` FROM disputes
			ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list all %w", err)
	}
	return disputes, nil
}

// AddMessage добавляет сообщение в тред спора.
func (r *DisputeRepository) AddMessage(ctx context.Context, m *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (dispute_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, m.DisputeID, m.AuthorID, m.Body).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: add message %w", err)
	}
	return nil
}

// UpdateStatus меняет статус спора условным UPDATE: завершённый спор не трогается.
// Переход в under_review фиксирует escalated_at.
func (r *DisputeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error) {
	var d models.Dispute
	query := `
		UPDATE disputes
		SET status = $2,
		    escalated_at = CASE WHEN $2 = 'under_review' THEN NOW() ELSE escalated_at END
		WHERE id = $1 AND status NOT IN ('resolved', 'closed')
		RETURNING ` + disputeColumns
	err := r.db.GetContext(ctx, &d, query, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missOrFinalized(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: update status %w", err)
	}
	return &d, nil
}

// ResolveParams описывает вердикт администратора и сопутствующий переход escrow.
type ResolveParams struct {
	AdminID      uuid.UUID
	Resolution   string
	AdminNotes   *string
	RefundAmount *float64

	// Целевой статус escrow, вычисленный сервисом по вердикту.
	EscrowTarget string
	// Причина, записываемая в metadata escrow при возвратах.
	EscrowReason string
}

// Resolve фиксирует вердикт и выполняет переход escrow в одной транзакции.
// Если переход escrow не проходит, транзакция откатывается целиком и спор
// остаётся незавершённым: частично применённых состояний не бывает.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, p ResolveParams) (*models.Dispute, *models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dispute repository: begin resolve %w", err)
	}
	defer tx.Rollback()

	var d models.Dispute
	query := `
		UPDATE disputes
		SET resolution = $2, status = 'resolved', resolved_by = $3, resolved_at = NOW(),
		    admin_notes = $4, refund_amount = $5
		WHERE id = $1 AND status NOT IN ('resolved', 'closed')
		RETURNING ` + disputeColumns
	err = tx.GetContext(ctx, &d, query, id, p.Resolution, p.AdminID, p.AdminNotes, p.RefundAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, r.missOrFinalized(ctx, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dispute repository: resolve dispute %w", err)
	}

	escrow, err := r.applyEscrowVerdict(ctx, tx, d.OrderID, p)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("dispute repository: commit resolve %w", err)
	}
	return &d, escrow, nil
}

// applyEscrowVerdict выполняет переход escrow внутри транзакции вердикта.
func (r *DisputeRepository) applyEscrowVerdict(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, p ResolveParams) (*models.Escrow, error) {
	var escrow models.Escrow
	var err error

	switch p.EscrowTarget {
	case models.EscrowStatusReleased:
		err = tx.GetContext(ctx, &escrow, `
			UPDATE escrow
			SET status = 'released', released_at = NOW(), released_by = $2
			WHERE order_id = $1 AND status IN ('held', 'disputed')
			RETURNING `+escrowColumns, orderID, p.AdminID)
	case models.EscrowStatusRefunded:
		err = tx.GetContext(ctx, &escrow, `
			UPDATE escrow
			SET status = 'refunded', refunded_at = NOW(), refunded_by = $3,
			    metadata = metadata || jsonb_build_object('refund_reason', $2::text)
			WHERE order_id = $1 AND status IN ('held', 'disputed')
			RETURNING `+escrowColumns, orderID, p.EscrowReason, p.AdminID)
	case models.EscrowStatusPartialRefund:
		err = tx.GetContext(ctx, &escrow, `
			UPDATE escrow
			SET status = 'partial_refund', refunded_at = NOW(), refunded_by = $4, refund_amount = $2,
			    metadata = metadata || jsonb_build_object('refund_reason', $3::text)
			WHERE order_id = $1 AND status IN ('held', 'disputed')
			  AND $2::numeric > 0 AND $2::numeric <= amount
			RETURNING `+escrowColumns, orderID, p.RefundAmount, p.EscrowReason, p.AdminID)
	default:
		return nil, fmt.Errorf("dispute repository: неизвестный целевой статус escrow %q", p.EscrowTarget)
	}

	if errors.Is(err, sql.ErrNoRows) {
		var current models.Escrow
		getErr := tx.GetContext(ctx, &current, `SELECT `+escrowColumns+` FROM escrow WHERE order_id = $1`, orderID)
		if errors.Is(getErr, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		if getErr != nil {
			return nil, fmt.Errorf("dispute repository: check escrow %w", getErr)
		}
		if current.Status != models.EscrowStatusHeld && current.Status != models.EscrowStatusDisputed {
			return nil, ErrEscrowInvalidState
		}
		return nil, ErrRefundTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: apply verdict %w", err)
	}
	return &escrow, nil
}

// Stats агрегирует счётчики по статусам и среднее время разрешения.
func (r *DisputeRepository) Stats(ctx context.Context) (*models.DisputeStats, error) {
	var stats models.DisputeStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'open') AS open,
		       COUNT(*) FILTER (WHERE status = 'under_review') AS under_review,
		       COUNT(*) FILTER (WHERE status = 'resolved') AS resolved,
		       COUNT(*) FILTER (WHERE status = 'closed') AS closed,
		       COALESCE(AVG(EXTRACT(EPOCH FROM resolved_at - created_at) * 1000)
		                FILTER (WHERE status = 'resolved'), 0) AS avg_resolution_time_ms
		FROM disputes
	`)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: stats %w", err)
	}
	return &stats, nil
}

// missOrFinalized различает отсутствие спора и терминальный статус
// после неуспешного условного UPDATE.
func (r *DisputeRepository) missOrFinalized(ctx context.Context, id uuid.UUID) error {
	if _, err := r.getWithoutThread(ctx, id); err != nil {
		return err
	}
	return ErrDisputeFinalized
}

// getWithoutThread возвращает спор без загрузки треда сообщений.
func (r *DisputeRepository) getWithoutThread(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get %w", err)
	}
	return &d, nil
}
