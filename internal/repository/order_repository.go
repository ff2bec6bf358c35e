package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/agrovoz/agromarket-backend/internal/models"
)

// Ошибки уровня репозитория заказов.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrListingNotFound = errors.New("listing not found")
)

const orderColumns = `id, listing_id, seeker_id, provider_id, type, total_amount, status,
	service_start_at, service_end_at, quantity, unit, created_at, expires_at`

// OrderRepository отвечает за работу с заказами.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет новый заказ.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (listing_id, seeker_id, provider_id, type, total_amount, status,
		                    service_start_at, service_end_at, quantity, unit, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		o.ListingID, o.SeekerID, o.ProviderID, o.Type, o.TotalAmount, o.Status,
		o.ServiceStartAt, o.ServiceEndAt, o.Quantity, o.Unit, o.ExpiresAt).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// ListByUser возвращает заказы, где пользователь выступает любой стороной.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders
		WHERE seeker_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order repository: list by user %w", err)
	}
	return orders, nil
}

// UpdateStatus меняет статус заказа. Машина статусов заказа ведётся
// внешним процессом оформления и здесь не проверяется.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	var order models.Order
	query := `UPDATE orders SET status = $2 WHERE id = $1 RETURNING ` + orderColumns
	err := r.db.GetContext(ctx, &order, query, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: update status %w", err)
	}
	return &order, nil
}

// ExpirePending отменяет просроченные заказы, оставшиеся в статусе pending.
// Возвращает количество отменённых.
func (r *OrderRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = 'canceled'
		WHERE status = 'pending' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("order repository: expire pending %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("order repository: expire pending rows affected %w", err)
	}
	return affected, nil
}
