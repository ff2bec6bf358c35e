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

// ErrRatingExists возвращается при повторной оценке того же заказа тем же пользователем.
var ErrRatingExists = errors.New("rating already exists for this order")

// RatingRepository отвечает за оценки контрагентов.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository создаёт новый экземпляр.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create сохраняет оценку. Пара (order_id, rater_id) уникальна.
func (r *RatingRepository) Create(ctx context.Context, rating *models.Rating) error {
	query := `
		INSERT INTO ratings (order_id, rater_id, rated_id, score, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, rater_id) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		rating.OrderID, rating.RaterID, rating.RatedID, rating.Score, rating.Comment).
		Scan(&rating.ID, &rating.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRatingExists
	}
	if err != nil {
		return fmt.Errorf("rating repository: create %w", err)
	}
	return nil
}

// ListByUser возвращает оценки, полученные пользователем.
func (r *RatingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.SelectContext(ctx, &ratings, `
		SELECT * FROM ratings WHERE rated_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("rating repository: list by user %w", err)
	}
	return ratings, nil
}

// SummaryForUser возвращает среднюю оценку и количество отзывов.
func (r *RatingRepository) SummaryForUser(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	var summary models.RatingSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT COALESCE(AVG(score), 0) AS avg_score, COUNT(*) AS count
		FROM ratings WHERE rated_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("rating repository: summary %w", err)
	}
	return &summary, nil
}
