package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating описывает оценку контрагента после завершения заказа.
type Rating struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`
	RaterID   uuid.UUID `db:"rater_id" json:"rater_id"`
	RatedID   uuid.UUID `db:"rated_id" json:"rated_id"`
	Score     int       `db:"score" json:"score"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RatingSummary средняя оценка и количество отзывов пользователя.
type RatingSummary struct {
	AvgScore float64 `db:"avg_score" json:"avg_score"`
	Count    int     `db:"count" json:"count"`
}
