package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing описывает объявление поставщика: техника, работы или продукция.
type Listing struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ProviderID  uuid.UUID  `db:"provider_id" json:"provider_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Category    string     `db:"category" json:"category"`
	UnitPrice   float64    `db:"unit_price" json:"unit_price"`
	Unit        string     `db:"unit" json:"unit"`
	Region      *string    `db:"region" json:"region,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	PhotoID     *uuid.UUID `db:"photo_id" json:"photo_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
