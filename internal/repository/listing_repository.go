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

const listingColumns = `id, provider_id, title, description, category, unit_price, unit,
	region, is_active, photo_id, created_at, updated_at`

// ListingRepository отвечает за объявления поставщиков.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository создаёт новый экземпляр.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create сохраняет новое объявление.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (provider_id, title, description, category, unit_price, unit, region, is_active, photo_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		l.ProviderID, l.Title, l.Description, l.Category, l.UnitPrice, l.Unit, l.Region, l.IsActive, l.PhotoID).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("listing repository: create %w", err)
	}
	return nil
}

// GetByID возвращает объявление по идентификатору.
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.GetContext(ctx, &listing, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("listing repository: get by id %w", err)
	}
	return &listing, nil
}

// List возвращает активные объявления, опционально по категории.
func (r *ListingRepository) List(ctx context.Context, category string, limit, offset int) ([]models.Listing, error) {
	var listings []models.Listing
	var err error
	if category != "" {
		err = r.db.SelectContext(ctx, &listings, `
			SELECT `+listingColumns+` FROM listings
			WHERE is_active AND category = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, category, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &listings, `
			SELECT `+listingColumns+` FROM listings
			WHERE is_active
			ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("listing repository: list %w", err)
	}
	return listings, nil
}

// ListByProvider возвращает все объявления поставщика, включая снятые.
func (r *ListingRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.SelectContext(ctx, &listings, `
		SELECT `+listingColumns+` FROM listings
		WHERE provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing repository: list by provider %w", err)
	}
	return listings, nil
}

// Update обновляет редактируемые поля объявления.
func (r *ListingRepository) Update(ctx context.Context, l *models.Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, category = $4, unit_price = $5, unit = $6,
		    region = $7, is_active = $8, photo_id = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		l.ID, l.Title, l.Description, l.Category, l.UnitPrice, l.Unit, l.Region, l.IsActive, l.PhotoID).
		Scan(&l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("listing repository: update %w", err)
	}
	return nil
}

// Delete удаляет объявление поставщика.
func (r *ListingRepository) Delete(ctx context.Context, id, providerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1 AND provider_id = $2`, id, providerID)
	if err != nil {
		return fmt.Errorf("listing repository: delete %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("listing repository: delete rows affected %w", err)
	}
	if affected == 0 {
		return ErrListingNotFound
	}
	return nil
}
