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

// ErrMediaNotFound возвращается для отсутствующего файла.
var ErrMediaNotFound = errors.New("media not found")

// MediaRepository отвечает за метаданные загруженных файлов.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository создаёт новый экземпляр.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create сохраняет метаданные файла.
func (r *MediaRepository) Create(ctx context.Context, m *models.MediaFile) error {
	query := `
		INSERT INTO media_files (owner_id, path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query, m.OwnerID, m.Path, m.MimeType, m.SizeBytes).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("media repository: create %w", err)
	}
	return nil
}

// GetByID возвращает метаданные файла.
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	var media models.MediaFile
	err := r.db.GetContext(ctx, &media, `SELECT id, owner_id, path, mime_type, size_bytes, created_at FROM media_files WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("media repository: get by id %w", err)
	}
	return &media, nil
}

// Delete удаляет метаданные файла владельца и возвращает путь удалённого файла.
func (r *MediaRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	var path string
	err := r.db.GetContext(ctx, &path, `
		DELETE FROM media_files WHERE id = $1 AND owner_id = $2 RETURNING path
	`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMediaNotFound
	}
	if err != nil {
		return "", fmt.Errorf("media repository: delete %w", err)
	}
	return path, nil
}
