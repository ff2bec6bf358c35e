package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaFile описывает загруженный файл: фото объявления или доказательство по спору.
type MediaFile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Path      string    `db:"path" json:"-"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Публичная ссылка, вычисляется на лету и в БД не хранится.
	URL string `db:"-" json:"url,omitempty"`
}
