package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/agrovoz/agromarket-backend/internal/cache"
	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

// Разрешённые типы загружаемых файлов: изображения и PDF-доказательства.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"application/pdf": {},
}

// MediaStore описывает зависимости MediaService от слоя хранилища.
type MediaStore interface {
	Create(ctx context.Context, m *models.MediaFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (string, error)
}

// FileStore описывает файловое хранилище.
type FileStore interface {
	Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, relativePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, relativePath string) error
}

// MediaService инкапсулирует загрузку файлов и выдачу публичных ссылок.
type MediaService struct {
	media   MediaStore
	files   FileStore
	cache   *cache.Cache
	urlTTL  time.Duration
	baseURL string
}

// NewMediaService создаёт сервис медиафайлов.
func NewMediaService(media MediaStore, files FileStore, c *cache.Cache, urlTTL time.Duration) *MediaService {
	return &MediaService{
		media:   media,
		files:   files,
		cache:   c,
		urlTTL:  urlTTL,
		baseURL: "/api/media/",
	}
}

// Upload проверяет тип содержимого по сигнатуре и сохраняет файл.
func (s *MediaService) Upload(ctx context.Context, ownerID uuid.UUID, originalName string, data []byte) (*models.MediaFile, error) {
	if len(data) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "файл пуст")
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return nil, apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла")
	}
	if _, ok := allowedMimeTypes[kind.MIME.Value]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "допускаются только изображения и PDF")
	}

	path, size, err := s.files.Save(ctx, ownerID, originalName, bytes.NewReader(data))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
	}

	file := &models.MediaFile{
		OwnerID:   ownerID,
		Path:      path,
		MimeType:  kind.MIME.Value,
		SizeBytes: size,
	}
	if err := s.media.Create(ctx, file); err != nil {
		_ = s.files.Delete(ctx, path)
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить метаданные файла")
	}

	file.URL = s.publicURL(ctx, file.ID)
	return file, nil
}

// Get возвращает метаданные файла с публичной ссылкой.
func (s *MediaService) Get(ctx context.Context, fileID uuid.UUID) (*models.MediaFile, error) {
	file, err := s.media.GetByID(ctx, fileID)
	if err != nil {
		return nil, mapMediaError(err)
	}

	file.URL = s.publicURL(ctx, file.ID)
	return file, nil
}

// OpenContent открывает содержимое файла для отдачи клиенту.
func (s *MediaService) OpenContent(ctx context.Context, fileID uuid.UUID) (io.ReadCloser, *models.MediaFile, error) {
	file, err := s.media.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, mapMediaError(err)
	}

	rc, err := s.files.Open(ctx, file.Path)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть файл")
	}
	return rc, file, nil
}

// Delete удаляет файл владельца из БД и с диска.
func (s *MediaService) Delete(ctx context.Context, fileID, ownerID uuid.UUID) error {
	path, err := s.media.Delete(ctx, fileID, ownerID)
	if err != nil {
		return mapMediaError(err)
	}

	if err := s.files.Delete(ctx, path); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось удалить файл с диска")
	}

	if s.cache != nil {
		s.cache.Delete(cache.MediaURLCacheKey(fileID))
	}
	return nil
}

// publicURL строит публичную ссылку на файл через TTL-кэш.
func (s *MediaService) publicURL(ctx context.Context, fileID uuid.UUID) string {
	build := func() (interface{}, error) {
		return s.baseURL + fileID.String() + "/content", nil
	}

	if s.cache == nil {
		url, _ := build()
		return url.(string)
	}

	value, err := s.cache.GetOrSet(ctx, cache.MediaURLCacheKey(fileID), s.urlTTL, build)
	if err != nil {
		url, _ := build()
		return url.(string)
	}
	return value.(string)
}

// mapMediaError переводит ошибки репозитория в ошибки приложения.
func mapMediaError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrMediaNotFound):
		return apperror.New(apperror.ErrCodeNotFound, "файл не найден")
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, "внутренняя ошибка сервиса медиафайлов")
	}
}
