package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrovoz/agromarket-backend/internal/dto"
	"github.com/agrovoz/agromarket-backend/internal/http/handlers/common"
	"github.com/agrovoz/agromarket-backend/internal/service"
)

// MediaHandler управляет загрузкой и выдачей медиафайлов.
type MediaHandler struct {
	svc            *service.MediaService
	maxUploadBytes int64
}

// NewMediaHandler создаёт новый хэндлер.
func NewMediaHandler(svc *service.MediaService, maxUploadMB int64) *MediaHandler {
	return &MediaHandler{svc: svc, maxUploadBytes: maxUploadMB * 1024 * 1024}
}

// Upload POST /api/media
func (h *MediaHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}

	if file.Size == 0 {
		common.RespondBadRequest(c, "файл не может быть пустым")
		return
	}
	if file.Size > h.maxUploadBytes {
		common.RespondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("файл превышает лимит %d МБ", h.maxUploadBytes/(1024*1024)))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadBytes+1))
	if err != nil {
		common.RespondError(c, http.StatusInternalServerError, "не удалось прочитать файл")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		common.RespondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("файл превышает лимит %d МБ", h.maxUploadBytes/(1024*1024)))
		return
	}

	media, err := h.svc.Upload(c.Request.Context(), userID, file.Filename, data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, media)
}

// Get GET /api/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	fileID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	media, err := h.svc.Get(c.Request.Context(), fileID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, media)
}

// Content GET /api/media/:id/content
func (h *MediaHandler) Content(c *gin.Context) {
	fileID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	rc, media, err := h.svc.OpenContent(c.Request.Context(), fileID)
	if err != nil {
		c.Error(err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, media.SizeBytes, media.MimeType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// Delete DELETE /api/media/:id
func (h *MediaHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	fileID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Delete(c.Request.Context(), fileID, userID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "файл удалён"})
}
