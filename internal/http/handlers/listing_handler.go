package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agrovoz/agromarket-backend/internal/dto"
	"github.com/agrovoz/agromarket-backend/internal/http/handlers/common"
	"github.com/agrovoz/agromarket-backend/internal/service"
)

// ListingHandler обслуживает объявления поставщиков.
type ListingHandler struct {
	svc *service.ListingService
}

// NewListingHandler создаёт новый хэндлер.
func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

// Create POST /api/listings
func (h *ListingHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	in, ok := bindListingInput(c)
	if !ok {
		return
	}

	listing, err := h.svc.Create(c.Request.Context(), userID, in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// Get GET /api/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// List GET /api/listings?category=...
func (h *ListingHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	listings, err := h.svc.List(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listings)
}

// ListMine GET /api/listings/my
func (h *ListingHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	listings, err := h.svc.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listings)
}

// Update PUT /api/listings/:id
func (h *ListingHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	in, ok := bindListingInput(c)
	if !ok {
		return
	}

	listing, err := h.svc.Update(c.Request.Context(), id, userID, in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// Delete DELETE /api/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, userID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "объявление удалено"})
}

// bindListingInput разбирает тело запроса объявления.
func bindListingInput(c *gin.Context) (service.ListingInput, bool) {
	var req dto.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return service.ListingInput{}, false
	}

	in := service.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   req.UnitPrice,
		Unit:        req.Unit,
		Region:      req.Region,
		IsActive:    req.IsActive,
	}

	if req.PhotoID != nil {
		photoID, err := uuid.Parse(*req.PhotoID)
		if err != nil {
			common.RespondBadRequest(c, "photo_id должен быть валидным UUID")
			return service.ListingInput{}, false
		}
		in.PhotoID = &photoID
	}

	return in, true
}
