package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrovoz/agromarket-backend/internal/dto"
	"github.com/agrovoz/agromarket-backend/internal/http/handlers/common"
	"github.com/agrovoz/agromarket-backend/internal/service"
)

// EscrowHandler обслуживает записи удержанных средств.
type EscrowHandler struct {
	svc *service.EscrowService
}

// NewEscrowHandler создаёт новый хэндлер.
func NewEscrowHandler(svc *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: svc}
}

// Open POST /api/orders/:id/escrow
func (h *EscrowHandler) Open(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Тело опционально: без него удерживается полная сумма заказа.
	var req dto.OpenEscrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	escrow, err := h.svc.Open(c.Request.Context(), orderID, req.Amount, userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, escrow)
}

// Get GET /api/orders/:id/escrow
func (h *EscrowHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Get(c.Request.Context(), orderID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Release POST /api/orders/:id/escrow/release
func (h *EscrowHandler) Release(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Release(c.Request.Context(), orderID, userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Refund POST /api/orders/:id/escrow/refund
func (h *EscrowHandler) Refund(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RefundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.Refund(c.Request.Context(), orderID, req.Reason, userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// PartialRefund POST /api/admin/orders/:id/escrow/partial-refund
func (h *EscrowHandler) PartialRefund(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.PartialRefundEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.svc.PartialRefund(c.Request.Context(), orderID, req.RefundAmount, req.Reason, userID, role)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Summary GET /api/escrow/summary
func (h *EscrowHandler) Summary(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	summary, err := h.svc.SummaryForUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
