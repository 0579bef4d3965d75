package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinsight/internal/service"
)

// CreditsHandler handles ledger endpoints.
type CreditsHandler struct {
	credits service.CreditsService
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(credits service.CreditsService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

type grantRequest struct {
	UserID string `json:"userId" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
}

type setAdminRequest struct {
	IsAdmin *bool `json:"isAdmin" binding:"required"`
}

// GetBalance handles GET /api/v1/credits
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		return
	}

	acct, err := h.credits.GetBalance(c.Request.Context(), userID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, acct)
}

// Grant handles POST /api/v1/admin/credits/grant
func (h *CreditsHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "userId and a non-zero amount are required")
		return
	}

	acct, err := h.credits.Grant(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, acct)
}

// SetAdmin handles PUT /api/v1/admin/credits/:userId/admin
func (h *CreditsHandler) SetAdmin(c *gin.Context) {
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_INPUT", "isAdmin is required")
		return
	}

	acct, err := h.credits.SetAdmin(c.Request.Context(), c.Param("userId"), *req.IsAdmin)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, acct)
}
