package handlers

import (
	"net/http"

	"outsourcing-market/internal/models"
	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	cash *services.CashService
}

func NewUserHandler(cash *services.CashService) *UserHandler {
	return &UserHandler{cash: cash}
}

// GetCash returns the caller's cash balance and ledger
func (h *UserHandler) GetCash(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	summary, err := h.cash.Summary(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// RequestWithdrawal asks for cash to be paid out to a bank account
func (h *UserHandler) RequestWithdrawal(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.cash.RequestWithdrawal(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    w,
	})
}

// ListWithdrawals returns the caller's withdrawal requests
func (h *UserHandler) ListWithdrawals(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.cash.ListWithdrawals(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"count":   len(list),
	})
}
