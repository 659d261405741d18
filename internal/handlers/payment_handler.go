package handlers

import (
	"net/http"

	"outsourcing-market/internal/models"
	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *services.PaymentService
	coupons  *services.CouponService
}

func NewPaymentHandler(payments *services.PaymentService, coupons *services.CouponService) *PaymentHandler {
	return &PaymentHandler{payments: payments, coupons: coupons}
}

// SubmitPayment records a bank transfer for admin confirmation
func (h *PaymentHandler) SubmitPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.payments.Submit(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    payment,
	})
}

func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.payments.ListMine(c.Request.Context(), actor.UserID, limit, offset)
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

// ValidateCoupon quotes a coupon without using it
func (h *PaymentHandler) ValidateCoupon(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.coupons.Quote(c.Request.Context(), actor.UserID, req.Code, req.PurchaseType, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}
