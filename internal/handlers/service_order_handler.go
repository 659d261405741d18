package handlers

import (
	"context"
	"net/http"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type ServiceOrderHandler struct {
	orders *services.ServiceOrderService
}

func NewServiceOrderHandler(orders *services.ServiceOrderService) *ServiceOrderHandler {
	return &ServiceOrderHandler{orders: orders}
}

func (h *ServiceOrderHandler) Checkout(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

func (h *ServiceOrderHandler) ListMyOrders(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.orders.ListMine(c.Request.Context(), actor.UserID, limit, offset)
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

func (h *ServiceOrderHandler) ApproveOrder(c *gin.Context) {
	h.orderAction(c, h.orders.Approve)
}

func (h *ServiceOrderHandler) CompleteOrder(c *gin.Context) {
	h.orderAction(c, h.orders.Complete)
}

func (h *ServiceOrderHandler) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	h.orderAction(c, func(ctx context.Context, actor lifecycle.Actor, id uint) (*models.ServiceOrder, error) {
		return h.orders.Cancel(ctx, actor, id, req.Reason)
	})
}

func (h *ServiceOrderHandler) orderAction(c *gin.Context, op func(context.Context, lifecycle.Actor, uint) (*models.ServiceOrder, error)) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	order, err := op(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
