package handlers

import (
	"net/http"
	"strconv"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService *services.AdminService
	workRequests *services.WorkRequestService
	payments     *services.PaymentService
	cash         *services.CashService
}

func NewAdminHandler(
	adminService *services.AdminService,
	workRequests *services.WorkRequestService,
	payments *services.PaymentService,
	cash *services.CashService,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		workRequests: workRequests,
		payments:     payments,
		cash:         cash,
	}
}

// AdminMiddleware checks if user is admin
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		admin, err := h.adminService.GetAdminByUserID(userID.(uint))
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not an admin"})
			c.Abort()
			return
		}

		c.Set("admin_id", admin.ID)
		c.Set("admin_role", admin.Role)
		c.Next()
	}
}

// SuperAdminMiddleware checks if user is super admin
func (h *AdminHandler) SuperAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("admin_role")
		if !exists || role != models.AdminRoleSuperAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// audit records an admin action along with the handle from the caller's token.
func (h *AdminHandler) audit(c *gin.Context, actor lifecycle.Actor, action, resourceType, resourceID string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["admin_handle"] = auth.GetHandle(c)
	h.adminService.LogAdminAction(actor.UserID, action, resourceType, resourceID, details)
}

// GetPendingWorkRequests returns listings waiting for review
func (h *AdminHandler) GetPendingWorkRequests(c *gin.Context) {
	limit, offset := pagination(c)

	list, err := h.workRequests.ListPendingApproval(c.Request.Context(), limit, offset)
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

func (h *AdminHandler) ApproveWorkRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	wr, err := h.workRequests.Approve(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionApproveWorkRequest,
		models.ReferenceTypeWorkRequest, id.String(), nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    wr,
	})
}

func (h *AdminHandler) RejectWorkRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	wr, err := h.workRequests.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionRejectWorkRequest,
		models.ReferenceTypeWorkRequest, id.String(), map[string]interface{}{"reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    wr,
	})
}

// GetPendingPayments returns payments waiting for a deposit check
func (h *AdminHandler) GetPendingPayments(c *gin.Context) {
	limit, offset := pagination(c)

	list, err := h.payments.ListPending(c.Request.Context(), limit, offset)
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

func (h *AdminHandler) ConfirmPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.Confirm(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionConfirmPayment,
		models.ReferenceTypePayment, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
			"paid_amount": payment.PaidAmount,
		})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}

func (h *AdminHandler) RejectPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	payment, err := h.payments.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionRejectPayment,
		models.ReferenceTypePayment, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
			"reason": req.Reason,
		})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}

// GetPendingWithdrawals returns withdrawals waiting for a bank transfer
func (h *AdminHandler) GetPendingWithdrawals(c *gin.Context) {
	limit, offset := pagination(c)

	list, err := h.cash.ListPendingWithdrawals(c.Request.Context(), limit, offset)
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

func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	w, err := h.cash.ApproveWithdrawal(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionApproveWithdrawal,
		models.ReferenceTypeWithdrawal, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
			"amount":  w.Amount,
			"user_id": w.UserID,
		})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    w,
	})
}

func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	w, err := h.cash.RejectWithdrawal(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, actor, services.AdminActionRejectWithdrawal,
		models.ReferenceTypeWithdrawal, strconv.FormatUint(uint64(id), 10), map[string]interface{}{
			"reason": req.Reason,
		})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    w,
	})
}

// PromoteToAdmin promotes a user to admin
func (h *AdminHandler) PromoteToAdmin(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Role != models.AdminRoleSuperAdmin && req.Role != models.AdminRoleModerator {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	admin, err := h.adminService.PromoteUserToAdmin(req.UserID, req.Role, actor.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    admin,
	})
}

// GetAdminLogs returns admin activity logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.adminService.GetAdminLogs(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}
