package handlers

import (
	"net/http"
	"time"

	"outsourcing-market/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the router serves.
type Handlers struct {
	WorkRequests  *WorkRequestHandler
	Payments      *PaymentHandler
	ServiceOrders *ServiceOrderHandler
	Notifications *NotificationHandler
	Users         *UserHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the API on router.
func RegisterRoutes(router *gin.Engine, h Handlers) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Public listing routes
	router.GET("/api/work-requests", h.WorkRequests.ListWorkRequests)
	router.GET("/api/work-requests/:id", auth.OptionalAuthMiddleware(), h.WorkRequests.GetWorkRequest)

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/work-requests/mine", h.WorkRequests.ListMyWorkRequests)
		api.POST("/work-requests", h.WorkRequests.CreateWorkRequest)
		api.PUT("/work-requests/:id", h.WorkRequests.UpdateWorkRequest)
		api.DELETE("/work-requests/:id", h.WorkRequests.DeleteWorkRequest)
		api.POST("/work-requests/:id/submit", h.WorkRequests.SubmitWorkRequest)
		api.POST("/work-requests/:id/close", h.WorkRequests.CloseWorkRequest)
		api.POST("/work-requests/:id/complete", h.WorkRequests.CompleteWorkRequest)

		// Proposal endpoints
		api.POST("/work-requests/:id/proposals", h.WorkRequests.SubmitProposal)
		api.PUT("/work-requests/:id/proposals/:proposal_id", h.WorkRequests.UpdateProposal)
		api.DELETE("/work-requests/:id/proposals/:proposal_id", h.WorkRequests.WithdrawProposal)
		api.POST("/work-requests/:id/proposals/:proposal_id/accept", h.WorkRequests.AcceptProposal)
		api.POST("/work-requests/:id/proposals/:proposal_id/reject", h.WorkRequests.RejectProposal)
		api.POST("/work-requests/:id/proposals/:proposal_id/request-completion", h.WorkRequests.RequestCompletion)
		api.POST("/work-requests/:id/proposals/:proposal_id/complete", h.WorkRequests.ConfirmCompletion)
		api.POST("/work-requests/:id/proposals/:proposal_id/dispute", h.WorkRequests.DisputeCompletion)
		api.POST("/work-requests/:id/proposals/:proposal_id/review", h.WorkRequests.ReviewProposal)
		api.GET("/proposals/mine", h.WorkRequests.ListMyProposals)
		api.GET("/experts/:id/rating", h.WorkRequests.GetExpertRating)

		// Payment endpoints
		api.POST("/payments", h.Payments.SubmitPayment)
		api.GET("/payments", h.Payments.ListMyPayments)
		api.POST("/coupons/validate", h.Payments.ValidateCoupon)

		// Service order endpoints
		api.POST("/service-orders", h.ServiceOrders.Checkout)
		api.GET("/service-orders", h.ServiceOrders.ListMyOrders)
		api.POST("/service-orders/:id/approve", h.ServiceOrders.ApproveOrder)
		api.POST("/service-orders/:id/complete", h.ServiceOrders.CompleteOrder)
		api.POST("/service-orders/:id/cancel", h.ServiceOrders.CancelOrder)

		// Notification endpoints
		api.GET("/notifications", h.Notifications.ListNotifications)
		api.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		api.POST("/notifications/read-all", h.Notifications.MarkAllRead)
		api.POST("/notifications/:id/read", h.Notifications.MarkRead)

		api.GET("/cash", h.Users.GetCash)
		api.POST("/cash/withdrawals", h.Users.RequestWithdrawal)
		api.GET("/cash/withdrawals", h.Users.ListWithdrawals)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(h.Admin.AdminMiddleware())
	{
		admin.GET("/work-requests/pending", h.Admin.GetPendingWorkRequests)
		admin.POST("/work-requests/:id/approve", h.Admin.ApproveWorkRequest)
		admin.POST("/work-requests/:id/reject", h.Admin.RejectWorkRequest)

		admin.GET("/payments/pending", h.Admin.GetPendingPayments)
		admin.POST("/payments/:id/confirm", h.Admin.ConfirmPayment)
		admin.POST("/payments/:id/reject", h.Admin.RejectPayment)

		admin.GET("/withdrawals/pending", h.Admin.GetPendingWithdrawals)
		admin.POST("/withdrawals/:id/approve", h.Admin.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.Admin.RejectWithdrawal)

		admin.GET("/logs", h.Admin.GetAdminLogs)
		admin.POST("/users/promote", h.Admin.SuperAdminMiddleware(), h.Admin.PromoteToAdmin)
	}
}
