package handlers

import (
	"net/http"

	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications returns the caller's inbox; ?unread=true filters to unread
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.notifications.List(c.Request.Context(), actor.UserID, c.Query("unread") == "true", limit, offset)
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

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count,
	})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), actor.UserID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": n,
	})
}
