package handlers

import (
	"net/http"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/services"

	"github.com/gin-gonic/gin"
)

type WorkRequestHandler struct {
	service *services.WorkRequestService
	reviews *services.ReviewService
}

func NewWorkRequestHandler(service *services.WorkRequestService, reviews *services.ReviewService) *WorkRequestHandler {
	return &WorkRequestHandler{service: service, reviews: reviews}
}

// ListWorkRequests returns open listings with optional category filter
func (h *WorkRequestHandler) ListWorkRequests(c *gin.Context) {
	limit, offset := pagination(c)
	list, total, err := h.service.List(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, wr := range list {
		wr.Requester = wr.Requester.PublicProfile()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"count":   len(list),
		"total":   total,
	})
}

// GetWorkRequest returns a listing with its proposals. Reading it applies
// any auto-completion that has come due. Proposal contact details are only
// shown to the requester and to the expert who wrote the proposal.
func (h *WorkRequestHandler) GetWorkRequest(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	viewerID, _ := auth.GetUserID(c)
	detail.RedactFor(viewerID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    detail,
	})
}

func (h *WorkRequestHandler) CreateWorkRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.CreateWorkRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wr, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    wr,
	})
}

func (h *WorkRequestHandler) UpdateWorkRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateWorkRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wr, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    wr,
	})
}

// DeleteWorkRequest cancels a listing
func (h *WorkRequestHandler) DeleteWorkRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Work request cancelled",
	})
}

// SubmitWorkRequest sends a draft for admin review
func (h *WorkRequestHandler) SubmitWorkRequest(c *gin.Context) {
	h.requestAction(c, h.service.SubmitForApproval)
}

// CloseWorkRequest stops taking applicants
func (h *WorkRequestHandler) CloseWorkRequest(c *gin.Context) {
	h.requestAction(c, h.service.Close)
}

// CompleteWorkRequest marks a listing done once no accepted work is outstanding
func (h *WorkRequestHandler) CompleteWorkRequest(c *gin.Context) {
	h.requestAction(c, h.service.Complete)
}

func (h *WorkRequestHandler) ListMyWorkRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.service.ListMine(c.Request.Context(), actor.UserID, limit, offset)
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
