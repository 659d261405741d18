package handlers

import (
	"context"
	"net/http"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type requestOp func(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) (*models.WorkRequest, error)

type proposalOp func(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error)

func (h *WorkRequestHandler) requestAction(c *gin.Context, op requestOp) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	wr, err := op(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    wr,
	})
}

func (h *WorkRequestHandler) proposalAction(c *gin.Context, op proposalOp) {
	actor, requestID, proposalID, ok := proposalParams(c)
	if !ok {
		return
	}

	p, err := op(c.Request.Context(), actor, requestID, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p,
	})
}

func proposalParams(c *gin.Context) (lifecycle.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return actor, uuid.Nil, uuid.Nil, false
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return actor, uuid.Nil, uuid.Nil, false
	}
	proposalID, ok := uuidParam(c, "proposal_id")
	if !ok {
		return actor, uuid.Nil, uuid.Nil, false
	}
	return actor, requestID, proposalID, true
}

func (h *WorkRequestHandler) SubmitProposal(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.SubmitProposal(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    p,
	})
}

func (h *WorkRequestHandler) UpdateProposal(c *gin.Context) {
	actor, requestID, proposalID, ok := proposalParams(c)
	if !ok {
		return
	}

	var req models.UpdateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.UpdateProposal(c.Request.Context(), actor, requestID, proposalID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p,
	})
}

func (h *WorkRequestHandler) WithdrawProposal(c *gin.Context) {
	actor, requestID, proposalID, ok := proposalParams(c)
	if !ok {
		return
	}

	if err := h.service.WithdrawProposal(c.Request.Context(), actor, requestID, proposalID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Proposal withdrawn",
	})
}

func (h *WorkRequestHandler) AcceptProposal(c *gin.Context) {
	h.proposalAction(c, h.service.AcceptProposal)
}

func (h *WorkRequestHandler) RejectProposal(c *gin.Context) {
	h.proposalAction(c, h.service.RejectProposal)
}

// RequestCompletion is the expert reporting the work done
func (h *WorkRequestHandler) RequestCompletion(c *gin.Context) {
	h.proposalAction(c, h.service.RequestCompletion)
}

// ConfirmCompletion is the requester accepting the delivered work
func (h *WorkRequestHandler) ConfirmCompletion(c *gin.Context) {
	h.proposalAction(c, h.service.ConfirmCompletion)
}

func (h *WorkRequestHandler) DisputeCompletion(c *gin.Context) {
	h.proposalAction(c, h.service.DisputeCompletion)
}

func (h *WorkRequestHandler) ReviewProposal(c *gin.Context) {
	actor, requestID, proposalID, ok := proposalParams(c)
	if !ok {
		return
	}

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.reviews.Create(c.Request.Context(), actor, requestID, proposalID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    review,
	})
}

func (h *WorkRequestHandler) ListMyProposals(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	list, err := h.service.ListMyProposals(c.Request.Context(), actor.UserID, limit, offset)
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

// GetExpertRating returns an expert's average review rating
func (h *WorkRequestHandler) GetExpertRating(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	rating, err := h.reviews.ExpertRating(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rating,
	})
}
