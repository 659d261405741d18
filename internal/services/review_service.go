package services

import (
	"context"
	"errors"
	"strings"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"

	"github.com/google/uuid"
)

type ReviewService struct {
	repo         *repository.Repository
	workRequests *WorkRequestService
}

func NewReviewService(repo *repository.Repository, workRequests *WorkRequestService) *ReviewService {
	return &ReviewService{repo: repo, workRequests: workRequests}
}

// Create lets the requester review a completed proposal once.
func (s *ReviewService) Create(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID, in models.ReviewRequest) (*models.WorkRequestReview, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "rating must be between 1 and 5")
	}

	// Reading through the snapshot completes a proposal whose confirmation
	// window has already passed.
	snap, p, err := s.workRequests.FindProposal(ctx, requestID, proposalID)
	if err != nil {
		return nil, err
	}
	if snap.Request.RequesterID != actor.UserID {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "only the requester can review this proposal")
	}
	if p.Status != models.ProposalStatusCompleted {
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "only completed work can be reviewed")
	}

	review := &models.WorkRequestReview{
		ProposalID:    p.ID,
		WorkRequestID: requestID,
		ReviewerID:    actor.UserID,
		ExpertID:      p.ExpertID,
		Rating:        in.Rating,
		Content:       strings.TrimSpace(in.Content),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, lifecycle.Fail(lifecycle.ErrConflict, "proposal already reviewed")
		}
		return nil, err
	}
	return review, nil
}

// ExpertRating returns an expert's average rating
func (s *ReviewService) ExpertRating(ctx context.Context, expertID uint) (*models.ExpertRating, error) {
	return s.repo.ExpertRating(ctx, expertID)
}
