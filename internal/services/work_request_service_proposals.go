package services

import (
	"context"
	"fmt"
	"log"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"

	"github.com/google/uuid"
)

// SubmitProposal records an expert's proposal on an open listing
func (s *WorkRequestService) SubmitProposal(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID, in models.SubmitProposalRequest) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.SubmitProposal(snap, actor, in)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Proposal] %s submitted on %s by user %d", res.NewProposal.ID, requestID, actor.UserID)
	return res.NewProposal, nil
}

// UpdateProposal edits a pending proposal
func (s *WorkRequestService) UpdateProposal(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID, in models.UpdateProposalRequest) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.EditProposal(snap, actor, proposalID, in)
	})
	if err != nil {
		return nil, err
	}
	return changedProposal(res, proposalID)
}

// WithdrawProposal deletes a pending proposal
func (s *WorkRequestService) WithdrawProposal(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) error {
	_, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.WithdrawProposal(snap, actor, proposalID)
	})
	return err
}

// AcceptProposal accepts a pending proposal
func (s *WorkRequestService) AcceptProposal(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.AcceptProposal(snap, actor, proposalID)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Proposal] %s accepted (request %s now %s)", proposalID, requestID, res.Request.Status)
	return changedProposal(res, proposalID)
}

// RejectProposal rejects a pending proposal
func (s *WorkRequestService) RejectProposal(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.RejectProposal(snap, actor, proposalID)
	})
	if err != nil {
		return nil, err
	}
	return changedProposal(res, proposalID)
}

// ListMyProposals lists the caller's proposals. Proposals waiting on a
// completion confirmation are evaluated before they are returned.
func (s *WorkRequestService) ListMyProposals(ctx context.Context, expertID uint, limit, offset int) ([]models.Proposal, error) {
	list, err := s.repo.ListExpertProposals(ctx, expertID, limit, offset)
	if err != nil {
		return nil, err
	}

	var due []uuid.UUID
	for _, p := range list {
		if p.Status == models.ProposalStatusAccepted && p.CompletionRequestedAt != nil && p.DisputedAt == nil {
			due = append(due, p.WorkRequestID)
		}
	}
	changed, err := s.settleDue(ctx, due)
	if err != nil || !changed {
		return list, err
	}
	return s.repo.ListExpertProposals(ctx, expertID, limit, offset)
}

// FindProposal returns a proposal of a request from an evaluated snapshot.
func (s *WorkRequestService) FindProposal(ctx context.Context, requestID, proposalID uuid.UUID) (lifecycle.Snapshot, *models.Proposal, error) {
	snap, err := s.load(ctx, requestID)
	if err != nil {
		return lifecycle.Snapshot{}, nil, err
	}
	for i := range snap.Proposals {
		if snap.Proposals[i].ID == proposalID {
			return snap, &snap.Proposals[i], nil
		}
	}
	return snap, nil, lifecycle.Fail(lifecycle.ErrNotFound, "proposal not found")
}

func changedProposal(res *lifecycle.Result, proposalID uuid.UUID) (*models.Proposal, error) {
	for i := range res.Proposals {
		if res.Proposals[i].ID == proposalID {
			return &res.Proposals[i], nil
		}
	}
	return nil, fmt.Errorf("proposal %s missing from result", proposalID)
}
