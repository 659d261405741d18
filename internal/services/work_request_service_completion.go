package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"

	"github.com/google/uuid"
)

// RequestCompletion is the expert reporting the work done
func (s *WorkRequestService) RequestCompletion(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.RequestCompletion(snap, actor, proposalID)
	})
	if err != nil {
		return nil, err
	}
	return changedProposal(res, proposalID)
}

// DisputeCompletion stops auto-completion of a completion request
func (s *WorkRequestService) DisputeCompletion(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.Dispute(snap, actor, proposalID)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Proposal] Completion of %s disputed by user %d", proposalID, actor.UserID)
	return changedProposal(res, proposalID)
}

// ConfirmCompletion completes an accepted proposal and settles it
func (s *WorkRequestService) ConfirmCompletion(ctx context.Context, actor lifecycle.Actor, requestID, proposalID uuid.UUID) (*models.Proposal, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.ConfirmCompletion(snap, actor, proposalID)
	})
	if err != nil {
		return nil, err
	}
	for _, st := range res.Settlements {
		log.Printf("[Settlement] %s %s: gross=%d commission=%d payout=%d",
			st.ReferenceType, st.ReferenceID, st.GrossAmount, st.CommissionAmount, st.PayoutAmount)
	}
	return changedProposal(res, proposalID)
}

// WarnPendingAutoCompletions warns requesters about proposals that will
// auto-complete within the policy's warning window.
func (s *WorkRequestService) WarnPendingAutoCompletions(ctx context.Context) (int, error) {
	policy := s.machine.Policy()
	now := s.machine.Now()
	cutoff := now.Add(-(policy.AutoCompleteAfter - policy.WarnBefore))

	candidates, err := s.repo.StaleCompletionRequests(ctx, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to load completion requests: %w", err)
	}

	sent := 0
	for _, p := range candidates {
		if !s.machine.WarningDue(p, now) {
			continue
		}
		proposalID := p.ID
		res, err := s.transition(ctx, p.WorkRequestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
			return s.machine.WarnAutoCompletion(snap, proposalID)
		})
		if err != nil {
			var lerr *lifecycle.Error
			if errors.As(err, &lerr) {
				continue
			}
			log.Printf("[WorkRequest] Failed to warn on proposal %s: %v", proposalID, err)
			continue
		}
		if !res.Empty() {
			sent++
		}
	}
	return sent, nil
}
