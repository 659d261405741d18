package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxApplyAttempts bounds how often a transition is recomputed after losing
// a version race.
const maxApplyAttempts = 3

type WorkRequestService struct {
	repo     *repository.Repository
	machine  *lifecycle.Machine
	notifier Notifier
}

func NewWorkRequestService(repo *repository.Repository, machine *lifecycle.Machine, notifier Notifier) *WorkRequestService {
	return &WorkRequestService{
		repo:     repo,
		machine:  machine,
		notifier: notifier,
	}
}

// transition loads the current snapshot, computes fn against it and writes
// the result. A lost version race recomputes from fresh state; domain
// errors are returned as they are.
func (s *WorkRequestService) transition(
	ctx context.Context,
	requestID uuid.UUID,
	fn func(lifecycle.Snapshot) (*lifecycle.Result, error),
) (*lifecycle.Result, error) {
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		snap, err := s.load(ctx, requestID)
		if err != nil {
			return nil, err
		}

		res, err := fn(snap)
		if err != nil {
			return nil, err
		}
		if res.Empty() {
			return res, nil
		}

		err = s.repo.ApplyResult(ctx, res)
		if errors.Is(err, repository.ErrStaleSnapshot) {
			log.Printf("[WorkRequest] Version conflict on %s (attempt %d)", requestID, attempt)
			continue
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &lifecycle.Error{Kind: lifecycle.ErrConflict, Reason: "duplicate proposal", RequestID: requestID}
		}
		if errors.Is(err, repository.ErrDuplicateSettlement) {
			return nil, &lifecycle.Error{Kind: lifecycle.ErrConflict, Reason: "proposal already settled", RequestID: requestID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save work request %s: %w", requestID, err)
		}

		publish(ctx, s.notifier, res.Events)
		return res, nil
	}

	return nil, &lifecycle.Error{
		Kind:      lifecycle.ErrConflict,
		Reason:    "request was modified concurrently, please retry",
		RequestID: requestID,
	}
}

// load reads a snapshot and applies any auto-completion that has come due.
func (s *WorkRequestService) load(ctx context.Context, requestID uuid.UUID) (lifecycle.Snapshot, error) {
	snap, _, err := s.evaluate(ctx, requestID)
	return snap, err
}

// evaluate is load that also reports whether anything was auto-completed.
func (s *WorkRequestService) evaluate(ctx context.Context, requestID uuid.UUID) (lifecycle.Snapshot, bool, error) {
	applied := false
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		snap, err := s.repo.LoadSnapshot(ctx, requestID)
		if err != nil {
			return lifecycle.Snapshot{}, applied, err
		}

		res, err := s.machine.EvaluateAutoCompletion(snap)
		if err != nil {
			return lifecycle.Snapshot{}, applied, err
		}
		if res.Empty() {
			return snap, applied, nil
		}

		err = s.repo.ApplyResult(ctx, res)
		if errors.Is(err, repository.ErrStaleSnapshot) {
			continue
		}
		if err != nil {
			return lifecycle.Snapshot{}, applied, fmt.Errorf("failed to auto-complete work request %s: %w", requestID, err)
		}

		applied = true
		log.Printf("[WorkRequest] Auto-completed %d proposal(s) on %s", len(res.Proposals), requestID)
		publish(ctx, s.notifier, res.Events)
	}
	snap, err := s.repo.LoadSnapshot(ctx, requestID)
	return snap, applied, err
}

// Snapshot returns a work request with its proposals after applying any
// auto-completion that has come due. Other services read through it.
func (s *WorkRequestService) Snapshot(ctx context.Context, requestID uuid.UUID) (lifecycle.Snapshot, error) {
	return s.load(ctx, requestID)
}

// settleDue evaluates auto-completion on each distinct request and reports
// whether any of them changed.
func (s *WorkRequestService) settleDue(ctx context.Context, requestIDs []uuid.UUID) (bool, error) {
	seen := make(map[uuid.UUID]bool, len(requestIDs))
	changed := false
	for _, id := range requestIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		_, applied, err := s.evaluate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}
	return changed, nil
}

// mayAutoComplete reports whether a listing can hold accepted proposals.
func mayAutoComplete(req *models.WorkRequest) bool {
	switch req.Status {
	case models.WorkRequestStatusOpen, models.WorkRequestStatusInProgress, models.WorkRequestStatusClosed:
		return true
	}
	return false
}

func dueRequestIDs(requests []*models.WorkRequest) []uuid.UUID {
	var ids []uuid.UUID
	for _, req := range requests {
		if mayAutoComplete(req) {
			ids = append(ids, req.ID)
		}
	}
	return ids
}

// Create posts a new work request
func (s *WorkRequestService) Create(ctx context.Context, actor lifecycle.Actor, in models.CreateWorkRequestRequest) (*models.WorkRequest, error) {
	res, err := s.machine.NewRequest(actor, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyResult(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to create work request: %w", err)
	}

	log.Printf("[WorkRequest] %s created by user %d (status %s)", res.Request.ID, actor.UserID, res.Request.Status)
	publish(ctx, s.notifier, res.Events)
	return res.Request, nil
}

// Get returns a work request with its proposals. Reading it completes any
// proposal whose auto-completion has come due.
func (s *WorkRequestService) Get(ctx context.Context, requestID uuid.UUID) (*models.WorkRequestDetail, error) {
	snap, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &models.WorkRequestDetail{WorkRequest: snap.Request, Proposals: snap.Proposals}, nil
}

// List returns open listings, optionally filtered by category. Listed
// requests are evaluated for auto-completion like single reads.
func (s *WorkRequestService) List(ctx context.Context, category string, limit, offset int) ([]*models.WorkRequest, int64, error) {
	list, total, err := s.repo.ListOpenWorkRequests(ctx, category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	changed, err := s.settleDue(ctx, dueRequestIDs(list))
	if err != nil || !changed {
		return list, total, err
	}
	return s.repo.ListOpenWorkRequests(ctx, category, limit, offset)
}

// ListMine returns the caller's own listings
func (s *WorkRequestService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]*models.WorkRequest, error) {
	list, err := s.repo.ListRequesterWorkRequests(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	changed, err := s.settleDue(ctx, dueRequestIDs(list))
	if err != nil || !changed {
		return list, err
	}
	return s.repo.ListRequesterWorkRequests(ctx, userID, limit, offset)
}

// ListPendingApproval returns listings waiting for review
func (s *WorkRequestService) ListPendingApproval(ctx context.Context, limit, offset int) ([]*models.WorkRequest, error) {
	return s.repo.ListPendingApproval(ctx, limit, offset)
}

// Update edits a draft or open listing
func (s *WorkRequestService) Update(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID, in models.UpdateWorkRequestRequest) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.EditRequest(snap, actor, in)
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// Approve opens a pending listing (admin)
func (s *WorkRequestService) Approve(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.Approve(snap, actor)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[WorkRequest] %s approved by admin user %d", requestID, actor.UserID)
	return res.Request, nil
}

// Reject turns down a pending listing (admin)
func (s *WorkRequestService) Reject(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID, reason string) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.Reject(snap, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[WorkRequest] %s rejected by admin user %d", requestID, actor.UserID)
	return res.Request, nil
}

// SubmitForApproval moves a payment-first draft into review
func (s *WorkRequestService) SubmitForApproval(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.SubmitForApproval(snap, actor)
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// Close stops an open listing from taking new proposals
func (s *WorkRequestService) Close(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.CloseToApplicants(snap, actor)
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// Cancel soft-deletes a listing that has not started
func (s *WorkRequestService) Cancel(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) error {
	_, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.Cancel(snap, actor)
	})
	if err != nil {
		return err
	}
	log.Printf("[WorkRequest] %s cancelled by user %d", requestID, actor.UserID)
	return nil
}

// Complete finishes a started listing with nothing outstanding
func (s *WorkRequestService) Complete(ctx context.Context, actor lifecycle.Actor, requestID uuid.UUID) (*models.WorkRequest, error) {
	res, err := s.transition(ctx, requestID, func(snap lifecycle.Snapshot) (*lifecycle.Result, error) {
		return s.machine.CompleteRequest(snap, actor)
	})
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}
