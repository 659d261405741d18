package repository

import (
	"context"
	"fmt"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var workRequestColumns = []string{
	"title", "category", "description", "reward_amount", "price_unit", "job_type",
	"max_applicants", "posting_start_date", "posting_end_date", "work_start_date",
	"work_end_date", "status", "accepted_proposal_id", "reject_reason", "approved_at",
	"completed_at", "version", "updated_at", "deleted_at",
}

var proposalColumns = []string{
	"message", "proposed_amount", "contact_info", "attachment_url", "status",
	"accepted_at", "completion_requested_at", "disputed_at", "auto_complete_warned_at",
	"completed_at", "updated_at",
}

// GetWorkRequest retrieves a work request by ID
func (r *Repository) GetWorkRequest(ctx context.Context, id uuid.UUID) (*models.WorkRequest, error) {
	var req models.WorkRequest
	err := r.db.WithContext(ctx).Preload("Requester").Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// LoadSnapshot reads a work request with all of its proposals.
func (r *Repository) LoadSnapshot(ctx context.Context, id uuid.UUID) (lifecycle.Snapshot, error) {
	req, err := r.GetWorkRequest(ctx, id)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}

	var proposals []models.Proposal
	err = r.db.WithContext(ctx).
		Preload("Expert").
		Where("work_request_id = ?", id).
		Order("created_at ASC").
		Find(&proposals).Error
	if err != nil {
		return lifecycle.Snapshot{}, err
	}

	return lifecycle.Snapshot{Request: req, Proposals: proposals}, nil
}

// ApplyResult writes the outcome of a transition in one transaction. The
// work request row is updated only if its version still matches the one
// the transition was computed from; otherwise ErrStaleSnapshot is returned
// and nothing is written.
func (r *Repository) ApplyResult(ctx context.Context, res *lifecycle.Result) error {
	if res == nil || res.Request == nil {
		return fmt.Errorf("empty result")
	}
	req := *res.Request
	req.Requester = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.Created {
			req.Version = 1
			if err := tx.Create(&req).Error; err != nil {
				return err
			}
		} else {
			expected := req.Version
			req.Version = expected + 1
			req.UpdatedAt = time.Now()

			result := tx.Model(&req).
				Where("version = ?", expected).
				Select(workRequestColumns).
				Updates(&req)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrStaleSnapshot
			}
		}

		if res.NewProposal != nil {
			if err := tx.Create(res.NewProposal).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrDuplicate
				}
				return err
			}
		}

		for i := range res.Proposals {
			p := res.Proposals[i]
			p.Expert = nil
			if err := tx.Model(&p).Select(proposalColumns).Updates(&p).Error; err != nil {
				return fmt.Errorf("failed to update proposal %s: %w", p.ID, err)
			}
		}

		for _, id := range res.DeletedProposals {
			if err := tx.Where("id = ?", id).Delete(&models.Proposal{}).Error; err != nil {
				return fmt.Errorf("failed to delete proposal %s: %w", id, err)
			}
		}

		for i := range res.Settlements {
			if err := tx.Create(&res.Settlements[i]).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrDuplicateSettlement
				}
				return fmt.Errorf("failed to record settlement: %w", err)
			}
		}

		for i := range res.Credits {
			if err := tx.Create(&res.Credits[i]).Error; err != nil {
				return fmt.Errorf("failed to credit cash: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	res.Request.Version = req.Version
	res.Request.CreatedAt = req.CreatedAt
	res.Request.UpdatedAt = req.UpdatedAt
	return nil
}

// ListOpenWorkRequests lists approved listings still taking proposals.
func (r *Repository) ListOpenWorkRequests(ctx context.Context, category string, limit, offset int) ([]*models.WorkRequest, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.WorkRequest{}).
			Where("status = ?", models.WorkRequestStatusOpen)
		if category != "" {
			q = q.Where("category = ?", category)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []*models.WorkRequest
	err := query().
		Preload("Requester").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// ListRequesterWorkRequests lists a user's own listings, newest first.
func (r *Repository) ListRequesterWorkRequests(ctx context.Context, requesterID uint, limit, offset int) ([]*models.WorkRequest, error) {
	var requests []*models.WorkRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ListPendingApproval lists listings waiting for admin review, oldest first.
func (r *Repository) ListPendingApproval(ctx context.Context, limit, offset int) ([]*models.WorkRequest, error) {
	var requests []*models.WorkRequest
	err := r.db.WithContext(ctx).
		Preload("Requester").
		Where("status = ?", models.WorkRequestStatusPendingApproval).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// GetProposal retrieves a proposal by ID
func (r *Repository) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AcceptedProposals returns the proposals of a request that are accepted
// but not yet completed.
func (r *Repository) AcceptedProposals(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.WithContext(ctx).
		Where("work_request_id = ? AND status = ?", requestID, models.ProposalStatusAccepted).
		Order("accepted_at ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// StaleCompletionRequests returns accepted, undisputed proposals whose
// completion was requested at or before olderThan.
func (r *Repository) StaleCompletionRequests(ctx context.Context, olderThan time.Time, limit int) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.WithContext(ctx).
		Where("status = ? AND completion_requested_at IS NOT NULL AND completion_requested_at <= ? AND disputed_at IS NULL",
			models.ProposalStatusAccepted, olderThan).
		Order("completion_requested_at ASC").
		Limit(limit).
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// ListExpertProposals lists the proposals an expert has submitted.
func (r *Repository) ListExpertProposals(ctx context.Context, expertID uint, limit, offset int) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.WithContext(ctx).
		Where("expert_id = ?", expertID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}
