package lifecycle

import (
	"strings"
	"time"

	"outsourcing-market/internal/models"

	"github.com/google/uuid"
)

// NewRequest validates a new listing and returns it in its initial state:
// pending_approval, or draft when the listing fee must be paid first.
func (m *Machine) NewRequest(actor Actor, in models.CreateWorkRequestRequest) (*Result, error) {
	if actor.UserID == 0 {
		return nil, Fail(ErrAuthorization, "login required")
	}

	req := &models.WorkRequest{
		ID:               uuid.New(),
		RequesterID:      actor.UserID,
		Title:            strings.TrimSpace(in.Title),
		Category:         strings.TrimSpace(in.Category),
		Description:      in.Description,
		RewardAmount:     in.RewardAmount,
		PriceUnit:        in.PriceUnit,
		JobType:          in.JobType,
		MaxApplicants:    in.MaxApplicants,
		PostingStartDate: in.PostingStartDate,
		PostingEndDate:   in.PostingEndDate,
		WorkStartDate:    in.WorkStartDate,
		WorkEndDate:      in.WorkEndDate,
		Status:           models.WorkRequestStatusPendingApproval,
	}
	if req.PriceUnit == "" {
		req.PriceUnit = models.PriceUnitPerProject
	}
	if req.JobType == "" {
		req.JobType = models.JobTypeSidejob
	}
	if in.PaymentFirst {
		req.Status = models.WorkRequestStatusDraft
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result := &Result{Request: req, Created: true}
	if req.Status == models.WorkRequestStatusPendingApproval {
		result.Events = append(result.Events, adminEvent(actor.id(), EventWorkRequestSubmitted,
			models.ReferenceTypeWorkRequest, req.ID, map[string]interface{}{
				"work_request_id": req.ID.String(),
				"title":           req.Title,
			}))
	}
	return result, nil
}

func validateRequest(r *models.WorkRequest) error {
	if r.Title == "" {
		return Fail(ErrValidation, "title is required")
	}
	if r.Category == "" {
		return Fail(ErrValidation, "category is required")
	}
	if r.RewardAmount < 0 {
		return Fail(ErrValidation, "reward amount must not be negative")
	}
	if !r.PriceUnit.Valid() {
		return Fail(ErrValidation, "unknown price unit %q", r.PriceUnit)
	}
	if r.JobType != models.JobTypeSidejob && r.JobType != models.JobTypeFulltime {
		return Fail(ErrValidation, "unknown job type %q", r.JobType)
	}
	if r.MaxApplicants != nil && *r.MaxApplicants < 1 {
		return Fail(ErrValidation, "max applicants must be at least 1")
	}
	if endsBefore(r.PostingStartDate, r.PostingEndDate) {
		return Fail(ErrValidation, "posting end date is before start date")
	}
	if endsBefore(r.WorkStartDate, r.WorkEndDate) {
		return Fail(ErrValidation, "work end date is before start date")
	}
	return nil
}

func endsBefore(start, end *time.Time) bool {
	return start != nil && end != nil && end.Before(*start)
}

// Approve opens a listing waiting for review.
func (m *Machine) Approve(s Snapshot, actor Actor) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusOpen
	if err := t.requireAdmin(to); err != nil {
		return nil, err
	}
	if err := t.requireStatus(to, models.WorkRequestStatusPendingApproval); err != nil {
		return nil, err
	}

	t.setStatus(to)
	now := t.now
	t.req().ApprovedAt = &now
	t.req().RejectReason = nil

	t.emit(userEvent(t.req().RequesterID, actor.id(), EventWorkRequestApproved,
		models.ReferenceTypeWorkRequest, t.req().ID, t.payload(nil)))
	return t.finish(), nil
}

// Reject turns down a listing waiting for review. reason may be empty.
func (m *Machine) Reject(s Snapshot, actor Actor, reason string) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusRejected
	if err := t.requireAdmin(to); err != nil {
		return nil, err
	}
	if err := t.requireStatus(to, models.WorkRequestStatusPendingApproval); err != nil {
		return nil, err
	}

	t.setStatus(to)
	if reason = strings.TrimSpace(reason); reason != "" {
		t.req().RejectReason = &reason
	}

	t.emit(userEvent(t.req().RequesterID, actor.id(), EventWorkRequestRejected,
		models.ReferenceTypeWorkRequest, t.req().ID, t.payload(map[string]interface{}{"reason": reason})))
	return t.finish(), nil
}

// SubmitForApproval moves a payment-first draft into the review queue. The
// owner or an admin (confirming the listing payment) may do this.
func (m *Machine) SubmitForApproval(s Snapshot, actor Actor) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusPendingApproval
	if !t.isOwner() && !actor.IsAdmin {
		return nil, t.fail(ErrAuthorization, to, "only the requester can submit this request")
	}
	if err := t.requireStatus(to, models.WorkRequestStatusDraft); err != nil {
		return nil, err
	}

	t.setStatus(to)
	t.emit(adminEvent(actor.id(), EventWorkRequestSubmitted,
		models.ReferenceTypeWorkRequest, t.req().ID, t.payload(nil)))
	return t.finish(), nil
}

// EditRequest updates listing fields while the request is draft or open.
func (m *Machine) EditRequest(s Snapshot, actor Actor, in models.UpdateWorkRequestRequest) (*Result, error) {
	t := m.begin(s, actor)
	cur := t.req().Status
	if err := t.requireOwner(cur); err != nil {
		return nil, err
	}
	if err := t.requireStatus(cur, models.WorkRequestStatusDraft, models.WorkRequestStatusOpen); err != nil {
		return nil, err
	}

	r := t.req()
	if in.Title != nil {
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Category != nil {
		r.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		r.Description = *in.Description
	}
	if in.RewardAmount != nil {
		r.RewardAmount = *in.RewardAmount
	}
	if in.PriceUnit != nil {
		r.PriceUnit = *in.PriceUnit
	}
	if in.MaxApplicants != nil {
		n := *in.MaxApplicants
		r.MaxApplicants = &n
	}
	if in.PostingStartDate != nil {
		r.PostingStartDate = in.PostingStartDate
	}
	if in.PostingEndDate != nil {
		r.PostingEndDate = in.PostingEndDate
	}
	if in.WorkStartDate != nil {
		r.WorkStartDate = in.WorkStartDate
	}
	if in.WorkEndDate != nil {
		r.WorkEndDate = in.WorkEndDate
	}

	if err := validateRequest(r); err != nil {
		return nil, err
	}
	if r.MaxApplicants != nil && t.snap.AcceptedCount() > *r.MaxApplicants {
		return nil, t.fail(ErrConflict, cur, "max applicants is below the number already accepted")
	}

	t.result.RequestChanged = true
	return t.finish(), nil
}

// CloseToApplicants stops an open request from taking new proposals.
func (m *Machine) CloseToApplicants(s Snapshot, actor Actor) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusInProgress
	if err := t.requireOwner(to); err != nil {
		return nil, err
	}
	if err := t.requireStatus(to, models.WorkRequestStatusOpen); err != nil {
		return nil, err
	}

	t.setStatus(to)
	return t.finish(), nil
}

// Cancel soft-deletes a request that has not started.
func (m *Machine) Cancel(s Snapshot, actor Actor) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusCancelled
	if err := t.requireOwner(to); err != nil {
		return nil, err
	}
	if err := t.requireStatus(to, models.WorkRequestStatusOpen, models.WorkRequestStatusDraft); err != nil {
		return nil, err
	}

	t.setStatus(to)
	t.req().DeletedAt.Time = t.now
	t.req().DeletedAt.Valid = true
	return t.finish(), nil
}

// CompleteRequest lets the owner finish a started request once none of its
// accepted proposals is outstanding.
func (m *Machine) CompleteRequest(s Snapshot, actor Actor) (*Result, error) {
	t := m.begin(s, actor)
	to := models.WorkRequestStatusCompleted
	if err := t.requireOwner(to); err != nil {
		return nil, err
	}
	if err := t.requireStatus(to, models.WorkRequestStatusInProgress, models.WorkRequestStatusClosed); err != nil {
		return nil, err
	}
	if n := t.snap.Outstanding(); n > 0 {
		return nil, t.fail(ErrInvalidState, to, "accepted proposals are still in progress")
	}

	t.completeRequest()
	return t.finish(), nil
}

func (t *tx) completeRequest() {
	t.setStatus(models.WorkRequestStatusCompleted)
	now := t.now
	t.req().CompletedAt = &now
	t.emit(userEvent(t.req().RequesterID, t.actor.id(), EventWorkRequestCompleted,
		models.ReferenceTypeWorkRequest, t.req().ID, t.payload(nil)))
}
