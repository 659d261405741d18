package lifecycle

import (
	"strings"

	"outsourcing-market/internal/models"

	"github.com/google/uuid"
)

// SubmitProposal records an expert's bid on an open request.
func (m *Machine) SubmitProposal(s Snapshot, actor Actor, in models.SubmitProposalRequest) (*Result, error) {
	t := m.begin(s, actor)
	cur := t.req().Status
	if actor.UserID == 0 {
		return nil, t.fail(ErrAuthorization, cur, "login required")
	}
	if cur != models.WorkRequestStatusOpen {
		return nil, t.fail(ErrInvalidState, cur, "request is not accepting proposals")
	}
	if t.isOwner() {
		return nil, t.fail(ErrAuthorization, cur, "cannot propose to own request")
	}
	for _, p := range t.snap.Proposals {
		if p.ExpertID == actor.UserID {
			return nil, t.fail(ErrConflict, cur, "duplicate proposal")
		}
	}

	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, t.fail(ErrValidation, cur, "message is required")
	}
	if in.ProposedAmount < 0 {
		return nil, t.fail(ErrValidation, cur, "proposed amount must not be negative")
	}

	p := &models.Proposal{
		ID:             uuid.New(),
		WorkRequestID:  t.req().ID,
		ExpertID:       actor.UserID,
		Message:        msg,
		ProposedAmount: in.ProposedAmount,
		ContactInfo:    in.ContactInfo,
		AttachmentURL:  in.AttachmentURL,
		Status:         models.ProposalStatusPending,
	}
	t.result.NewProposal = p

	t.emit(userEvent(t.req().RequesterID, actor.id(), EventProposalReceived,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{
			"proposal_id":     p.ID.String(),
			"proposed_amount": p.ProposedAmount,
		})))
	return t.finish(), nil
}

// EditProposal lets the expert change a proposal still pending review.
func (m *Machine) EditProposal(s Snapshot, actor Actor, proposalID uuid.UUID, in models.UpdateProposalRequest) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p.ExpertID != actor.UserID {
		return nil, t.failProposal(ErrAuthorization, p, p.Status, "only the proposing expert can edit this proposal")
	}
	if p.Status != models.ProposalStatusPending {
		return nil, t.failProposal(ErrInvalidState, p, p.Status, "only pending proposals can be edited")
	}

	if in.Message != nil {
		msg := strings.TrimSpace(*in.Message)
		if msg == "" {
			return nil, t.failProposal(ErrValidation, p, p.Status, "message is required")
		}
		p.Message = msg
	}
	if in.ProposedAmount != nil {
		if *in.ProposedAmount < 0 {
			return nil, t.failProposal(ErrValidation, p, p.Status, "proposed amount must not be negative")
		}
		p.ProposedAmount = *in.ProposedAmount
	}
	if in.ContactInfo != nil {
		p.ContactInfo = *in.ContactInfo
	}
	if in.AttachmentURL != nil {
		p.AttachmentURL = in.AttachmentURL
	}
	t.touch(p)

	t.emit(userEvent(t.req().RequesterID, actor.id(), EventProposalUpdated,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{"proposal_id": p.ID.String()})))
	return t.finish(), nil
}

// WithdrawProposal deletes a pending proposal at the expert's request.
func (m *Machine) WithdrawProposal(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p.ExpertID != actor.UserID {
		return nil, t.failProposal(ErrAuthorization, p, p.Status, "only the proposing expert can withdraw this proposal")
	}
	if p.Status != models.ProposalStatusPending {
		return nil, t.failProposal(ErrInvalidState, p, p.Status, "only pending proposals can be withdrawn")
	}

	t.result.DeletedProposals = append(t.result.DeletedProposals, p.ID)
	return t.finish(), nil
}

// AcceptProposal accepts a pending proposal. The first acceptance starts the
// request; reaching max_applicants closes it.
func (m *Machine) AcceptProposal(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	to := models.ProposalStatusAccepted
	if !t.isOwner() {
		return nil, t.failProposal(ErrAuthorization, p, to, "only the requester can accept proposals")
	}
	r := t.req()
	if r.Status != models.WorkRequestStatusOpen && r.Status != models.WorkRequestStatusInProgress {
		return nil, t.failProposal(ErrInvalidState, p, to, "request is "+string(r.Status))
	}
	if p.Status != models.ProposalStatusPending {
		return nil, t.failProposal(ErrInvalidState, p, to, "proposal is "+string(p.Status))
	}
	accepted := t.snap.AcceptedCount()
	if r.MaxApplicants != nil && accepted >= *r.MaxApplicants {
		return nil, t.failProposal(ErrConflict, p, to, "max applicants reached")
	}

	now := t.now
	p.Status = to
	p.AcceptedAt = &now
	t.touch(p)
	accepted++

	if r.AcceptedProposalID == nil {
		id := p.ID
		r.AcceptedProposalID = &id
		t.result.RequestChanged = true
	}
	if r.Status == models.WorkRequestStatusOpen {
		t.setStatus(models.WorkRequestStatusInProgress)
	}
	if r.MaxApplicants != nil && accepted >= *r.MaxApplicants {
		t.setStatus(models.WorkRequestStatusClosed)
	}

	t.emit(userEvent(p.ExpertID, actor.id(), EventProposalAccepted,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{"proposal_id": p.ID.String()})))
	return t.finish(), nil
}

// RejectProposal turns down a pending proposal.
func (m *Machine) RejectProposal(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	to := models.ProposalStatusRejected
	if !t.isOwner() {
		return nil, t.failProposal(ErrAuthorization, p, to, "only the requester can reject proposals")
	}
	if t.req().Status.IsTerminal() {
		return nil, t.failProposal(ErrInvalidState, p, to, "request is "+string(t.req().Status))
	}
	if p.Status != models.ProposalStatusPending {
		return nil, t.failProposal(ErrInvalidState, p, to, "proposal is "+string(p.Status))
	}

	p.Status = to
	t.touch(p)

	t.emit(userEvent(p.ExpertID, actor.id(), EventProposalRejected,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{"proposal_id": p.ID.String()})))
	return t.finish(), nil
}
