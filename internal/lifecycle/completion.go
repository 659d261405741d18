package lifecycle

import (
	"time"

	"outsourcing-market/internal/models"
	"outsourcing-market/internal/settlement"

	"github.com/google/uuid"
)

// RequestCompletion is the expert reporting that the work is done. It
// starts the auto-completion timer. A disputed request may be repeated.
func (m *Machine) RequestCompletion(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p.ExpertID != actor.UserID {
		return nil, t.failProposal(ErrAuthorization, p, p.Status, "only the proposing expert can request completion")
	}
	if p.Status != models.ProposalStatusAccepted {
		return nil, t.failProposal(ErrInvalidState, p, models.ProposalStatusCompleted, "proposal is "+string(p.Status))
	}
	if p.CompletionRequestedAt != nil && p.DisputedAt == nil {
		return nil, t.failProposal(ErrInvalidState, p, p.Status, "completion already requested")
	}

	now := t.now
	p.CompletionRequestedAt = &now
	p.DisputedAt = nil
	p.AutoCompleteWarnedAt = nil
	t.touch(p)

	t.emit(userEvent(t.req().RequesterID, actor.id(), EventCompletionRequested,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{
			"proposal_id":      p.ID.String(),
			"auto_complete_at": now.Add(m.policy.AutoCompleteAfter),
		})))
	return t.finish(), nil
}

// Dispute stops the auto-completion timer of an outstanding completion
// request until the expert requests completion again.
func (m *Machine) Dispute(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !t.isOwner() {
		return nil, t.failProposal(ErrAuthorization, p, p.Status, "only the requester can dispute a completion")
	}
	if p.Status != models.ProposalStatusAccepted || p.CompletionRequestedAt == nil || p.DisputedAt != nil {
		return nil, t.failProposal(ErrInvalidState, p, p.Status, "no completion request to dispute")
	}

	now := t.now
	p.DisputedAt = &now
	t.touch(p)

	t.emit(userEvent(p.ExpertID, actor.id(), EventCompletionDisputed,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{"proposal_id": p.ID.String()})))
	return t.finish(), nil
}

// ConfirmCompletion is the requester accepting the delivered work.
func (m *Machine) ConfirmCompletion(s Snapshot, actor Actor, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, actor)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	to := models.ProposalStatusCompleted
	if !t.isOwner() {
		return nil, t.failProposal(ErrAuthorization, p, to, "only the requester can confirm completion")
	}
	if p.Status != models.ProposalStatusAccepted {
		return nil, t.failProposal(ErrInvalidState, p, to, "proposal is "+string(p.Status))
	}

	if err := t.completeProposal(p, EventProposalCompleted); err != nil {
		return nil, err
	}
	t.cascade()
	return t.finish(), nil
}

// AutoCompleteDue reports whether p completes on its own at now.
func (m *Machine) AutoCompleteDue(p models.Proposal, now time.Time) bool {
	return p.Status == models.ProposalStatusAccepted &&
		p.CompletionRequestedAt != nil &&
		p.DisputedAt == nil &&
		now.Sub(*p.CompletionRequestedAt) >= m.policy.AutoCompleteAfter
}

// WarningDue reports whether the requester should be warned that p is about
// to complete on its own.
func (m *Machine) WarningDue(p models.Proposal, now time.Time) bool {
	if p.Status != models.ProposalStatusAccepted || p.CompletionRequestedAt == nil ||
		p.DisputedAt != nil || p.AutoCompleteWarnedAt != nil {
		return false
	}
	elapsed := now.Sub(*p.CompletionRequestedAt)
	return elapsed >= m.policy.AutoCompleteAfter-m.policy.WarnBefore && elapsed < m.policy.AutoCompleteAfter
}

// EvaluateAutoCompletion completes every accepted proposal whose completion
// request is older than the policy allows and was not disputed. It runs
// whenever a work request is read. The result is Empty when nothing is due.
func (m *Machine) EvaluateAutoCompletion(s Snapshot) (*Result, error) {
	t := m.begin(s, System)
	if t.req().Status.IsTerminal() {
		return t.finish(), nil
	}

	for i := range t.snap.Proposals {
		p := &t.snap.Proposals[i]
		if !m.AutoCompleteDue(*p, t.now) {
			continue
		}
		if err := t.completeProposal(p, EventProposalAutoCompleted); err != nil {
			return nil, err
		}
		t.emit(userEvent(t.req().RequesterID, nil, EventProposalAutoCompleted,
			models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{"proposal_id": p.ID.String()})))
	}
	if len(t.touched) > 0 {
		t.cascade()
	}
	return t.finish(), nil
}

// WarnAutoCompletion stamps the warning time on a proposal nearing
// auto-completion and emits the warning to the requester.
func (m *Machine) WarnAutoCompletion(s Snapshot, proposalID uuid.UUID) (*Result, error) {
	t := m.begin(s, System)
	p, err := t.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !m.WarningDue(*p, t.now) {
		return t.finish(), nil
	}

	now := t.now
	p.AutoCompleteWarnedAt = &now
	t.touch(p)

	t.emit(userEvent(t.req().RequesterID, nil, EventAutoCompleteWarning,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{
			"proposal_id":      p.ID.String(),
			"auto_complete_at": p.CompletionRequestedAt.Add(m.policy.AutoCompleteAfter),
		})))
	return t.finish(), nil
}

// completeProposal marks p completed and records its settlement and the
// expert's payout credit.
func (t *tx) completeProposal(p *models.Proposal, eventType string) error {
	gross := p.SettlementBase(t.req().RewardAmount)
	split, err := settlement.Calculate(gross, t.m.rates.WorkRequest)
	if err != nil {
		return t.failProposal(ErrValidation, p, models.ProposalStatusCompleted, err.Error())
	}

	now := t.now
	p.Status = models.ProposalStatusCompleted
	p.CompletedAt = &now
	t.touch(p)

	t.result.Settlements = append(t.result.Settlements, models.Settlement{
		ReferenceType:    models.ReferenceTypeProposal,
		ReferenceID:      p.ID.String(),
		PayeeID:          p.ExpertID,
		GrossAmount:      split.GrossAmount,
		CommissionRate:   split.CommissionRate,
		CommissionAmount: split.CommissionAmount,
		PayoutAmount:     split.PayoutAmount,
		Status:           models.SettlementStatusPending,
	})
	if split.PayoutAmount > 0 {
		t.result.Credits = append(t.result.Credits, models.CashTransaction{
			UserID:        p.ExpertID,
			Type:          models.CashTransactionExpertPayout,
			Amount:        split.PayoutAmount,
			ReferenceType: models.ReferenceTypeProposal,
			ReferenceID:   p.ID.String(),
			Description:   "Payout for " + t.req().Title,
		})
	}

	t.emit(userEvent(p.ExpertID, t.actor.id(), eventType,
		models.ReferenceTypeProposal, p.ID, t.payload(map[string]interface{}{
			"proposal_id":       p.ID.String(),
			"gross_amount":      split.GrossAmount,
			"commission_amount": split.CommissionAmount,
			"payout_amount":     split.PayoutAmount,
		})))
	return nil
}

// cascade completes the request once its last accepted proposal is done.
func (t *tx) cascade() {
	r := t.req()
	if r.Status != models.WorkRequestStatusInProgress && r.Status != models.WorkRequestStatusClosed {
		return
	}
	if t.snap.Outstanding() > 0 {
		return
	}
	t.completeRequest()
}
