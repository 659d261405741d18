// Package lifecycle holds the rules for moving work requests and their
// proposals between states. It never performs I/O: each operation takes a
// snapshot and an actor and returns the write set and events of the
// transition, or an *Error.
package lifecycle

import (
	"time"

	"outsourcing-market/internal/models"
	"outsourcing-market/internal/settlement"

	"github.com/google/uuid"
)

// Actor is the user performing an operation.
type Actor struct {
	UserID  uint
	IsAdmin bool
}

// System is the actor used for evaluate-on-access transitions.
var System = Actor{}

func (a Actor) id() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// Policy controls timer-driven behavior.
type Policy struct {
	// AutoCompleteAfter is how long after a completion request an undisputed
	// accepted proposal completes on its own.
	AutoCompleteAfter time.Duration
	// WarnBefore is how long before auto-completion the requester is warned.
	WarnBefore time.Duration
}

// DefaultPolicy auto-completes after 7 days and warns a day before.
func DefaultPolicy() Policy {
	return Policy{
		AutoCompleteAfter: 7 * 24 * time.Hour,
		WarnBefore:        24 * time.Hour,
	}
}

// Snapshot is a work request together with all of its proposals.
type Snapshot struct {
	Request   *models.WorkRequest
	Proposals []models.Proposal
}

// Proposal returns the proposal with the given id.
func (s Snapshot) Proposal(id uuid.UUID) (*models.Proposal, bool) {
	for i := range s.Proposals {
		if s.Proposals[i].ID == id {
			return &s.Proposals[i], true
		}
	}
	return nil, false
}

// AcceptedCount is the number of proposals occupying an applicant slot.
func (s Snapshot) AcceptedCount() int {
	n := 0
	for _, p := range s.Proposals {
		if p.CountsTowardCapacity() {
			n++
		}
	}
	return n
}

// Outstanding is the number of accepted proposals not yet completed.
func (s Snapshot) Outstanding() int {
	n := 0
	for _, p := range s.Proposals {
		if p.Status == models.ProposalStatusAccepted {
			n++
		}
	}
	return n
}

// Result is the write set of one transition.
type Result struct {
	// Request is the next state of the work request.
	Request *models.WorkRequest
	// Created is set when Request is new and must be inserted.
	Created bool
	// RequestChanged is set when the work request row must be written.
	RequestChanged bool

	Proposals        []models.Proposal
	NewProposal      *models.Proposal
	DeletedProposals []uuid.UUID

	Settlements []models.Settlement
	Credits     []models.CashTransaction
	Events      []Event
}

// Empty reports whether the result writes nothing.
func (r *Result) Empty() bool {
	return !r.Created && !r.RequestChanged && len(r.Proposals) == 0 &&
		r.NewProposal == nil && len(r.DeletedProposals) == 0
}

// Machine applies the transition rules.
type Machine struct {
	policy Policy
	rates  settlement.Rates
	now    func() time.Time
}

// New creates a Machine. now defaults to time.Now.
func New(policy Policy, rates settlement.Rates, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{policy: policy, rates: rates, now: now}
}

func (m *Machine) Policy() Policy { return m.policy }

func (m *Machine) Rates() settlement.Rates { return m.rates }

// Now returns the machine's current time.
func (m *Machine) Now() time.Time { return m.now() }

// tx accumulates the next snapshot for one operation. The caller's
// snapshot is never modified.
type tx struct {
	m       *Machine
	now     time.Time
	actor   Actor
	snap    Snapshot
	result  *Result
	touched map[uuid.UUID]bool
}

func (m *Machine) begin(s Snapshot, actor Actor) *tx {
	req := *s.Request
	proposals := make([]models.Proposal, len(s.Proposals))
	copy(proposals, s.Proposals)

	return &tx{
		m:       m,
		now:     m.now().UTC(),
		actor:   actor,
		snap:    Snapshot{Request: &req, Proposals: proposals},
		result:  &Result{Request: &req},
		touched: make(map[uuid.UUID]bool),
	}
}

func (t *tx) req() *models.WorkRequest { return t.snap.Request }

func (t *tx) setStatus(s models.WorkRequestStatus) {
	t.req().Status = s
	t.result.RequestChanged = true
}

func (t *tx) touch(p *models.Proposal) {
	t.touched[p.ID] = true
}

func (t *tx) emit(e Event) {
	t.result.Events = append(t.result.Events, e)
}

// finish copies touched proposals into the result in snapshot order.
func (t *tx) finish() *Result {
	for _, p := range t.snap.Proposals {
		if t.touched[p.ID] {
			t.result.Proposals = append(t.result.Proposals, p)
		}
	}
	return t.result
}

func (t *tx) fail(kind error, to models.WorkRequestStatus, reason string) *Error {
	return &Error{
		Kind:      kind,
		Reason:    reason,
		RequestID: t.req().ID,
		From:      string(t.req().Status),
		To:        string(to),
	}
}

func (t *tx) failProposal(kind error, p *models.Proposal, to models.ProposalStatus, reason string) *Error {
	id := p.ID
	return &Error{
		Kind:       kind,
		Reason:     reason,
		RequestID:  t.req().ID,
		ProposalID: &id,
		From:       string(p.Status),
		To:         string(to),
	}
}

func (t *tx) isOwner() bool {
	return t.actor.UserID != 0 && t.actor.UserID == t.req().RequesterID
}

func (t *tx) requireOwner(to models.WorkRequestStatus) error {
	if !t.isOwner() {
		return t.fail(ErrAuthorization, to, "only the requester can do this")
	}
	return nil
}

func (t *tx) requireAdmin(to models.WorkRequestStatus) error {
	if !t.actor.IsAdmin {
		return t.fail(ErrAuthorization, to, "admin only")
	}
	return nil
}

func (t *tx) requireStatus(to models.WorkRequestStatus, allowed ...models.WorkRequestStatus) error {
	for _, s := range allowed {
		if t.req().Status == s {
			return nil
		}
	}
	return t.fail(ErrInvalidState, to, "request is "+string(t.req().Status))
}

func (t *tx) proposal(id uuid.UUID) (*models.Proposal, error) {
	p, ok := t.snap.Proposal(id)
	if !ok {
		pid := id
		return nil, &Error{Kind: ErrNotFound, Reason: "proposal not found", RequestID: t.req().ID, ProposalID: &pid}
	}
	return p, nil
}

func (t *tx) payload(extra map[string]interface{}) map[string]interface{} {
	p := map[string]interface{}{
		"work_request_id": t.req().ID.String(),
		"title":           t.req().Title,
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}
