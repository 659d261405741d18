package lifecycle

import (
	"github.com/google/uuid"
)

// Event types emitted by transitions.
const (
	EventWorkRequestSubmitted = "work_request_submitted"
	EventWorkRequestApproved  = "work_request_approved"
	EventWorkRequestRejected  = "work_request_rejected"
	EventWorkRequestCompleted = "work_request_completed"

	EventProposalReceived      = "proposal_received"
	EventProposalUpdated       = "proposal_updated"
	EventProposalAccepted      = "proposal_accepted"
	EventProposalRejected      = "proposal_rejected"
	EventCompletionRequested   = "completion_requested"
	EventCompletionDisputed    = "completion_disputed"
	EventProposalCompleted     = "proposal_completed"
	EventProposalAutoCompleted = "proposal_auto_completed"
	EventAutoCompleteWarning   = "auto_complete_warning"

	EventPaymentSubmitted = "payment_submitted"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentRejected  = "payment_rejected"

	EventWithdrawalRequested = "withdrawal_requested"
	EventWithdrawalApproved  = "withdrawal_approved"
	EventWithdrawalRejected  = "withdrawal_rejected"

	EventServiceOrderPlaced    = "service_order_placed"
	EventServiceOrderApproved  = "service_order_approved"
	EventServiceOrderCompleted = "service_order_completed"
	EventServiceOrderCancelled = "service_order_cancelled"
)

// Audience selects who an event is for.
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

// Event is a notification request. Admin-audience events have no
// RecipientID; the notifier fans them out.
type Event struct {
	Audience     Audience               `json:"audience"`
	RecipientID  uint                   `json:"recipient_id"`
	ActorID      *uint                  `json:"actor_id,omitempty"`
	Type         string                 `json:"type"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Payload      map[string]interface{} `json:"payload"`
}

func userEvent(recipient uint, actor *uint, typ, resourceType string, resourceID uuid.UUID, payload map[string]interface{}) Event {
	return Event{
		Audience:     AudienceUser,
		RecipientID:  recipient,
		ActorID:      actor,
		Type:         typ,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
		Payload:      payload,
	}
}

func adminEvent(actor *uint, typ, resourceType string, resourceID uuid.UUID, payload map[string]interface{}) Event {
	return Event{
		Audience:     AudienceAdmin,
		ActorID:      actor,
		Type:         typ,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
		Payload:      payload,
	}
}
