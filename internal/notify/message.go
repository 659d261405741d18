// Package notify formats lifecycle events into messages and delivers them
// over outbound channels.
package notify

import (
	"fmt"
	"strings"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
)

// Message is a formatted event ready for delivery.
type Message struct {
	EventType   string                 `json:"event_type"`
	Audience    lifecycle.Audience     `json:"audience"`
	RecipientID uint                   `json:"recipient_id,omitempty"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Link        string                 `json:"link"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

var titles = map[string]string{
	lifecycle.EventWorkRequestSubmitted:  "New work request awaiting review",
	lifecycle.EventWorkRequestApproved:   "Your work request was approved",
	lifecycle.EventWorkRequestRejected:   "Your work request was rejected",
	lifecycle.EventWorkRequestCompleted:  "Work request completed",
	lifecycle.EventProposalReceived:      "New proposal received",
	lifecycle.EventProposalUpdated:       "A proposal was updated",
	lifecycle.EventProposalAccepted:      "Your proposal was accepted",
	lifecycle.EventProposalRejected:      "Your proposal was not selected",
	lifecycle.EventCompletionRequested:   "Completion requested",
	lifecycle.EventCompletionDisputed:    "Completion disputed",
	lifecycle.EventProposalCompleted:     "Work confirmed complete",
	lifecycle.EventProposalAutoCompleted: "Work completed automatically",
	lifecycle.EventAutoCompleteWarning:   "Work will be completed automatically soon",
	lifecycle.EventPaymentSubmitted:      "New payment awaiting confirmation",
	lifecycle.EventPaymentConfirmed:      "Payment confirmed",
	lifecycle.EventPaymentRejected:       "Payment rejected",
	lifecycle.EventWithdrawalRequested:   "New withdrawal awaiting review",
	lifecycle.EventWithdrawalApproved:    "Withdrawal sent",
	lifecycle.EventWithdrawalRejected:    "Withdrawal rejected",
	lifecycle.EventServiceOrderPlaced:    "New service order",
	lifecycle.EventServiceOrderApproved:  "Service order approved",
	lifecycle.EventServiceOrderCompleted: "Service order completed",
	lifecycle.EventServiceOrderCancelled: "Service order cancelled",
}

// Title returns the plain English title of an event type.
func Title(eventType string) string {
	if t, ok := titles[eventType]; ok {
		return t
	}
	return strings.ReplaceAll(eventType, "_", " ")
}

// Link returns the in-app path for an event's resource.
func Link(e lifecycle.Event) string {
	switch e.ResourceType {
	case models.ReferenceTypeWorkRequest:
		return "/work-requests/" + e.ResourceID
	case models.ReferenceTypeProposal:
		if id, ok := e.Payload["work_request_id"].(string); ok {
			return "/work-requests/" + id + "#proposal-" + e.ResourceID
		}
		return "/proposals/" + e.ResourceID
	case models.ReferenceTypeServiceOrder:
		return "/service-orders/" + e.ResourceID
	case models.ReferenceTypePayment:
		return "/payments/" + e.ResourceID
	case models.ReferenceTypeWithdrawal:
		return "/cash/withdrawals/" + e.ResourceID
	}
	return ""
}

// Format turns an event into a message.
func Format(e lifecycle.Event) Message {
	var body []string
	if title, ok := e.Payload["title"].(string); ok && title != "" {
		body = append(body, title)
	}
	for _, key := range []string{"gross_amount", "payout_amount", "amount", "paid_amount"} {
		if v, ok := e.Payload[key]; ok {
			body = append(body, fmt.Sprintf("%s: %v", strings.ReplaceAll(key, "_", " "), v))
		}
	}
	if reason, ok := e.Payload["reason"].(string); ok && reason != "" {
		body = append(body, "reason: "+reason)
	}

	return Message{
		EventType:   e.Type,
		Audience:    e.Audience,
		RecipientID: e.RecipientID,
		Title:       Title(e.Type),
		Body:        strings.Join(body, "\n"),
		Link:        Link(e),
		Payload:     e.Payload,
	}
}
