package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusCompleted ProposalStatus = "completed"
)

// Proposal is an expert's bid against a work request. An expert holds at
// most one proposal per work request.
type Proposal struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkRequestID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_proposals_request_expert" json:"work_request_id"`
	ExpertID              uint           `gorm:"not null;uniqueIndex:idx_proposals_request_expert;index" json:"expert_id"`
	Expert                *User          `gorm:"foreignKey:ExpertID" json:"expert,omitempty"`
	Message               string         `gorm:"type:text;not null" json:"message"`
	ProposedAmount        int64          `gorm:"not null;default:0" json:"proposed_amount"`
	ContactInfo           string         `gorm:"size:255" json:"contact_info"`
	AttachmentURL         *string        `gorm:"size:500" json:"attachment_url,omitempty"`
	Status                ProposalStatus `gorm:"size:20;not null;index" json:"status"`
	AcceptedAt            *time.Time     `json:"accepted_at"`
	CompletionRequestedAt *time.Time     `gorm:"index" json:"completion_requested_at"`
	DisputedAt            *time.Time     `json:"disputed_at"`
	AutoCompleteWarnedAt  *time.Time     `json:"auto_complete_warned_at,omitempty"`
	CompletedAt           *time.Time     `json:"completed_at"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (Proposal) TableName() string {
	return "work_request_proposals"
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CountsTowardCapacity reports whether the proposal occupies one of the
// request's applicant slots.
func (p Proposal) CountsTowardCapacity() bool {
	return p.Status == ProposalStatusAccepted || p.Status == ProposalStatusCompleted
}

// SettlementBase returns the gross amount a completed proposal settles on:
// the proposed amount when one was quoted, otherwise the request's reward.
func (p Proposal) SettlementBase(rewardAmount int64) int64 {
	if p.ProposedAmount > 0 {
		return p.ProposedAmount
	}
	return rewardAmount
}

// SubmitProposalRequest is the body of POST /api/work-requests/:id/proposals
type SubmitProposalRequest struct {
	Message        string  `json:"message" binding:"required"`
	ProposedAmount int64   `json:"proposed_amount"`
	ContactInfo    string  `json:"contact_info"`
	AttachmentURL  *string `json:"attachment_url"`
}

// UpdateProposalRequest is the body of PUT /api/work-requests/:id/proposals/:proposal_id
type UpdateProposalRequest struct {
	Message        *string `json:"message"`
	ProposedAmount *int64  `json:"proposed_amount"`
	ContactInfo    *string `json:"contact_info"`
	AttachmentURL  *string `json:"attachment_url"`
}
