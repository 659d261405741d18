package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkRequestStatus string

const (
	WorkRequestStatusDraft           WorkRequestStatus = "draft"
	WorkRequestStatusPendingApproval WorkRequestStatus = "pending_approval"
	WorkRequestStatusOpen            WorkRequestStatus = "open"
	WorkRequestStatusInProgress      WorkRequestStatus = "in_progress"
	WorkRequestStatusClosed          WorkRequestStatus = "closed"
	WorkRequestStatusCompleted       WorkRequestStatus = "completed"
	WorkRequestStatusCancelled       WorkRequestStatus = "cancelled"
	WorkRequestStatusRejected        WorkRequestStatus = "rejected"
)

// IsTerminal reports whether no further transition can leave the status.
func (s WorkRequestStatus) IsTerminal() bool {
	switch s {
	case WorkRequestStatusCompleted, WorkRequestStatusCancelled, WorkRequestStatusRejected:
		return true
	}
	return false
}

type PriceUnit string

const (
	PriceUnitPerProject PriceUnit = "per_project"
	PriceUnitPerHour    PriceUnit = "per_hour"
	PriceUnitPerPage    PriceUnit = "per_page"
	PriceUnitPerDay     PriceUnit = "per_day"
	PriceUnitPerMonth   PriceUnit = "per_month"
	PriceUnitPerYear    PriceUnit = "per_year"
	PriceUnitQuote      PriceUnit = "quote"
)

// Valid reports whether the unit is one of the known price units.
func (u PriceUnit) Valid() bool {
	switch u {
	case PriceUnitPerProject, PriceUnitPerHour, PriceUnitPerPage, PriceUnitPerDay,
		PriceUnitPerMonth, PriceUnitPerYear, PriceUnitQuote:
		return true
	}
	return false
}

type JobType string

const (
	JobTypeSidejob  JobType = "sidejob"
	JobTypeFulltime JobType = "fulltime"
)

// WorkRequest is a posted outsourcing listing.
type WorkRequest struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID        uint              `gorm:"not null;index" json:"requester_id"`
	Requester          *User             `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Title              string            `gorm:"size:200;not null" json:"title"`
	Category           string            `gorm:"size:50;index" json:"category"`
	Description        string            `gorm:"type:text" json:"description"`
	RewardAmount       int64             `gorm:"not null;default:0" json:"reward_amount"`
	PriceUnit          PriceUnit         `gorm:"size:20;not null;default:per_project" json:"price_unit"`
	JobType            JobType           `gorm:"size:20;not null;default:sidejob" json:"job_type"`
	MaxApplicants      *int              `json:"max_applicants"`
	PostingStartDate   *time.Time        `json:"posting_start_date"`
	PostingEndDate     *time.Time        `json:"posting_end_date"`
	WorkStartDate      *time.Time        `json:"work_start_date"`
	WorkEndDate        *time.Time        `json:"work_end_date"`
	Status             WorkRequestStatus `gorm:"size:30;not null;index" json:"status"`
	AcceptedProposalID *uuid.UUID        `gorm:"type:uuid" json:"accepted_proposal_id"`
	RejectReason       *string           `gorm:"type:text" json:"reject_reason,omitempty"`
	ApprovedAt         *time.Time        `json:"approved_at"`
	CompletedAt        *time.Time        `json:"completed_at"`
	Version            int64             `gorm:"not null;default:0" json:"version"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	DeletedAt          gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (WorkRequest) TableName() string {
	return "work_requests"
}

func (w *WorkRequest) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// CreateWorkRequestRequest is the body of POST /api/work-requests
type CreateWorkRequestRequest struct {
	Title            string     `json:"title" binding:"required"`
	Category         string     `json:"category" binding:"required"`
	Description      string     `json:"description"`
	RewardAmount     int64      `json:"reward_amount"`
	PriceUnit        PriceUnit  `json:"price_unit"`
	JobType          JobType    `json:"job_type"`
	MaxApplicants    *int       `json:"max_applicants"`
	PostingStartDate *time.Time `json:"posting_start_date"`
	PostingEndDate   *time.Time `json:"posting_end_date"`
	WorkStartDate    *time.Time `json:"work_start_date"`
	WorkEndDate      *time.Time `json:"work_end_date"`
	PaymentFirst     bool       `json:"payment_first"`
}

// UpdateWorkRequestRequest is the body of PUT /api/work-requests/:id.
// Nil fields are left untouched.
type UpdateWorkRequestRequest struct {
	Title            *string    `json:"title"`
	Category         *string    `json:"category"`
	Description      *string    `json:"description"`
	RewardAmount     *int64     `json:"reward_amount"`
	PriceUnit        *PriceUnit `json:"price_unit"`
	MaxApplicants    *int       `json:"max_applicants"`
	PostingStartDate *time.Time `json:"posting_start_date"`
	PostingEndDate   *time.Time `json:"posting_end_date"`
	WorkStartDate    *time.Time `json:"work_start_date"`
	WorkEndDate      *time.Time `json:"work_end_date"`
}

// WorkRequestDetail is a work request together with its proposals.
type WorkRequestDetail struct {
	WorkRequest *WorkRequest `json:"work_request"`
	Proposals   []Proposal   `json:"proposals"`
}

// RedactFor hides contact details the viewer may not see. The requester
// sees every proposal in full, an expert sees only their own, and anonymous
// viewers (zero) see none. Proposals are copied before they are changed.
func (d *WorkRequestDetail) RedactFor(viewerID uint) {
	owner := viewerID != 0 && d.WorkRequest != nil && d.WorkRequest.RequesterID == viewerID
	if d.WorkRequest != nil && !owner {
		req := *d.WorkRequest
		req.Requester = req.Requester.PublicProfile()
		d.WorkRequest = &req
	}
	if owner {
		return
	}

	proposals := make([]Proposal, len(d.Proposals))
	for i, p := range d.Proposals {
		if viewerID == 0 || p.ExpertID != viewerID {
			p.ContactInfo = ""
			p.AttachmentURL = nil
			p.Expert = p.Expert.PublicProfile()
		}
		proposals[i] = p
	}
	d.Proposals = proposals
}
