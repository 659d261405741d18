package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkRequestReview is a requester's rating of a completed proposal.
type WorkRequestReview struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProposalID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"proposal_id"`
	WorkRequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"work_request_id"`
	ReviewerID    uint      `gorm:"not null;index" json:"reviewer_id"`
	ExpertID      uint      `gorm:"not null;index" json:"expert_id"`
	Rating        int       `gorm:"not null" json:"rating"`
	Content       string    `gorm:"type:text" json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

func (WorkRequestReview) TableName() string {
	return "work_request_reviews"
}

// ReviewRequest is the body of POST .../proposals/:proposal_id/review
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Content string `json:"content"`
}

// ExpertRating aggregates an expert's reviews.
type ExpertRating struct {
	ExpertID    uint    `json:"expert_id"`
	Average     float64 `json:"average"`
	ReviewCount int64   `json:"review_count"`
}
