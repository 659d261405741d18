package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a request to pay out part of a user's cash balance to a
// bank account. The ledger is only debited once an admin approves it.
type Withdrawal struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"not null;index" json:"user_id"`
	Amount        int64            `gorm:"not null" json:"amount"`
	Bank          string           `gorm:"size:50;not null" json:"bank"`
	AccountNumber string           `gorm:"size:50;not null" json:"account_number"`
	AccountHolder string           `gorm:"size:100;not null" json:"account_holder"`
	Status        WithdrawalStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	RejectReason  *string          `gorm:"type:text" json:"reject_reason,omitempty"`
	ProcessedBy   *uint            `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "cash_withdrawals"
}

// WithdrawalRequest is the body of POST /api/cash/withdrawals
type WithdrawalRequest struct {
	Amount        int64  `json:"amount" binding:"required"`
	Bank          string `json:"bank" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountHolder string `json:"account_holder" binding:"required"`
}
