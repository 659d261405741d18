package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CashTransactionExpertPayout  = "expert_payout"
	CashTransactionServicePayout = "service_payout"
	CashTransactionWithdrawal    = "withdrawal"
)

const (
	ReferenceTypeProposal     = "work_request_proposals"
	ReferenceTypeWorkRequest  = "work_request"
	ReferenceTypeServiceOrder = "service_order"
	ReferenceTypePayment      = "payment"
	ReferenceTypeWithdrawal   = "withdrawal"
)

// CashTransaction is one entry in a user's cash ledger. Positive amounts are
// credits, withdrawals are negative.
type CashTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Type          string    `gorm:"size:50;not null;index" json:"type"`
	Amount        int64     `gorm:"not null" json:"amount"`
	ReferenceType string    `gorm:"size:50" json:"reference_type"`
	ReferenceID   string    `gorm:"size:64" json:"reference_id"`
	Description   string    `gorm:"type:text" json:"description"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for CashTransaction model
func (CashTransaction) TableName() string {
	return "cash_transactions"
}

type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending"
	SettlementStatusPaid    SettlementStatus = "paid"
)

// Settlement records the split of a gross amount into platform commission
// and payee payout. One row per settled reference. A settlement is paid once
// the payee's approved withdrawals cover it.
type Settlement struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ReferenceType    string           `gorm:"size:50;not null;uniqueIndex:idx_settlements_reference" json:"reference_type"`
	ReferenceID      string           `gorm:"size:64;not null;uniqueIndex:idx_settlements_reference" json:"reference_id"`
	PayeeID          uint             `gorm:"not null;index" json:"payee_id"`
	GrossAmount      int64            `gorm:"not null" json:"gross_amount"`
	CommissionRate   decimal.Decimal  `gorm:"type:decimal(5,4);not null" json:"commission_rate"`
	CommissionAmount int64            `gorm:"not null" json:"commission_amount"`
	PayoutAmount     int64            `gorm:"not null" json:"payout_amount"`
	Status           SettlementStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// CashSummary is the response of GET /api/cash. Available is the balance
// less withdrawals still waiting for an admin.
type CashSummary struct {
	Balance      int64             `json:"balance"`
	Available    int64             `json:"available"`
	Transactions []CashTransaction `json:"transactions"`
}
