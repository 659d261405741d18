package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// Payment is a bank-transfer style payment a user submits and an admin
// confirms once the deposit arrives. A reference has at most one payment
// that is not rejected.
type Payment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	UserID         uint          `gorm:"not null;index" json:"user_id"`
	ReferenceType  string        `gorm:"size:50;not null;uniqueIndex:idx_payments_open_reference,where:status <> 'rejected'" json:"reference_type"`
	ReferenceID    string        `gorm:"size:64;not null;uniqueIndex:idx_payments_open_reference,where:status <> 'rejected'" json:"reference_id"`
	Amount         int64         `gorm:"not null" json:"amount"`
	CouponID       *uint         `json:"coupon_id,omitempty"`
	CouponDiscount int64         `gorm:"not null;default:0" json:"coupon_discount"`
	PaidAmount     int64         `gorm:"not null" json:"paid_amount"`
	DepositorName  string        `gorm:"size:100" json:"depositor_name"`
	Status         PaymentStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ConfirmedBy    *uint         `json:"confirmed_by,omitempty"`
	ConfirmedAt    *time.Time    `json:"confirmed_at,omitempty"`
	RejectReason   *string       `gorm:"type:text" json:"reject_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// SubmitPaymentRequest is the body of POST /api/payments
type SubmitPaymentRequest struct {
	ReferenceType string `json:"reference_type" binding:"required"`
	ReferenceID   string `json:"reference_id" binding:"required"`
	CouponCode    string `json:"coupon_code"`
	DepositorName string `json:"depositor_name"`
}

type DiscountType string

const (
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypePercentage DiscountType = "percentage"
)

// CouponTypeAll marks a coupon usable for any purchase type.
const CouponTypeAll = "all"

// Coupon is a discount code. CouponType is either CouponTypeAll or the
// reference type of the purchase it applies to.
type Coupon struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Code              string       `gorm:"uniqueIndex;size:50;not null" json:"code"`
	CouponType        string       `gorm:"size:50;not null;default:all" json:"coupon_type"`
	DiscountType      DiscountType `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue     int64        `gorm:"not null" json:"discount_value"`
	MaxDiscountAmount *int64       `json:"max_discount_amount,omitempty"`
	MinPurchaseAmount int64        `gorm:"not null;default:0" json:"min_purchase_amount"`
	ValidFrom         *time.Time   `json:"valid_from,omitempty"`
	ValidUntil        *time.Time   `json:"valid_until,omitempty"`
	MaxUsageCount     *int64       `json:"max_usage_count,omitempty"`
	CurrentUsageCount int64        `gorm:"not null;default:0" json:"current_usage_count"`
	MaxUsagePerUser   int64        `gorm:"not null;default:1" json:"max_usage_per_user"`
	IsActive          bool         `gorm:"default:true;index" json:"is_active"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// UserCoupon records one use of a coupon by a user.
type UserCoupon struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_user_coupons_user_coupon" json:"user_id"`
	CouponID      uint      `gorm:"not null;index:idx_user_coupons_user_coupon" json:"coupon_id"`
	ReferenceType string    `gorm:"size:50" json:"reference_type"`
	ReferenceID   string    `gorm:"size:64" json:"reference_id"`
	UsedAt        time.Time `gorm:"autoCreateTime" json:"used_at"`
}

func (UserCoupon) TableName() string {
	return "user_coupons"
}

// ValidateCouponRequest is the body of POST /api/coupons/validate
type ValidateCouponRequest struct {
	Code         string `json:"code" binding:"required"`
	PurchaseType string `json:"purchase_type" binding:"required"`
	Amount       int64  `json:"amount"`
}
