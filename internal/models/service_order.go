package models

import (
	"time"
)

type ServiceOrderStatus string

const (
	ServiceOrderStatusPending   ServiceOrderStatus = "pending"
	ServiceOrderStatusApproved  ServiceOrderStatus = "approved"
	ServiceOrderStatusCompleted ServiceOrderStatus = "completed"
	ServiceOrderStatusCancelled ServiceOrderStatus = "cancelled"
)

// ServiceOrder is a purchase of a seller's packaged service.
type ServiceOrder struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	BuyerID        uint               `gorm:"not null;index" json:"buyer_id"`
	SellerID       uint               `gorm:"not null;index" json:"seller_id"`
	ServiceTitle   string             `gorm:"size:200;not null" json:"service_title"`
	UnitPrice      int64              `gorm:"not null" json:"unit_price"`
	Quantity       int64              `gorm:"not null;default:1" json:"quantity"`
	TotalAmount    int64              `gorm:"not null" json:"total_amount"`
	CouponID       *uint              `json:"coupon_id,omitempty"`
	CouponDiscount int64              `gorm:"not null;default:0" json:"coupon_discount"`
	PaidAmount     int64              `gorm:"not null" json:"paid_amount"`
	Status         ServiceOrderStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	CancelReason   *string            `gorm:"type:text" json:"cancel_reason,omitempty"`
	ApprovedAt     *time.Time         `json:"approved_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (ServiceOrder) TableName() string {
	return "service_orders"
}

// CheckoutRequest is the body of POST /api/service-orders
type CheckoutRequest struct {
	SellerID     uint   `json:"seller_id" binding:"required"`
	ServiceTitle string `json:"service_title" binding:"required"`
	UnitPrice    int64  `json:"unit_price" binding:"required,gt=0"`
	Quantity     int64  `json:"quantity"`
	CouponCode   string `json:"coupon_code"`
}
