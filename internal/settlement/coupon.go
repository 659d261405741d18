package settlement

import (
	"fmt"
	"time"

	"outsourcing-market/internal/models"

	"github.com/shopspring/decimal"
)

// Reasons a coupon can be refused, in the order they are checked.
const (
	ReasonInactive       = "inactive"
	ReasonTypeMismatch   = "type_mismatch"
	ReasonNotYetValid    = "not_yet_valid"
	ReasonExpired        = "expired"
	ReasonBelowMinimum   = "below_minimum"
	ReasonUsageExhausted = "usage_exhausted"
	ReasonAlreadyUsed    = "already_used"
)

// CouponError describes the first validity check a coupon failed.
type CouponError struct {
	Code   string
	Reason string
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// Discount returns the amount a coupon takes off a purchase. The result
// never exceeds amount.
func Discount(c *models.Coupon, amount int64) int64 {
	if amount <= 0 || c.DiscountValue <= 0 {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case models.DiscountTypeFixed:
		discount = c.DiscountValue
	case models.DiscountTypePercentage:
		discount = decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if c.MaxDiscountAmount != nil && discount > *c.MaxDiscountAmount {
			discount = *c.MaxDiscountAmount
		}
	default:
		return 0
	}

	if discount > amount {
		discount = amount
	}
	return discount
}

// ValidateCoupon runs the validity checks in order and returns the first
// failure: type, window, minimum purchase, global cap, per-user cap.
// userUsage is the number of times the user has already used the coupon.
func ValidateCoupon(c *models.Coupon, purchaseType string, amount, userUsage int64, now time.Time) error {
	fail := func(reason string) error {
		return &CouponError{Code: c.Code, Reason: reason}
	}

	if !c.IsActive {
		return fail(ReasonInactive)
	}
	if c.CouponType != models.CouponTypeAll && c.CouponType != purchaseType {
		return fail(ReasonTypeMismatch)
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return fail(ReasonNotYetValid)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return fail(ReasonExpired)
	}
	if amount < c.MinPurchaseAmount {
		return fail(ReasonBelowMinimum)
	}
	if c.MaxUsageCount != nil && c.CurrentUsageCount >= *c.MaxUsageCount {
		return fail(ReasonUsageExhausted)
	}
	if c.MaxUsagePerUser > 0 && userUsage >= c.MaxUsagePerUser {
		return fail(ReasonAlreadyUsed)
	}
	return nil
}

// ApplyCoupon validates the coupon and returns the discount and the amount
// left to pay.
func ApplyCoupon(c *models.Coupon, purchaseType string, amount, userUsage int64, now time.Time) (discount, paid int64, err error) {
	if err := ValidateCoupon(c, purchaseType, amount, userUsage, now); err != nil {
		return 0, amount, err
	}
	discount = Discount(c, amount)
	return discount, amount - discount, nil
}
