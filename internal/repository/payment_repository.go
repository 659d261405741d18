package repository

import (
	"context"
	"time"

	"outsourcing-market/internal/models"

	"gorm.io/gorm"
)

// CreatePayment creates a new payment. A second open payment for the same
// reference returns ErrDuplicate.
func (r *Repository) CreatePayment(ctx context.Context, p *models.Payment) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// GetPayment retrieves a payment by ID
func (r *Repository) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOpenPayment returns the pending or confirmed payment for a reference,
// or nil when there is none.
func (r *Repository) FindOpenPayment(ctx context.Context, referenceType, referenceID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ? AND status IN ?", referenceType, referenceID,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusConfirmed}).
		First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListUserPayments lists a user's payments, newest first.
func (r *Repository) ListUserPayments(ctx context.Context, userID uint, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ListPendingPayments lists payments waiting for an admin decision.
func (r *Repository) ListPendingPayments(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ReleaseCoupon undoes one use of a coupon recorded for a reference.
func (r *Repository) ReleaseCoupon(ctx context.Context, couponID, userID uint, referenceType, referenceID string) error {
	result := r.db.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ? AND reference_type = ? AND reference_id = ?",
			couponID, userID, referenceType, referenceID).
		Delete(&models.UserCoupon{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND current_usage_count > 0", couponID).
		UpdateColumn("current_usage_count", gorm.Expr("current_usage_count - 1")).Error
}

// DecidePayment moves a pending payment to confirmed or rejected. It fails
// with ErrStaleSnapshot if the payment was already decided.
func (r *Repository) DecidePayment(ctx context.Context, id uint, status models.PaymentStatus, adminUserID uint, reason *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"confirmed_by": adminUserID,
		"updated_at":   now,
	}
	if status == models.PaymentStatusConfirmed {
		updates["confirmed_at"] = now
	}
	if reason != nil {
		updates["reject_reason"] = *reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSnapshot
	}
	return nil
}

// GetCouponByCode retrieves a coupon by its code
func (r *Repository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCoupon creates a new coupon
func (r *Repository) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// CountCouponUsage returns how many times a user has used a coupon.
func (r *Repository) CountCouponUsage(ctx context.Context, couponID, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.UserCoupon{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&n).Error
	return n, err
}

// ConsumeCoupon records one use of a coupon. The usage counter only moves
// while it is below the global cap, so concurrent uses cannot overshoot it.
func (r *Repository) ConsumeCoupon(ctx context.Context, couponID, userID uint, referenceType, referenceID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_usage_count IS NULL OR current_usage_count < max_usage_count)", couponID).
		UpdateColumn("current_usage_count", gorm.Expr("current_usage_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCouponExhausted
	}

	return r.db.WithContext(ctx).Create(&models.UserCoupon{
		UserID:        userID,
		CouponID:      couponID,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
	}).Error
}
