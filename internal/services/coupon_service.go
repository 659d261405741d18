package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/settlement"

	"gorm.io/gorm"
)

// CouponQuote is the outcome of applying a coupon to a purchase.
type CouponQuote struct {
	Coupon      *models.Coupon `json:"-"`
	Code        string         `json:"code"`
	Valid       bool           `json:"valid"`
	Reason      string         `json:"reason,omitempty"`
	Amount      int64          `json:"amount"`
	Discount    int64          `json:"discount"`
	FinalAmount int64          `json:"final_amount"`
}

type CouponService struct {
	repo *repository.Repository
	now  func() time.Time
}

func NewCouponService(repo *repository.Repository, now func() time.Time) *CouponService {
	if now == nil {
		now = time.Now
	}
	return &CouponService{repo: repo, now: now}
}

// Quote validates a coupon for a purchase without using it. An unknown or
// refused code yields a quote with Valid false and a reason code.
func (s *CouponService) Quote(ctx context.Context, userID uint, code, purchaseType string, amount int64) (*CouponQuote, error) {
	code = strings.TrimSpace(code)
	q := &CouponQuote{Code: code, Amount: amount, FinalAmount: amount}

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		q.Reason = "not_found"
		return q, nil
	}
	if err != nil {
		return nil, err
	}

	used, err := s.repo.CountCouponUsage(ctx, coupon.ID, userID)
	if err != nil {
		return nil, err
	}

	discount, paid, err := settlement.ApplyCoupon(coupon, purchaseType, amount, used, s.now())
	if err != nil {
		var cerr *settlement.CouponError
		if errors.As(err, &cerr) {
			q.Reason = cerr.Reason
			return q, nil
		}
		return nil, err
	}

	q.Coupon = coupon
	q.Valid = true
	q.Discount = discount
	q.FinalAmount = paid
	return q, nil
}

// Require is Quote for checkout: a refused coupon is a validation error.
func (s *CouponService) Require(ctx context.Context, userID uint, code, purchaseType string, amount int64) (*CouponQuote, error) {
	q, err := s.Quote(ctx, userID, code, purchaseType, amount)
	if err != nil {
		return nil, err
	}
	if !q.Valid {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "coupon %s cannot be used: %s", q.Code, q.Reason)
	}
	return q, nil
}

// redeemCoupon records the use of a quoted coupon inside the caller's transaction.
func redeemCoupon(ctx context.Context, tx *repository.Repository, q *CouponQuote, userID uint, referenceType, referenceID string) error {
	if q == nil || q.Coupon == nil {
		return nil
	}
	err := tx.ConsumeCoupon(ctx, q.Coupon.ID, userID, referenceType, referenceID)
	if errors.Is(err, repository.ErrCouponExhausted) {
		return lifecycle.Fail(lifecycle.ErrConflict, "coupon %s has been used up", q.Code)
	}
	return err
}
