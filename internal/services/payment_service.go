package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentService handles bank-transfer payments that an admin confirms:
// listing fees for payment-first work requests and payment for accepted
// proposals.
type PaymentService struct {
	repo         *repository.Repository
	coupons      *CouponService
	workRequests *WorkRequestService
	notifier     Notifier
	listingFee   int64
}

func NewPaymentService(
	repo *repository.Repository,
	coupons *CouponService,
	workRequests *WorkRequestService,
	notifier Notifier,
	listingFee int64,
) *PaymentService {
	return &PaymentService{
		repo:         repo,
		coupons:      coupons,
		workRequests: workRequests,
		notifier:     notifier,
		listingFee:   listingFee,
	}
}

// amountFor resolves what the actor owes for a reference.
func (s *PaymentService) amountFor(ctx context.Context, actor lifecycle.Actor, referenceType, referenceID string) (int64, error) {
	id, err := uuid.Parse(referenceID)
	if err != nil {
		return 0, lifecycle.Fail(lifecycle.ErrValidation, "invalid reference id")
	}

	switch referenceType {
	case models.ReferenceTypeWorkRequest:
		snap, err := s.workRequests.Snapshot(ctx, id)
		if err != nil {
			return 0, err
		}
		req := snap.Request
		if req.RequesterID != actor.UserID {
			return 0, lifecycle.Fail(lifecycle.ErrAuthorization, "only the requester can pay for this listing")
		}
		if req.Status != models.WorkRequestStatusDraft {
			return 0, lifecycle.Fail(lifecycle.ErrInvalidState, "listing fee is only due on drafts")
		}
		return s.listingFee, nil

	case models.ReferenceTypeProposal:
		stored, err := s.repo.GetProposal(ctx, id)
		if err != nil {
			return 0, err
		}
		snap, p, err := s.workRequests.FindProposal(ctx, stored.WorkRequestID, id)
		if err != nil {
			return 0, err
		}
		req := snap.Request
		if req.RequesterID != actor.UserID {
			return 0, lifecycle.Fail(lifecycle.ErrAuthorization, "only the requester can pay for this proposal")
		}
		if p.Status != models.ProposalStatusAccepted && p.Status != models.ProposalStatusCompleted {
			return 0, lifecycle.Fail(lifecycle.ErrInvalidState, "proposal is %s", p.Status)
		}
		return p.SettlementBase(req.RewardAmount), nil
	}

	return 0, lifecycle.Fail(lifecycle.ErrValidation, "unknown reference type %q", referenceType)
}

// Submit records a payment awaiting admin confirmation.
func (s *PaymentService) Submit(ctx context.Context, actor lifecycle.Actor, in models.SubmitPaymentRequest) (*models.Payment, error) {
	amount, err := s.amountFor(ctx, actor, in.ReferenceType, in.ReferenceID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		UserID:        actor.UserID,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Amount:        amount,
		PaidAmount:    amount,
		DepositorName: in.DepositorName,
		Status:        models.PaymentStatusPending,
	}

	var quote *CouponQuote
	if in.CouponCode != "" {
		quote, err = s.coupons.Require(ctx, actor.UserID, in.CouponCode, in.ReferenceType, amount)
		if err != nil {
			return nil, err
		}
		payment.CouponID = &quote.Coupon.ID
		payment.CouponDiscount = quote.Discount
		payment.PaidAmount = quote.FinalAmount
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.FindOpenPayment(ctx, in.ReferenceType, in.ReferenceID)
		if err != nil {
			return fmt.Errorf("failed to check existing payment: %w", err)
		}
		if existing != nil {
			return repository.ErrDuplicate
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return redeemCoupon(ctx, tx, quote, actor.UserID, in.ReferenceType, in.ReferenceID)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, lifecycle.Fail(lifecycle.ErrConflict, "payment already submitted")
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[Payment] %d submitted by user %d for %s %s: amount=%d discount=%d paid=%d",
		payment.ID, actor.UserID, payment.ReferenceType, payment.ReferenceID,
		payment.Amount, payment.CouponDiscount, payment.PaidAmount)

	publish(ctx, s.notifier, []lifecycle.Event{{
		Audience:     lifecycle.AudienceAdmin,
		ActorID:      &payment.UserID,
		Type:         lifecycle.EventPaymentSubmitted,
		ResourceType: models.ReferenceTypePayment,
		ResourceID:   strconv.FormatUint(uint64(payment.ID), 10),
		Payload: map[string]interface{}{
			"reference_type": payment.ReferenceType,
			"reference_id":   payment.ReferenceID,
			"amount":         payment.Amount,
			"paid_amount":    payment.PaidAmount,
		},
	}})
	return payment, nil
}

// Confirm marks a payment received. A confirmed listing fee submits the
// draft work request for review.
func (s *PaymentService) Confirm(ctx context.Context, admin lifecycle.Actor, paymentID uint) (*models.Payment, error) {
	return s.decide(ctx, admin, paymentID, models.PaymentStatusConfirmed, nil)
}

// Reject marks a payment as not received.
func (s *PaymentService) Reject(ctx context.Context, admin lifecycle.Actor, paymentID uint, reason string) (*models.Payment, error) {
	return s.decide(ctx, admin, paymentID, models.PaymentStatusRejected, &reason)
}

func (s *PaymentService) decide(ctx context.Context, admin lifecycle.Actor, paymentID uint, status models.PaymentStatus, reason *string) (*models.Payment, error) {
	if !admin.IsAdmin {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "admin only")
	}

	// A rejected payment gives its coupon use back in the same transaction.
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.DecidePayment(ctx, paymentID, status, admin.UserID, reason); err != nil {
			return err
		}
		if status != models.PaymentStatusRejected {
			return nil
		}
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.CouponID == nil {
			return nil
		}
		return tx.ReleaseCoupon(ctx, *p.CouponID, p.UserID, p.ReferenceType, p.ReferenceID)
	})
	if errors.Is(err, repository.ErrStaleSnapshot) {
		if _, getErr := s.repo.GetPayment(ctx, paymentID); errors.Is(getErr, gorm.ErrRecordNotFound) {
			return nil, getErr
		}
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "payment %d was already decided", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Payment] %d %s by admin user %d", paymentID, status, admin.UserID)

	eventType := lifecycle.EventPaymentConfirmed
	if status == models.PaymentStatusRejected {
		eventType = lifecycle.EventPaymentRejected
	}
	payload := map[string]interface{}{
		"reference_type": payment.ReferenceType,
		"reference_id":   payment.ReferenceID,
		"paid_amount":    payment.PaidAmount,
	}
	if reason != nil {
		payload["reason"] = *reason
	}
	publish(ctx, s.notifier, []lifecycle.Event{{
		Audience:     lifecycle.AudienceUser,
		RecipientID:  payment.UserID,
		ActorID:      &admin.UserID,
		Type:         eventType,
		ResourceType: models.ReferenceTypePayment,
		ResourceID:   strconv.FormatUint(uint64(payment.ID), 10),
		Payload:      payload,
	}})

	if status == models.PaymentStatusConfirmed && payment.ReferenceType == models.ReferenceTypeWorkRequest {
		requestID, err := uuid.Parse(payment.ReferenceID)
		if err != nil {
			return payment, nil
		}
		if _, err := s.workRequests.SubmitForApproval(ctx, admin, requestID); err != nil {
			// The payment stays confirmed; the owner can still submit.
			log.Printf("[Payment] Failed to submit work request %s after payment %d: %v", requestID, paymentID, err)
		}
	}

	return payment, nil
}

// ListMine returns the caller's payments
func (s *PaymentService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]models.Payment, error) {
	return s.repo.ListUserPayments(ctx, userID, limit, offset)
}

// ListPending returns payments awaiting a decision
func (s *PaymentService) ListPending(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	return s.repo.ListPendingPayments(ctx, limit, offset)
}
