package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/settlement"

	"github.com/shopspring/decimal"
)

// ServiceOrderService handles purchases of packaged services. Orders are
// settled at the service-order commission rate when the seller completes
// them.
type ServiceOrderService struct {
	repo     *repository.Repository
	coupons  *CouponService
	notifier Notifier
	rate     decimal.Decimal
	now      func() time.Time
}

func NewServiceOrderService(
	repo *repository.Repository,
	coupons *CouponService,
	notifier Notifier,
	rate decimal.Decimal,
	now func() time.Time,
) *ServiceOrderService {
	if now == nil {
		now = time.Now
	}
	return &ServiceOrderService{
		repo:     repo,
		coupons:  coupons,
		notifier: notifier,
		rate:     rate,
		now:      now,
	}
}

// Checkout places a pending order for the buyer.
func (s *ServiceOrderService) Checkout(ctx context.Context, buyer lifecycle.Actor, in models.CheckoutRequest) (*models.ServiceOrder, error) {
	if buyer.UserID == 0 {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "login required")
	}
	if in.SellerID == buyer.UserID {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "cannot order your own service")
	}
	title := strings.TrimSpace(in.ServiceTitle)
	if title == "" {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "service title is required")
	}
	if in.UnitPrice <= 0 {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "unit price must be positive")
	}
	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "quantity must be positive")
	}

	total := in.UnitPrice * quantity
	order := &models.ServiceOrder{
		BuyerID:      buyer.UserID,
		SellerID:     in.SellerID,
		ServiceTitle: title,
		UnitPrice:    in.UnitPrice,
		Quantity:     quantity,
		TotalAmount:  total,
		PaidAmount:   total,
		Status:       models.ServiceOrderStatusPending,
	}

	var quote *CouponQuote
	if in.CouponCode != "" {
		var err error
		quote, err = s.coupons.Require(ctx, buyer.UserID, in.CouponCode, models.ReferenceTypeServiceOrder, total)
		if err != nil {
			return nil, err
		}
		order.CouponID = &quote.Coupon.ID
		order.CouponDiscount = quote.Discount
		order.PaidAmount = quote.FinalAmount
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateServiceOrder(ctx, order); err != nil {
			return err
		}
		return redeemCoupon(ctx, tx, quote, buyer.UserID, models.ReferenceTypeServiceOrder, orderRef(order))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ServiceOrder] %d placed by user %d: total=%d paid=%d", order.ID, buyer.UserID, order.TotalAmount, order.PaidAmount)
	s.emit(ctx, order, order.SellerID, buyer.UserID, lifecycle.EventServiceOrderPlaced, nil)
	return order, nil
}

// Approve is the seller accepting a pending order.
func (s *ServiceOrderService) Approve(ctx context.Context, seller lifecycle.Actor, orderID uint) (*models.ServiceOrder, error) {
	order, err := s.repo.GetServiceOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != seller.UserID {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "only the seller can approve this order")
	}
	if order.Status != models.ServiceOrderStatusPending {
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "order is %s", order.Status)
	}

	now := s.now()
	order.Status = models.ServiceOrderStatusApproved
	order.ApprovedAt = &now
	if err := s.repo.TransitionServiceOrder(ctx, order, models.ServiceOrderStatusPending); err != nil {
		return nil, s.storeErr(err)
	}

	s.emit(ctx, order, order.BuyerID, seller.UserID, lifecycle.EventServiceOrderApproved, nil)
	return order, nil
}

// Complete is the seller delivering an approved order. The order is
// settled and the seller credited in the same transaction.
func (s *ServiceOrderService) Complete(ctx context.Context, seller lifecycle.Actor, orderID uint) (*models.ServiceOrder, error) {
	order, err := s.repo.GetServiceOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != seller.UserID {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "only the seller can complete this order")
	}
	if order.Status != models.ServiceOrderStatusApproved {
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "order is %s", order.Status)
	}

	// Coupon discounts are absorbed by the platform; the seller settles on
	// the undiscounted total.
	split, err := settlement.Calculate(order.TotalAmount, s.rate)
	if err != nil {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "%v", err)
	}

	now := s.now()
	order.Status = models.ServiceOrderStatusCompleted
	order.CompletedAt = &now

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.TransitionServiceOrder(ctx, order, models.ServiceOrderStatusApproved); err != nil {
			return err
		}
		st := &models.Settlement{
			ReferenceType:    models.ReferenceTypeServiceOrder,
			ReferenceID:      orderRef(order),
			PayeeID:          order.SellerID,
			GrossAmount:      split.GrossAmount,
			CommissionRate:   split.CommissionRate,
			CommissionAmount: split.CommissionAmount,
			PayoutAmount:     split.PayoutAmount,
			Status:           models.SettlementStatusPending,
		}
		credit := &models.CashTransaction{
			UserID:        order.SellerID,
			Type:          models.CashTransactionServicePayout,
			Amount:        split.PayoutAmount,
			ReferenceType: models.ReferenceTypeServiceOrder,
			ReferenceID:   orderRef(order),
			Description:   "Service sale: " + order.ServiceTitle,
		}
		return tx.CreateSettlement(ctx, st, credit)
	})
	if err != nil {
		return nil, s.storeErr(err)
	}

	log.Printf("[ServiceOrder] %d completed: gross=%d commission=%d payout=%d",
		order.ID, split.GrossAmount, split.CommissionAmount, split.PayoutAmount)
	s.emit(ctx, order, order.SellerID, 0, lifecycle.EventServiceOrderCompleted, map[string]interface{}{
		"gross_amount":  split.GrossAmount,
		"payout_amount": split.PayoutAmount,
	})
	s.emit(ctx, order, order.BuyerID, seller.UserID, lifecycle.EventServiceOrderCompleted, nil)
	return order, nil
}

// Cancel lets either party cancel an order that has not completed.
func (s *ServiceOrderService) Cancel(ctx context.Context, actor lifecycle.Actor, orderID uint, reason string) (*models.ServiceOrder, error) {
	order, err := s.repo.GetServiceOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID && order.SellerID != actor.UserID {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "not a party to this order")
	}
	from := order.Status
	if from != models.ServiceOrderStatusPending && from != models.ServiceOrderStatusApproved {
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "order is %s", from)
	}

	order.Status = models.ServiceOrderStatusCancelled
	if reason = strings.TrimSpace(reason); reason != "" {
		order.CancelReason = &reason
	}
	if err := s.repo.TransitionServiceOrder(ctx, order, from); err != nil {
		return nil, s.storeErr(err)
	}

	counterpart := order.SellerID
	if actor.UserID == order.SellerID {
		counterpart = order.BuyerID
	}
	s.emit(ctx, order, counterpart, actor.UserID, lifecycle.EventServiceOrderCancelled, map[string]interface{}{"reason": reason})
	return order, nil
}

// ListMine returns orders the caller bought or sold
func (s *ServiceOrderService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]models.ServiceOrder, error) {
	return s.repo.ListUserServiceOrders(ctx, userID, limit, offset)
}

func (s *ServiceOrderService) storeErr(err error) error {
	if errors.Is(err, repository.ErrStaleSnapshot) {
		return lifecycle.Fail(lifecycle.ErrConflict, "order was modified concurrently, please retry")
	}
	if errors.Is(err, repository.ErrDuplicateSettlement) {
		return lifecycle.Fail(lifecycle.ErrConflict, "order already settled")
	}
	return fmt.Errorf("failed to update service order: %w", err)
}

func (s *ServiceOrderService) emit(ctx context.Context, order *models.ServiceOrder, recipient, actorID uint, eventType string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"title":       order.ServiceTitle,
		"amount":      order.TotalAmount,
		"paid_amount": order.PaidAmount,
	}
	for k, v := range extra {
		payload[k] = v
	}
	e := lifecycle.Event{
		Audience:     lifecycle.AudienceUser,
		RecipientID:  recipient,
		Type:         eventType,
		ResourceType: models.ReferenceTypeServiceOrder,
		ResourceID:   orderRef(order),
		Payload:      payload,
	}
	if actorID != 0 {
		e.ActorID = &actorID
	}
	publish(ctx, s.notifier, []lifecycle.Event{e})
}

func orderRef(o *models.ServiceOrder) string {
	return strconv.FormatUint(uint64(o.ID), 10)
}
