package services

import (
	"context"
	"testing"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

func TestPaymentFirstListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coupon := &models.Coupon{
		Code:          "WELCOME",
		CouponType:    models.CouponTypeAll,
		DiscountType:  models.DiscountTypeFixed,
		DiscountValue: 5000,
		MaxUsageCount: int64Ptr(10),
		IsActive:      true,
	}
	if err := f.repo.CreateCoupon(ctx, coupon); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}

	req, err := f.workRequests.Create(ctx, requester, models.CreateWorkRequestRequest{
		Title:        "Landing page",
		Category:     "web",
		PaymentFirst: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.Status != models.WorkRequestStatusDraft {
		t.Fatalf("expected draft, got %s", req.Status)
	}

	payment, err := f.payments.Submit(ctx, requester, models.SubmitPaymentRequest{
		ReferenceType: models.ReferenceTypeWorkRequest,
		ReferenceID:   req.ID.String(),
		CouponCode:    "WELCOME",
		DepositorName: "Kim",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if payment.Amount != 30000 || payment.CouponDiscount != 5000 || payment.PaidAmount != 25000 {
		t.Errorf("unexpected amounts: %+v", payment)
	}

	_, err = f.payments.Submit(ctx, requester, models.SubmitPaymentRequest{
		ReferenceType: models.ReferenceTypeWorkRequest,
		ReferenceID:   req.ID.String(),
	})
	assertKind(t, err, lifecycle.ErrConflict)

	used, err := f.repo.CountCouponUsage(ctx, coupon.ID, requesterID)
	if err != nil || used != 1 {
		t.Errorf("expected one recorded coupon use, got %d (%v)", used, err)
	}

	_, err = f.payments.Confirm(ctx, requester, payment.ID)
	assertKind(t, err, lifecycle.ErrAuthorization)

	if _, err := f.payments.Confirm(ctx, adminUser, payment.ID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	detail, err := f.workRequests.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if detail.WorkRequest.Status != models.WorkRequestStatusPendingApproval {
		t.Errorf("expected pending_approval after confirmation, got %s", detail.WorkRequest.Status)
	}

	_, err = f.payments.Confirm(ctx, adminUser, payment.ID)
	assertKind(t, err, lifecycle.ErrInvalidState)
}

func TestCouponQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.CreateCoupon(ctx, &models.Coupon{
		Code:              "TENOFF",
		CouponType:        models.ReferenceTypeServiceOrder,
		DiscountType:      models.DiscountTypePercentage,
		DiscountValue:     10,
		MaxDiscountAmount: int64Ptr(3000),
		IsActive:          true,
	})

	q, err := f.coupons.Quote(ctx, requesterID, "TENOFF", models.ReferenceTypeServiceOrder, 50000)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !q.Valid || q.Discount != 3000 || q.FinalAmount != 47000 {
		t.Errorf("expected capped discount 3000, got %+v", q)
	}

	q, _ = f.coupons.Quote(ctx, requesterID, "TENOFF", models.ReferenceTypeWorkRequest, 50000)
	if q.Valid || q.Reason != "type_mismatch" {
		t.Errorf("expected type_mismatch, got %+v", q)
	}

	q, _ = f.coupons.Quote(ctx, requesterID, "NOPE", models.ReferenceTypeServiceOrder, 50000)
	if q.Valid || q.Reason != "not_found" {
		t.Errorf("expected not_found, got %+v", q)
	}
}

func TestServiceOrderSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer, seller := requester, expertOne

	order, err := f.orders.Checkout(ctx, buyer, models.CheckoutRequest{
		SellerID:     seller.UserID,
		ServiceTitle: "Logo package",
		UnitPrice:    20000,
		Quantity:     3,
	})
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if order.TotalAmount != 60000 || order.Status != models.ServiceOrderStatusPending {
		t.Fatalf("unexpected order: %+v", order)
	}

	_, err = f.orders.Complete(ctx, seller, order.ID)
	assertKind(t, err, lifecycle.ErrInvalidState)
	_, err = f.orders.Approve(ctx, buyer, order.ID)
	assertKind(t, err, lifecycle.ErrAuthorization)

	if _, err := f.orders.Approve(ctx, seller, order.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := f.orders.Complete(ctx, seller, order.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	summary, err := f.cash.Summary(ctx, seller.UserID, 10, 0)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Balance != 57000 || len(summary.Transactions) != 1 {
		t.Errorf("expected one 57000 credit, got %+v", summary)
	}

	var st models.Settlement
	if err := f.db.Where("reference_type = ?", models.ReferenceTypeServiceOrder).First(&st).Error; err != nil {
		t.Fatalf("settlement not stored: %v", err)
	}
	if st.CommissionAmount != 3000 {
		t.Errorf("expected 5%% commission 3000, got %d", st.CommissionAmount)
	}

	_, err = f.orders.Cancel(ctx, buyer, order.ID, "changed my mind")
	assertKind(t, err, lifecycle.ErrInvalidState)
}

func TestServiceOrderCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.Checkout(ctx, requester, models.CheckoutRequest{
		SellerID:     expertOneID,
		ServiceTitle: "Copy edit",
		UnitPrice:    10000,
	})
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	_, err = f.orders.Cancel(ctx, expertTwo, order.ID, "")
	assertKind(t, err, lifecycle.ErrAuthorization)

	cancelled, err := f.orders.Cancel(ctx, expertOne, order.ID, "fully booked")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != models.ServiceOrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	n, _ := f.notifications.UnreadCount(ctx, requesterID)
	if n != 1 {
		t.Errorf("expected buyer to be told about the cancellation, got %d", n)
	}
}

func TestReviewOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.openRequest(t, nil)

	p, _ := f.workRequests.SubmitProposal(ctx, expertOne, req.ID, models.SubmitProposalRequest{Message: "a"})
	f.workRequests.AcceptProposal(ctx, requester, req.ID, p.ID)

	_, err := f.reviews.Create(ctx, requester, req.ID, p.ID, models.ReviewRequest{Rating: 5})
	assertKind(t, err, lifecycle.ErrInvalidState)

	f.workRequests.RequestCompletion(ctx, expertOne, req.ID, p.ID)
	if _, err := f.workRequests.ConfirmCompletion(ctx, requester, req.ID, p.ID); err != nil {
		t.Fatalf("ConfirmCompletion failed: %v", err)
	}

	_, err = f.reviews.Create(ctx, requester, req.ID, p.ID, models.ReviewRequest{Rating: 6})
	assertKind(t, err, lifecycle.ErrValidation)
	_, err = f.reviews.Create(ctx, expertTwo, req.ID, p.ID, models.ReviewRequest{Rating: 4})
	assertKind(t, err, lifecycle.ErrAuthorization)

	if _, err := f.reviews.Create(ctx, requester, req.ID, p.ID, models.ReviewRequest{Rating: 4, Content: "solid"}); err != nil {
		t.Fatalf("Create review failed: %v", err)
	}
	_, err = f.reviews.Create(ctx, requester, req.ID, p.ID, models.ReviewRequest{Rating: 5})
	assertKind(t, err, lifecycle.ErrConflict)

	rating, err := f.reviews.ExpertRating(ctx, expertOneID)
	if err != nil {
		t.Fatalf("ExpertRating failed: %v", err)
	}
	if rating.ReviewCount != 1 || rating.Average != 4 {
		t.Errorf("unexpected rating: %+v", rating)
	}
}

func TestAdminLog(t *testing.T) {
	f := newFixture(t)

	if !f.admin.IsAdmin(adminUserID) {
		t.Fatal("expected seeded admin")
	}
	if f.admin.IsAdmin(requesterID) {
		t.Error("requester must not be admin")
	}
	if _, err := f.admin.PromoteUserToAdmin(expertOneID, "overlord", adminUserID); err == nil {
		t.Error("expected unknown role to be rejected")
	}

	f.admin.LogAdminAction(adminUserID, AdminActionApproveWorkRequest, models.ReferenceTypeWorkRequest, "abc", nil)
	logs, err := f.admin.GetAdminLogs(10, 0)
	if err != nil {
		t.Fatalf("GetAdminLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != AdminActionApproveWorkRequest {
		t.Errorf("unexpected logs: %+v", logs)
	}
}

func TestRejectedPaymentReleasesCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coupon := &models.Coupon{
		Code:            "FIRST",
		CouponType:      models.CouponTypeAll,
		DiscountType:    models.DiscountTypeFixed,
		DiscountValue:   5000,
		MaxUsageCount:   int64Ptr(1),
		MaxUsagePerUser: 1,
		IsActive:        true,
	}
	if err := f.repo.CreateCoupon(ctx, coupon); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}
	req, err := f.workRequests.Create(ctx, requester, models.CreateWorkRequestRequest{
		Title: "Logo", Category: "design", PaymentFirst: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	submit := models.SubmitPaymentRequest{
		ReferenceType: models.ReferenceTypeWorkRequest,
		ReferenceID:   req.ID.String(),
		CouponCode:    "FIRST",
	}

	payment, err := f.payments.Submit(ctx, requester, submit)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := f.payments.Reject(ctx, adminUser, payment.ID, "deposit not found"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	used, _ := f.repo.CountCouponUsage(ctx, coupon.ID, requesterID)
	stored, _ := f.repo.GetCouponByCode(ctx, "FIRST")
	if used != 0 || stored.CurrentUsageCount != 0 {
		t.Fatalf("expected coupon use released, got %d rows and counter %d", used, stored.CurrentUsageCount)
	}

	retry, err := f.payments.Submit(ctx, requester, submit)
	if err != nil {
		t.Fatalf("resubmitting with the released coupon failed: %v", err)
	}
	if retry.PaidAmount != 25000 {
		t.Errorf("expected discounted 25000, got %d", retry.PaidAmount)
	}
}
