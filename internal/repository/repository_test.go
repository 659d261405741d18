package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/settlement"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// One named in-memory database per test keeps tests isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.AdminUser{},
		&models.WorkRequest{},
		&models.Proposal{},
		&models.Settlement{},
		&models.CashTransaction{},
		&models.Withdrawal{},
		&models.Payment{},
		&models.Coupon{},
		&models.UserCoupon{},
		&models.Notification{},
		&models.WorkRequestReview{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...uint) {
	t.Helper()
	for _, id := range ids {
		if err := db.Create(&models.User{ID: id, Handle: fmt.Sprintf("user%d", id)}).Error; err != nil {
			t.Fatalf("failed to create user %d: %v", id, err)
		}
	}
}

func openRequest(t *testing.T, repo *Repository, m *lifecycle.Machine) lifecycle.Snapshot {
	t.Helper()
	ctx := context.Background()

	res, err := m.NewRequest(lifecycle.Actor{UserID: 1}, models.CreateWorkRequestRequest{
		Title: "Mobile app", Category: "development", RewardAmount: 100000,
	})
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := repo.ApplyResult(ctx, res); err != nil {
		t.Fatalf("ApplyResult(create) failed: %v", err)
	}

	snap, err := repo.LoadSnapshot(ctx, res.Request.ID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	res, err = m.Approve(snap, lifecycle.Actor{UserID: 99, IsAdmin: true})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := repo.ApplyResult(ctx, res); err != nil {
		t.Fatalf("ApplyResult(approve) failed: %v", err)
	}

	snap, err = repo.LoadSnapshot(ctx, res.Request.ID)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	return snap
}

func TestApplyResultVersionCheck(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1, 2, 3)
	repo := NewRepository(db)
	m := lifecycle.New(lifecycle.DefaultPolicy(), settlement.DefaultRates(), nil)
	ctx := context.Background()

	snap := openRequest(t, repo, m)
	if snap.Request.Status != models.WorkRequestStatusOpen {
		t.Fatalf("expected open, got %s", snap.Request.Status)
	}
	if snap.Request.Version != 2 {
		t.Fatalf("expected version 2, got %d", snap.Request.Version)
	}

	// Two experts propose from the same snapshot; the second write is stale.
	first, err := m.SubmitProposal(snap, lifecycle.Actor{UserID: 2}, models.SubmitProposalRequest{Message: "a"})
	if err != nil {
		t.Fatalf("SubmitProposal failed: %v", err)
	}
	second, err := m.SubmitProposal(snap, lifecycle.Actor{UserID: 3}, models.SubmitProposalRequest{Message: "b"})
	if err != nil {
		t.Fatalf("SubmitProposal failed: %v", err)
	}

	if err := repo.ApplyResult(ctx, first); err != nil {
		t.Fatalf("first ApplyResult failed: %v", err)
	}
	if err := repo.ApplyResult(ctx, second); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}

	var count int64
	db.Model(&models.Proposal{}).Count(&count)
	if count != 1 {
		t.Errorf("stale write must not insert a proposal, got %d rows", count)
	}
}

func TestApplyResultUniqueProposal(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1, 2)
	repo := NewRepository(db)
	m := lifecycle.New(lifecycle.DefaultPolicy(), settlement.DefaultRates(), nil)
	ctx := context.Background()

	snap := openRequest(t, repo, m)
	res, err := m.SubmitProposal(snap, lifecycle.Actor{UserID: 2}, models.SubmitProposalRequest{Message: "a"})
	if err != nil {
		t.Fatalf("SubmitProposal failed: %v", err)
	}
	if err := repo.ApplyResult(ctx, res); err != nil {
		t.Fatalf("ApplyResult failed: %v", err)
	}

	// Simulate a writer that skipped the in-memory duplicate check.
	snap, _ = repo.LoadSnapshot(ctx, snap.Request.ID)
	dup := *res.NewProposal
	dup.ID = uuid.Nil
	res.Request = snap.Request
	res.NewProposal = &dup
	res.Events = nil
	if err := repo.ApplyResult(ctx, res); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestApplyResultSettlementAndCredit(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1, 2)
	repo := NewRepository(db)
	now := time.Now()
	m := lifecycle.New(lifecycle.DefaultPolicy(), settlement.DefaultRates(), func() time.Time { return now })
	ctx := context.Background()
	owner := lifecycle.Actor{UserID: 1}
	expert := lifecycle.Actor{UserID: 2}

	snap := openRequest(t, repo, m)
	steps := []func(lifecycle.Snapshot) (*lifecycle.Result, error){
		func(s lifecycle.Snapshot) (*lifecycle.Result, error) {
			return m.SubmitProposal(s, expert, models.SubmitProposalRequest{Message: "on it"})
		},
		func(s lifecycle.Snapshot) (*lifecycle.Result, error) {
			return m.AcceptProposal(s, owner, s.Proposals[0].ID)
		},
		func(s lifecycle.Snapshot) (*lifecycle.Result, error) {
			return m.RequestCompletion(s, expert, s.Proposals[0].ID)
		},
		func(s lifecycle.Snapshot) (*lifecycle.Result, error) {
			return m.ConfirmCompletion(s, owner, s.Proposals[0].ID)
		},
	}
	for i, step := range steps {
		res, err := step(snap)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if err := repo.ApplyResult(ctx, res); err != nil {
			t.Fatalf("step %d ApplyResult failed: %v", i, err)
		}
		if snap, err = repo.LoadSnapshot(ctx, snap.Request.ID); err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
	}

	if snap.Request.Status != models.WorkRequestStatusCompleted {
		t.Errorf("expected completed request, got %s", snap.Request.Status)
	}
	if snap.Proposals[0].Status != models.ProposalStatusCompleted {
		t.Errorf("expected completed proposal, got %s", snap.Proposals[0].Status)
	}

	var s models.Settlement
	if err := db.Where("reference_id = ?", snap.Proposals[0].ID.String()).First(&s).Error; err != nil {
		t.Fatalf("settlement not found: %v", err)
	}
	if s.CommissionAmount != 10000 || s.PayoutAmount != 90000 {
		t.Errorf("unexpected settlement %+v", s)
	}

	balance, err := repo.CashBalance(ctx, 2)
	if err != nil {
		t.Fatalf("CashBalance failed: %v", err)
	}
	if balance != 90000 {
		t.Errorf("expected balance 90000, got %d", balance)
	}

	// A second settlement of the same proposal is reported apart from
	// duplicate proposals.
	again := s
	again.ID = 0
	err = repo.ApplyResult(ctx, &lifecycle.Result{Request: snap.Request, Settlements: []models.Settlement{again}})
	if !errors.Is(err, ErrDuplicateSettlement) || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicateSettlement, got %v", err)
	}
}

func TestCancelHidesRequest(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1)
	repo := NewRepository(db)
	m := lifecycle.New(lifecycle.DefaultPolicy(), settlement.DefaultRates(), nil)
	ctx := context.Background()

	snap := openRequest(t, repo, m)
	res, err := m.Cancel(snap, lifecycle.Actor{UserID: 1})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := repo.ApplyResult(ctx, res); err != nil {
		t.Fatalf("ApplyResult failed: %v", err)
	}

	if _, err := repo.GetWorkRequest(ctx, snap.Request.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected soft-deleted request to be hidden, got %v", err)
	}

	var stored models.WorkRequest
	if err := db.Unscoped().Where("id = ?", snap.Request.ID).First(&stored).Error; err != nil {
		t.Fatalf("row should still exist: %v", err)
	}
	if stored.Status != models.WorkRequestStatusCancelled {
		t.Errorf("expected cancelled, got %s", stored.Status)
	}
}

func TestStaleCompletionRequests(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1, 2, 3, 4)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	req := models.WorkRequest{RequesterID: 1, Title: "t", Category: "c", Status: models.WorkRequestStatusInProgress}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	old := now.Add(-8 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	rows := []models.Proposal{
		{WorkRequestID: req.ID, ExpertID: 2, Message: "old", Status: models.ProposalStatusAccepted, CompletionRequestedAt: &old},
		{WorkRequestID: req.ID, ExpertID: 3, Message: "recent", Status: models.ProposalStatusAccepted, CompletionRequestedAt: &recent},
		{WorkRequestID: req.ID, ExpertID: 4, Message: "disputed", Status: models.ProposalStatusAccepted, CompletionRequestedAt: &old, DisputedAt: &recent},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create proposal: %v", err)
		}
	}

	stale, err := repo.StaleCompletionRequests(ctx, now.Add(-7*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("StaleCompletionRequests failed: %v", err)
	}
	if len(stale) != 1 || stale[0].Message != "old" {
		t.Fatalf("expected only the old undisputed proposal, got %+v", stale)
	}

	accepted, err := repo.AcceptedProposals(ctx, req.ID)
	if err != nil {
		t.Fatalf("AcceptedProposals failed: %v", err)
	}
	if len(accepted) != 3 {
		t.Errorf("expected 3 accepted proposals, got %d", len(accepted))
	}
}

func TestConsumeCouponRespectsCap(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1, 2)
	repo := NewRepository(db)
	ctx := context.Background()

	limit := int64(1)
	c := &models.Coupon{Code: "ONCE", DiscountType: models.DiscountTypeFixed, DiscountValue: 100, MaxUsageCount: &limit, IsActive: true}
	if err := repo.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}

	if err := repo.ConsumeCoupon(ctx, c.ID, 1, "service_order", "1"); err != nil {
		t.Fatalf("first ConsumeCoupon failed: %v", err)
	}
	if err := repo.ConsumeCoupon(ctx, c.ID, 2, "service_order", "2"); !errors.Is(err, ErrCouponExhausted) {
		t.Fatalf("expected ErrCouponExhausted, got %v", err)
	}

	n, err := repo.CountCouponUsage(ctx, c.ID, 1)
	if err != nil || n != 1 {
		t.Errorf("expected usage 1, got %d (%v)", n, err)
	}
}

func TestNotificationInbox(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n := &models.Notification{RecipientID: 1, Type: "proposal_received", Payload: models.JSONB{"i": i}}
		if err := repo.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}

	unread, _ := repo.CountUnreadNotifications(ctx, 1)
	if unread != 3 {
		t.Fatalf("expected 3 unread, got %d", unread)
	}

	list, err := repo.ListNotifications(ctx, 1, false, 10, 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if list[0].Payload["i"] == nil {
		t.Errorf("expected payload to round-trip, got %v", list[0].Payload)
	}

	if err := repo.MarkNotificationRead(ctx, list[0].ID, 1); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	if err := repo.MarkNotificationRead(ctx, list[0].ID, 2); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected not found for another user, got %v", err)
	}

	updated, err := repo.MarkAllNotificationsRead(ctx, 1)
	if err != nil || updated != 2 {
		t.Errorf("expected 2 marked read, got %d (%v)", updated, err)
	}
}

func TestOpenPaymentIsUniquePerReference(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1)
	repo := NewRepository(db)
	ctx := context.Background()

	ref := uuid.New().String()
	first := &models.Payment{UserID: 1, ReferenceType: models.ReferenceTypeWorkRequest, ReferenceID: ref, Amount: 30000, PaidAmount: 30000, Status: models.PaymentStatusPending}
	if err := repo.CreatePayment(ctx, first); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	second := &models.Payment{UserID: 1, ReferenceType: models.ReferenceTypeWorkRequest, ReferenceID: ref, Amount: 30000, PaidAmount: 30000, Status: models.PaymentStatusPending}
	if err := repo.CreatePayment(ctx, second); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a second open payment, got %v", err)
	}

	reason := "no deposit"
	if err := repo.DecidePayment(ctx, first.ID, models.PaymentStatusRejected, 1, &reason); err != nil {
		t.Fatalf("DecidePayment failed: %v", err)
	}
	retry := &models.Payment{UserID: 1, ReferenceType: models.ReferenceTypeWorkRequest, ReferenceID: ref, Amount: 30000, PaidAmount: 30000, Status: models.PaymentStatusPending}
	if err := repo.CreatePayment(ctx, retry); err != nil {
		t.Fatalf("expected a new payment after rejection, got %v", err)
	}
}

func TestReleaseCoupon(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 1)
	repo := NewRepository(db)
	ctx := context.Background()

	c := &models.Coupon{Code: "ONCE", CouponType: models.CouponTypeAll, DiscountType: models.DiscountTypeFixed, DiscountValue: 1000, IsActive: true}
	if err := repo.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon failed: %v", err)
	}
	if err := repo.ConsumeCoupon(ctx, c.ID, 1, models.ReferenceTypePayment, "ref-1"); err != nil {
		t.Fatalf("ConsumeCoupon failed: %v", err)
	}
	if err := repo.ReleaseCoupon(ctx, c.ID, 1, models.ReferenceTypePayment, "ref-1"); err != nil {
		t.Fatalf("ReleaseCoupon failed: %v", err)
	}
	// Releasing twice is a no-op.
	if err := repo.ReleaseCoupon(ctx, c.ID, 1, models.ReferenceTypePayment, "ref-1"); err != nil {
		t.Fatalf("ReleaseCoupon failed: %v", err)
	}

	used, _ := repo.CountCouponUsage(ctx, c.ID, 1)
	stored, _ := repo.GetCouponByCode(ctx, "ONCE")
	if used != 0 || stored.CurrentUsageCount != 0 {
		t.Errorf("expected coupon use released, got %d rows and counter %d", used, stored.CurrentUsageCount)
	}
}

func TestMarkSettlementsPaidOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	seedUsers(t, db, 2)
	repo := NewRepository(db)
	ctx := context.Background()

	for i, payout := range []int64{30000, 50000} {
		s := &models.Settlement{
			ReferenceType:  models.ReferenceTypeServiceOrder,
			ReferenceID:    fmt.Sprintf("order-%d", i),
			PayeeID:        2,
			GrossAmount:    payout,
			CommissionRate: settlement.DefaultRates().ServiceOrder,
			PayoutAmount:   payout,
			Status:         models.SettlementStatusPending,
		}
		credit := &models.CashTransaction{UserID: 2, Type: models.CashTransactionServicePayout, Amount: payout}
		if err := repo.CreateSettlement(ctx, s, credit); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
	}

	debit := &models.CashTransaction{UserID: 2, Type: models.CashTransactionWithdrawal, Amount: -40000}
	if err := repo.CreateCashTransaction(ctx, debit); err != nil {
		t.Fatalf("CreateCashTransaction failed: %v", err)
	}
	marked, err := repo.MarkSettlementsPaid(ctx, 2)
	if err != nil || marked != 1 {
		t.Fatalf("expected the first settlement paid, got %d (%v)", marked, err)
	}

	debit = &models.CashTransaction{UserID: 2, Type: models.CashTransactionWithdrawal, Amount: -40000}
	repo.CreateCashTransaction(ctx, debit)
	marked, err = repo.MarkSettlementsPaid(ctx, 2)
	if err != nil || marked != 1 {
		t.Fatalf("expected the second settlement paid, got %d (%v)", marked, err)
	}

	var pending int64
	db.Model(&models.Settlement{}).Where("status = ?", models.SettlementStatusPending).Count(&pending)
	if pending != 0 {
		t.Errorf("expected no pending settlements, got %d", pending)
	}
}
