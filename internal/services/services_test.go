package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/notify"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/settlement"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	// Named shared-cache memory DB: every pooled connection sees the same
	// data, and each test gets its own database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.AdminUser{},
		&models.AdminLog{},
		&models.WorkRequest{},
		&models.Proposal{},
		&models.Settlement{},
		&models.CashTransaction{},
		&models.Withdrawal{},
		&models.Payment{},
		&models.Coupon{},
		&models.UserCoupon{},
		&models.ServiceOrder{},
		&models.WorkRequestReview{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingEnqueuer) Enqueue(m notify.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return true
}

type fixture struct {
	db            *gorm.DB
	repo          *repository.Repository
	clock         *testClock
	outbox        *recordingEnqueuer
	notifications *NotificationService
	workRequests  *WorkRequestService
	coupons       *CouponService
	payments      *PaymentService
	orders        *ServiceOrderService
	reviews       *ReviewService
	cash          *CashService
	admin         *AdminService
}

const (
	requesterID uint = 1
	expertOneID uint = 2
	expertTwoID uint = 3
	adminUserID uint = 9
)

var (
	requester = lifecycle.Actor{UserID: requesterID}
	expertOne = lifecycle.Actor{UserID: expertOneID}
	expertTwo = lifecycle.Actor{UserID: expertTwoID}
	adminUser = lifecycle.Actor{UserID: adminUserID, IsAdmin: true}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	for _, id := range []uint{requesterID, expertOneID, expertTwoID, adminUserID} {
		if err := db.Create(&models.User{ID: id, Handle: fmt.Sprintf("user%d", id)}).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	f := &fixture{
		db:     db,
		repo:   repository.NewRepository(db),
		clock:  &testClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)},
		outbox: &recordingEnqueuer{},
		admin:  NewAdminService(db),
	}
	if _, err := f.admin.PromoteUserToAdmin(adminUserID, models.AdminRoleSuperAdmin, 0); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}

	rates := settlement.DefaultRates()
	machine := lifecycle.New(lifecycle.DefaultPolicy(), rates, f.clock.Now)
	f.notifications = NewNotificationService(f.repo, f.outbox)
	f.workRequests = NewWorkRequestService(f.repo, machine, f.notifications)
	f.coupons = NewCouponService(f.repo, f.clock.Now)
	f.payments = NewPaymentService(f.repo, f.coupons, f.workRequests, f.notifications, 30000)
	f.orders = NewServiceOrderService(f.repo, f.coupons, f.notifications, rates.ServiceOrder, f.clock.Now)
	f.reviews = NewReviewService(f.repo, f.workRequests)
	f.cash = NewCashService(f.repo, f.notifications)
	return f
}

func (f *fixture) openRequest(t *testing.T, maxApplicants *int) *models.WorkRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.workRequests.Create(ctx, requester, models.CreateWorkRequestRequest{
		Title:         "Brand identity",
		Category:      "design",
		RewardAmount:  100000,
		MaxApplicants: maxApplicants,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	req, err = f.workRequests.Approve(ctx, adminUser, req.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	return req
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
