package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/database"
	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/services"
	"outsourcing-market/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ownerID  uint = 1
	expertID uint = 2
	adminID  uint = 3
)

type testServer struct {
	router *gin.Engine
	tokens map[uint]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("handler-test-secret")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	ts := &testServer{tokens: map[uint]string{}}
	for _, id := range []uint{ownerID, expertID, adminID} {
		handle := fmt.Sprintf("user%d", id)
		if err := db.Create(&models.User{ID: id, Handle: handle}).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
		token, err := auth.GenerateToken(id, handle, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}
		ts.tokens[id] = token
	}

	adminService := services.NewAdminService(db)
	if _, err := adminService.PromoteUserToAdmin(adminID, models.AdminRoleSuperAdmin, 0); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}

	repo := repository.NewRepository(db)
	rates := settlement.DefaultRates()
	machine := lifecycle.New(lifecycle.DefaultPolicy(), rates, time.Now)
	notifications := services.NewNotificationService(repo, nil)
	workRequests := services.NewWorkRequestService(repo, machine, notifications)
	coupons := services.NewCouponService(repo, time.Now)
	payments := services.NewPaymentService(repo, coupons, workRequests, notifications, 30000)
	orders := services.NewServiceOrderService(repo, coupons, notifications, rates.ServiceOrder, time.Now)
	reviews := services.NewReviewService(repo, workRequests)
	cash := services.NewCashService(repo, notifications)

	ts.router = gin.New()
	RegisterRoutes(ts.router, Handlers{
		WorkRequests:  NewWorkRequestHandler(workRequests, reviews),
		Payments:      NewPaymentHandler(payments, coupons),
		ServiceOrders: NewServiceOrderHandler(orders),
		Notifications: NewNotificationHandler(notifications),
		Users:         NewUserHandler(cash),
		Admin:         NewAdminHandler(adminService, workRequests, payments, cash),
	})
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Count   int64           `json:"count"`
}

func (ts *testServer) do(t *testing.T, method, path string, userID uint, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[userID])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q", method, path, w.Body.String())
		}
	}
	return w.Code, env
}

func decode(t *testing.T, raw json.RawMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestWorkRequestFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/work-requests", ownerID, gin.H{
		"title": "Mobile app QA", "category": "qa", "reward_amount": 50000,
	})
	if code != http.StatusCreated {
		t.Fatalf("create: status %d (%s)", code, env.Error)
	}
	var wr models.WorkRequest
	decode(t, env.Data, &wr)
	base := "/api/work-requests/" + wr.ID.String()

	code, _ = ts.do(t, http.MethodPost, "/api/admin/work-requests/"+wr.ID.String()+"/approve", ownerID, nil)
	if code != http.StatusForbidden {
		t.Errorf("non-admin approve: expected 403, got %d", code)
	}
	code, env = ts.do(t, http.MethodPost, "/api/admin/work-requests/"+wr.ID.String()+"/approve", adminID, nil)
	if code != http.StatusOK {
		t.Fatalf("approve: status %d (%s)", code, env.Error)
	}
	code, env = ts.do(t, http.MethodPost, "/api/admin/work-requests/"+wr.ID.String()+"/approve", adminID, nil)
	if code != http.StatusConflict || env.Code != "invalid_state" {
		t.Errorf("re-approve: expected 409 invalid_state, got %d %s", code, env.Code)
	}

	code, env = ts.do(t, http.MethodPost, base+"/proposals", ownerID, gin.H{"message": "mine"})
	if code != http.StatusForbidden {
		t.Errorf("own proposal: expected 403, got %d", code)
	}
	code, env = ts.do(t, http.MethodPost, base+"/proposals", expertID, gin.H{"message": "I test apps"})
	if code != http.StatusCreated {
		t.Fatalf("propose: status %d (%s)", code, env.Error)
	}
	var p models.Proposal
	decode(t, env.Data, &p)
	code, env = ts.do(t, http.MethodPost, base+"/proposals", expertID, gin.H{"message": "again"})
	if code != http.StatusConflict || env.Code != "conflict" {
		t.Errorf("duplicate proposal: expected 409 conflict, got %d %s", code, env.Code)
	}

	pbase := base + "/proposals/" + p.ID.String()
	if code, env = ts.do(t, http.MethodPost, pbase+"/accept", ownerID, nil); code != http.StatusOK {
		t.Fatalf("accept: status %d (%s)", code, env.Error)
	}
	if code, env = ts.do(t, http.MethodPost, pbase+"/request-completion", expertID, nil); code != http.StatusOK {
		t.Fatalf("request-completion: status %d (%s)", code, env.Error)
	}
	if code, env = ts.do(t, http.MethodPost, pbase+"/complete", ownerID, nil); code != http.StatusOK {
		t.Fatalf("complete: status %d (%s)", code, env.Error)
	}

	code, env = ts.do(t, http.MethodGet, base, 0, nil)
	if code != http.StatusOK {
		t.Fatalf("get: status %d", code)
	}
	var detail models.WorkRequestDetail
	decode(t, env.Data, &detail)
	if detail.WorkRequest.Status != models.WorkRequestStatusCompleted {
		t.Errorf("expected completed request, got %s", detail.WorkRequest.Status)
	}

	code, env = ts.do(t, http.MethodGet, "/api/cash", expertID, nil)
	if code != http.StatusOK {
		t.Fatalf("cash: status %d", code)
	}
	var summary models.CashSummary
	decode(t, env.Data, &summary)
	if summary.Balance != 45000 {
		t.Errorf("expected payout 45000, got %d", summary.Balance)
	}

	if code, _ = ts.do(t, http.MethodPost, pbase+"/review", ownerID, gin.H{"rating": 5}); code != http.StatusCreated {
		t.Errorf("review: expected 201, got %d", code)
	}
	if code, _ = ts.do(t, http.MethodPost, pbase+"/review", ownerID, gin.H{"rating": 9}); code != http.StatusBadRequest {
		t.Errorf("out-of-range rating: expected 400, got %d", code)
	}

	code, env = ts.do(t, http.MethodGet, "/api/notifications/unread-count", expertID, nil)
	if code != http.StatusOK || env.Count == 0 {
		t.Errorf("expected unread notifications for the expert, got %d (%d)", env.Count, code)
	}

	code, env = ts.do(t, http.MethodGet, "/api/admin/logs", adminID, nil)
	if code != http.StatusOK || env.Count != 1 {
		t.Errorf("expected one admin log entry, got %d (%d)", env.Count, code)
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   uint
		body   interface{}
		want   int
	}{
		{"no token", http.MethodPost, "/api/work-requests", 0, gin.H{"title": "x"}, http.StatusUnauthorized},
		{"missing fields", http.MethodPost, "/api/work-requests", ownerID, gin.H{"title": "x"}, http.StatusBadRequest},
		{"bad uuid", http.MethodGet, "/api/work-requests/not-a-uuid", 0, nil, http.StatusBadRequest},
		{"unknown request", http.MethodGet, "/api/work-requests/00000000-0000-0000-0000-000000000001", 0, nil, http.StatusNotFound},
		{"unknown notification", http.MethodPost, "/api/notifications/999/read", ownerID, nil, http.StatusNotFound},
		{"non-admin", http.MethodGet, "/api/admin/payments/pending", expertID, nil, http.StatusForbidden},
		{"negative reward", http.MethodPost, "/api/work-requests", ownerID, gin.H{"title": "x", "category": "y", "reward_amount": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := ts.do(t, tt.method, tt.path, tt.user, tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d (%s)", code, tt.want, env.Error)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{lifecycle.Fail(lifecycle.ErrAuthorization, "no"), http.StatusForbidden},
		{lifecycle.Fail(lifecycle.ErrInvalidState, "no"), http.StatusConflict},
		{lifecycle.Fail(lifecycle.ErrConflict, "no"), http.StatusConflict},
		{lifecycle.Fail(lifecycle.ErrValidation, "no"), http.StatusBadRequest},
		{lifecycle.Fail(lifecycle.ErrNotFound, "no"), http.StatusNotFound},
		{fmt.Errorf("load: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func openOverHTTP(t *testing.T, ts *testServer, reward int64) string {
	t.Helper()
	code, env := ts.do(t, http.MethodPost, "/api/work-requests", ownerID, gin.H{
		"title": "Landing page copy", "category": "writing", "reward_amount": reward,
	})
	if code != http.StatusCreated {
		t.Fatalf("create: status %d (%s)", code, env.Error)
	}
	var wr models.WorkRequest
	decode(t, env.Data, &wr)
	if code, env = ts.do(t, http.MethodPost, "/api/admin/work-requests/"+wr.ID.String()+"/approve", adminID, nil); code != http.StatusOK {
		t.Fatalf("approve: status %d (%s)", code, env.Error)
	}
	return "/api/work-requests/" + wr.ID.String()
}

func TestProposalContactVisibility(t *testing.T) {
	ts := newTestServer(t)
	base := openOverHTTP(t, ts, 20000)

	code, env := ts.do(t, http.MethodPost, base+"/proposals", expertID, gin.H{
		"message": "Native speaker", "contact_info": "expert@example.com",
	})
	if code != http.StatusCreated {
		t.Fatalf("propose: status %d (%s)", code, env.Error)
	}

	tests := []struct {
		name    string
		viewer  uint
		contact string
	}{
		{"anonymous", 0, ""},
		{"other user", adminID, ""},
		{"requester", ownerID, "expert@example.com"},
		{"proposal author", expertID, "expert@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := ts.do(t, http.MethodGet, base, tt.viewer, nil)
			if code != http.StatusOK {
				t.Fatalf("get: status %d", code)
			}
			var detail models.WorkRequestDetail
			decode(t, env.Data, &detail)
			if len(detail.Proposals) != 1 {
				t.Fatalf("expected one proposal, got %d", len(detail.Proposals))
			}
			if got := detail.Proposals[0].ContactInfo; got != tt.contact {
				t.Errorf("contact_info = %q, want %q", got, tt.contact)
			}
		})
	}
}

func TestWithdrawalOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	base := openOverHTTP(t, ts, 20000)

	code, env := ts.do(t, http.MethodPost, base+"/proposals", expertID, gin.H{"message": "on it"})
	if code != http.StatusCreated {
		t.Fatalf("propose: status %d (%s)", code, env.Error)
	}
	var p models.Proposal
	decode(t, env.Data, &p)
	pbase := base + "/proposals/" + p.ID.String()
	for _, step := range []struct {
		path string
		user uint
	}{{pbase + "/accept", ownerID}, {pbase + "/request-completion", expertID}, {pbase + "/complete", ownerID}} {
		if code, env = ts.do(t, http.MethodPost, step.path, step.user, nil); code != http.StatusOK {
			t.Fatalf("%s: status %d (%s)", step.path, code, env.Error)
		}
	}

	account := gin.H{"bank": "KB", "account_number": "123-45", "account_holder": "Expert"}
	account["amount"] = 20000
	code, env = ts.do(t, http.MethodPost, "/api/cash/withdrawals", expertID, account)
	if code != http.StatusBadRequest || env.Code != "validation" {
		t.Errorf("over-withdrawal: expected 400 validation, got %d %s", code, env.Code)
	}

	account["amount"] = 18000
	code, env = ts.do(t, http.MethodPost, "/api/cash/withdrawals", expertID, account)
	if code != http.StatusCreated {
		t.Fatalf("withdraw: status %d (%s)", code, env.Error)
	}
	var w models.Withdrawal
	decode(t, env.Data, &w)
	path := fmt.Sprintf("/api/admin/withdrawals/%d", w.ID)

	if code, _ = ts.do(t, http.MethodPost, path+"/approve", expertID, nil); code != http.StatusForbidden {
		t.Errorf("non-admin approve: expected 403, got %d", code)
	}
	code, env = ts.do(t, http.MethodGet, "/api/admin/withdrawals/pending", adminID, nil)
	if code != http.StatusOK || env.Count != 1 {
		t.Errorf("pending withdrawals: expected 1, got %d (status %d)", env.Count, code)
	}
	if code, env = ts.do(t, http.MethodPost, path+"/approve", adminID, nil); code != http.StatusOK {
		t.Fatalf("approve: status %d (%s)", code, env.Error)
	}

	code, env = ts.do(t, http.MethodGet, "/api/cash", expertID, nil)
	if code != http.StatusOK {
		t.Fatalf("cash: status %d", code)
	}
	var summary models.CashSummary
	decode(t, env.Data, &summary)
	if summary.Balance != 0 {
		t.Errorf("expected balance 0 after withdrawal, got %d", summary.Balance)
	}

	code, env = ts.do(t, http.MethodGet, "/api/admin/logs", adminID, nil)
	if code != http.StatusOK {
		t.Fatalf("logs: status %d", code)
	}
	var logs []models.AdminLog
	decode(t, env.Data, &logs)
	var approval *models.AdminLog
	for i := range logs {
		if logs[i].Action == services.AdminActionApproveWithdrawal {
			approval = &logs[i]
		}
	}
	if approval == nil {
		t.Fatalf("expected a withdrawal approval in the admin log, got %+v", logs)
	}
	if approval.Details["admin_handle"] != fmt.Sprintf("user%d", adminID) {
		t.Errorf("expected admin handle in audit details, got %v", approval.Details)
	}
}
