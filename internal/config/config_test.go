package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Settlement.WorkRequestRate.String() != "0.1" {
		t.Errorf("expected default work request rate 0.1, got %s", cfg.Settlement.WorkRequestRate)
	}
	if cfg.Settlement.ServiceOrderRate.String() != "0.05" {
		t.Errorf("expected default service order rate 0.05, got %s", cfg.Settlement.ServiceOrderRate)
	}
	policy := cfg.Policy()
	if policy.AutoCompleteAfter != 7*24*time.Hour || policy.WarnBefore != 24*time.Hour {
		t.Errorf("unexpected policy: %+v", policy)
	}
	if cfg.Notify.ReminderInterval != 15*time.Minute {
		t.Errorf("unexpected reminder interval: %s", cfg.Notify.ReminderInterval)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsBadRate(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	t.Setenv("WORK_REQUEST_COMMISSION_RATE", "1.5")
	if _, err := Load(); err == nil {
		t.Error("expected error for rate above 1")
	}

	t.Setenv("WORK_REQUEST_COMMISSION_RATE", "ten percent")
	if _, err := Load(); err == nil {
		t.Error("expected error for unparsable rate")
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := "work_request_commission_rate: \"0.15\"\n" +
		"service_order_commission_rate: \"0.03\"\n" +
		"auto_complete_days: 5\n" +
		"auto_complete_warning_hours: 12\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rates := cfg.Rates()
	if rates.WorkRequest.String() != "0.15" || rates.ServiceOrder.String() != "0.03" {
		t.Errorf("unexpected rates: %s / %s", rates.WorkRequest, rates.ServiceOrder)
	}
	policy := cfg.Policy()
	if policy.AutoCompleteAfter != 5*24*time.Hour || policy.WarnBefore != 12*time.Hour {
		t.Errorf("unexpected policy: %+v", policy)
	}
}

func TestValidateWarningWindow(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Settlement.AutoCompleteDays = 1
	cfg.Settlement.WarningHours = 24
	if err := cfg.Validate(); err == nil {
		t.Error("expected warning window longer than the period to be rejected")
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "market",
	}}
	want := "host=db port=5432 user=u password=p dbname=market sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}

	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = "local.db"
	if got := cfg.GetDSN(); got != "local.db" {
		t.Errorf("GetDSN() = %q, want local.db", got)
	}
}
