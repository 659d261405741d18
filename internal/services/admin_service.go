package services

import (
	"fmt"
	"log"
	"sync"

	"outsourcing-market/internal/models"

	"gorm.io/gorm"
)

// Admin log actions
const (
	AdminActionApproveWorkRequest = "APPROVE_WORK_REQUEST"
	AdminActionRejectWorkRequest  = "REJECT_WORK_REQUEST"
	AdminActionConfirmPayment     = "CONFIRM_PAYMENT"
	AdminActionRejectPayment      = "REJECT_PAYMENT"
	AdminActionApproveWithdrawal  = "APPROVE_WITHDRAWAL"
	AdminActionRejectWithdrawal   = "REJECT_WITHDRAWAL"
	AdminActionPromoteUser        = "PROMOTE_USER"
)

type AdminService struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		db: db,
	}
}

// IsAdmin checks if a user is an admin
func (s *AdminService) IsAdmin(userID uint) bool {
	var admin models.AdminUser
	result := s.db.Where("user_id = ?", userID).First(&admin)
	return result.Error == nil
}

// GetAdminByUserID gets admin by user ID
func (s *AdminService) GetAdminByUserID(userID uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.Where("user_id = ?", userID).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// PromoteUserToAdmin promotes a user to admin. promotedByAdminID is zero
// when run from the command line.
func (s *AdminService) PromoteUserToAdmin(userID uint, role string, promotedByAdminID uint) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role != models.AdminRoleSuperAdmin && role != models.AdminRoleModerator {
		return nil, fmt.Errorf("unknown admin role %q", role)
	}

	// Check if user exists
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	// Check if already admin
	var existing models.AdminUser
	if err := s.db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("user is already an admin")
	}

	adminUser := models.AdminUser{
		UserID: userID,
		Role:   role,
	}

	if err := s.db.Create(&adminUser).Error; err != nil {
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}

	if promotedByAdminID != 0 {
		s.LogAdminAction(promotedByAdminID, AdminActionPromoteUser, "USER", fmt.Sprint(userID), map[string]interface{}{
			"role": role,
		})
	}

	log.Printf("User %d promoted to %s", userID, role)
	return &adminUser, nil
}

// LogAdminAction logs an admin action. Failures are logged, never returned:
// the audited action has already happened.
func (s *AdminService) LogAdminAction(adminUserID uint, action string, resourceType string,
	resourceID string, details map[string]interface{}) {

	admin, err := s.GetAdminByUserID(adminUserID)
	if err != nil {
		log.Printf("[Admin] Cannot log %s: user %d is not an admin: %v", action, adminUserID, err)
		return
	}

	adminLog := models.AdminLog{
		AdminID:      admin.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      models.JSONB(details),
	}

	if err := s.db.Create(&adminLog).Error; err != nil {
		log.Printf("[Admin] Failed to log %s on %s %s: %v", action, resourceType, resourceID, err)
	}
}

// GetAdminLogs returns admin activity logs
func (s *AdminService) GetAdminLogs(limit int, offset int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	if err := s.db.Preload("Admin").Preload("Admin.User").
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
