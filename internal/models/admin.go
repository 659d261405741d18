package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
	return json.Unmarshal(raw, j)
}

const (
	AdminRoleSuperAdmin = "SUPER_ADMIN"
	AdminRoleModerator  = "MODERATOR"
)

// AdminUser represents an admin user with special permissions
type AdminUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"size:20;not null" json:"role"` // SUPER_ADMIN, MODERATOR
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// AdminLog records admin actions for audit trail
type AdminLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AdminID      uint       `gorm:"not null;index" json:"admin_id"`
	Admin        *AdminUser `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
	Action       string     `gorm:"size:100;not null" json:"action"`
	ResourceType string     `gorm:"size:50" json:"resource_type"`
	ResourceID   string     `gorm:"size:64" json:"resource_id"`
	Details      JSONB      `gorm:"type:jsonb" json:"details"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (AdminLog) TableName() string {
	return "admin_logs"
}
