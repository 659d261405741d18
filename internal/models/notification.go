package models

import (
	"time"
)

// Notification is an in-app inbox entry.
type Notification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RecipientID  uint       `gorm:"not null;index" json:"recipient_id"`
	ActorID      *uint      `json:"actor_id,omitempty"`
	Type         string     `gorm:"size:50;not null" json:"type"`
	ResourceType string     `gorm:"size:50" json:"resource_type"`
	ResourceID   string     `gorm:"size:64" json:"resource_id"`
	Payload      JSONB      `gorm:"type:jsonb" json:"payload"`
	LinkURL      string     `gorm:"size:500" json:"link_url"`
	ReadAt       *time.Time `gorm:"index" json:"read_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
