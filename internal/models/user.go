package models

import (
	"time"
)

// User represents a marketplace member. The same account can post work
// requests (requester) and bid on other members' requests (expert).
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Handle    string    `gorm:"uniqueIndex;size:50;not null" json:"handle"`
	Name      string    `gorm:"size:100" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     *string   `gorm:"size:30" json:"phone,omitempty"`
	AvatarURL *string   `gorm:"size:500" json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// DisplayName returns the name shown in notifications, falling back to the handle.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Handle
}

// PublicProfile returns the part of a user shown to other users.
func (u *User) PublicProfile() *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Handle: u.Handle, Name: u.Name, AvatarURL: u.AvatarURL}
}
