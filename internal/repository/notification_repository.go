package repository

import (
	"context"
	"time"

	"outsourcing-market/internal/models"

	"gorm.io/gorm"
)

// CreateNotification creates a new inbox entry
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// ListNotifications lists a user's inbox, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnreadNotifications counts unread inbox entries.
func (r *Repository) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, err
}

// MarkNotificationRead marks one of the user's notifications read.
func (r *Repository) MarkNotificationRead(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", time.Now()))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user read.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// ListAdminUserIDs returns the user ids of every admin.
func (r *Repository) ListAdminUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.AdminUser{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}
