package repository

import (
	"context"
	"errors"
	"strings"

	"outsourcing-market/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrStaleSnapshot means the row changed since it was read.
	ErrStaleSnapshot = errors.New("record was modified concurrently")
	// ErrDuplicate means a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrDuplicateSettlement means the reference was already settled.
	ErrDuplicateSettlement = errors.New("reference already settled")
	// ErrCouponExhausted means the coupon hit its global usage cap.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn against a Repository bound to a single database
// transaction. Returning an error rolls everything back.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// DB exposes the underlying handle for services that query directly.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// isDuplicateKey recognizes unique violations from postgres and both sqlite
// drivers, with or without gorm's error translation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}
