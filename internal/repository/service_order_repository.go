package repository

import (
	"context"
	"time"

	"outsourcing-market/internal/models"
)

// CreateServiceOrder creates a new service order
func (r *Repository) CreateServiceOrder(ctx context.Context, o *models.ServiceOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// GetServiceOrder retrieves a service order by ID
func (r *Repository) GetServiceOrder(ctx context.Context, id uint) (*models.ServiceOrder, error) {
	var o models.ServiceOrder
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// TransitionServiceOrder writes o's new status and timestamps if the stored
// status is still from.
func (r *Repository) TransitionServiceOrder(ctx context.Context, o *models.ServiceOrder, from models.ServiceOrderStatus) error {
	o.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(o).
		Where("status = ?", from).
		Select("status", "cancel_reason", "approved_at", "completed_at", "updated_at").
		Updates(o)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSnapshot
	}
	return nil
}

// ListUserServiceOrders lists orders where the user is buyer or seller.
func (r *Repository) ListUserServiceOrders(ctx context.Context, userID uint, limit, offset int) ([]models.ServiceOrder, error) {
	var orders []models.ServiceOrder
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateSettlement records a settlement and credits the payee in the
// current transaction. Settling a reference twice returns
// ErrDuplicateSettlement.
func (r *Repository) CreateSettlement(ctx context.Context, s *models.Settlement, credit *models.CashTransaction) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateSettlement
		}
		return err
	}
	if credit == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(credit).Error
}

// ListSettlements lists settlements in id order, for reconciliation.
func (r *Repository) ListSettlements(ctx context.Context, afterID uint, limit int) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}
