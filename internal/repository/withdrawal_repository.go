package repository

import (
	"context"
	"time"

	"outsourcing-market/internal/models"
)

// CreateWithdrawal creates a new withdrawal request
func (r *Repository) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

// GetWithdrawal retrieves a withdrawal by ID
func (r *Repository) GetWithdrawal(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// PendingWithdrawalTotal sums a user's withdrawals still waiting for review.
func (r *Repository) PendingWithdrawalTotal(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListUserWithdrawals lists a user's withdrawals, newest first.
func (r *Repository) ListUserWithdrawals(ctx context.Context, userID uint, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListPendingWithdrawals lists withdrawals waiting for an admin, oldest first.
func (r *Repository) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DecideWithdrawal moves a pending withdrawal to approved or rejected. It
// fails with ErrStaleSnapshot if the withdrawal was already decided.
func (r *Repository) DecideWithdrawal(ctx context.Context, id uint, status models.WithdrawalStatus, adminUserID uint, reason *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"processed_by": adminUserID,
		"processed_at": now,
		"updated_at":   now,
	}
	if reason != nil {
		updates["reject_reason"] = *reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSnapshot
	}
	return nil
}

// CreateCashTransaction appends an entry to a user's ledger.
func (r *Repository) CreateCashTransaction(ctx context.Context, tx *models.CashTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// MarkSettlementsPaid marks a payee's pending settlements paid, oldest
// first, for as long as their approved withdrawals cover the payouts. It
// returns how many settlements changed.
func (r *Repository) MarkSettlementsPaid(ctx context.Context, payeeID uint) (int, error) {
	db := r.db.WithContext(ctx)

	var withdrawn int64
	err := db.Model(&models.CashTransaction{}).
		Where("user_id = ? AND type = ?", payeeID, models.CashTransactionWithdrawal).
		Select("COALESCE(-SUM(amount), 0)").
		Scan(&withdrawn).Error
	if err != nil {
		return 0, err
	}

	var covered int64
	err = db.Model(&models.Settlement{}).
		Where("payee_id = ? AND status = ?", payeeID, models.SettlementStatusPaid).
		Select("COALESCE(SUM(payout_amount), 0)").
		Scan(&covered).Error
	if err != nil {
		return 0, err
	}

	var pending []models.Settlement
	err = db.Where("payee_id = ? AND status = ?", payeeID, models.SettlementStatusPending).
		Order("id ASC").
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	now := time.Now()
	marked := 0
	for _, s := range pending {
		if covered+s.PayoutAmount > withdrawn {
			break
		}
		err := db.Model(&models.Settlement{}).
			Where("id = ?", s.ID).
			Updates(map[string]interface{}{"status": models.SettlementStatusPaid, "paid_at": now}).Error
		if err != nil {
			return marked, err
		}
		covered += s.PayoutAmount
		marked++
	}
	return marked, nil
}
