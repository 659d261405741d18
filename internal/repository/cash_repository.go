package repository

import (
	"context"

	"outsourcing-market/internal/models"
)

// CashBalance sums a user's ledger.
func (r *Repository) CashBalance(ctx context.Context, userID uint) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.CashTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

// ListCashTransactions lists a user's ledger entries, newest first.
func (r *Repository) ListCashTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.CashTransaction, error) {
	var txs []models.CashTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// CreateReview creates a review. A second review of the same proposal
// returns ErrDuplicate.
func (r *Repository) CreateReview(ctx context.Context, review *models.WorkRequestReview) error {
	err := r.db.WithContext(ctx).Create(review).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ExpertRating aggregates an expert's review scores.
func (r *Repository) ExpertRating(ctx context.Context, expertID uint) (*models.ExpertRating, error) {
	var row struct {
		Average     float64
		ReviewCount int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.WorkRequestReview{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS review_count").
		Where("expert_id = ?", expertID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &models.ExpertRating{ExpertID: expertID, Average: row.Average, ReviewCount: row.ReviewCount}, nil
}
