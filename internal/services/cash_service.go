package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/repository"

	"gorm.io/gorm"
)

// CashService reads the cash ledger and pays balances out through
// admin-reviewed withdrawals.
type CashService struct {
	repo     *repository.Repository
	notifier Notifier
}

func NewCashService(repo *repository.Repository, notifier Notifier) *CashService {
	return &CashService{repo: repo, notifier: notifier}
}

// Summary returns the user's balance and a page of ledger entries.
func (s *CashService) Summary(ctx context.Context, userID uint, limit, offset int) (*models.CashSummary, error) {
	balance, err := s.repo.CashBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	held, err := s.repo.PendingWithdrawalTotal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	txs, err := s.repo.ListCashTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return &models.CashSummary{Balance: balance, Available: balance - held, Transactions: txs}, nil
}

// RequestWithdrawal asks for part of the available balance to be paid out.
// Pending withdrawals hold their amount until they are decided.
func (s *CashService) RequestWithdrawal(ctx context.Context, actor lifecycle.Actor, in models.WithdrawalRequest) (*models.Withdrawal, error) {
	if in.Amount <= 0 {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "amount must be positive")
	}
	w := &models.Withdrawal{
		UserID:        actor.UserID,
		Amount:        in.Amount,
		Bank:          strings.TrimSpace(in.Bank),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		AccountHolder: strings.TrimSpace(in.AccountHolder),
		Status:        models.WithdrawalStatusPending,
	}
	if w.Bank == "" || w.AccountNumber == "" || w.AccountHolder == "" {
		return nil, lifecycle.Fail(lifecycle.ErrValidation, "bank account details are required")
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		balance, err := tx.CashBalance(ctx, actor.UserID)
		if err != nil {
			return err
		}
		held, err := tx.PendingWithdrawalTotal(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if in.Amount > balance-held {
			return lifecycle.Fail(lifecycle.ErrValidation, "amount exceeds available balance of %d", balance-held)
		}
		return tx.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Cash] Withdrawal %d of %d requested by user %d", w.ID, w.Amount, actor.UserID)
	publish(ctx, s.notifier, []lifecycle.Event{{
		Audience:     lifecycle.AudienceAdmin,
		ActorID:      &w.UserID,
		Type:         lifecycle.EventWithdrawalRequested,
		ResourceType: models.ReferenceTypeWithdrawal,
		ResourceID:   strconv.FormatUint(uint64(w.ID), 10),
		Payload:      map[string]interface{}{"amount": w.Amount},
	}})
	return w, nil
}

// ListWithdrawals returns the caller's withdrawals
func (s *CashService) ListWithdrawals(ctx context.Context, userID uint, limit, offset int) ([]models.Withdrawal, error) {
	return s.repo.ListUserWithdrawals(ctx, userID, limit, offset)
}

// ListPendingWithdrawals returns withdrawals awaiting a decision
func (s *CashService) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]models.Withdrawal, error) {
	return s.repo.ListPendingWithdrawals(ctx, limit, offset)
}

// ApproveWithdrawal records the transfer as sent. The ledger debit and the
// settlements it pays out are written in the same transaction as the
// status change.
func (s *CashService) ApproveWithdrawal(ctx context.Context, admin lifecycle.Actor, id uint) (*models.Withdrawal, error) {
	if !admin.IsAdmin {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "admin only")
	}

	var paid int
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		w, err := tx.GetWithdrawal(ctx, id)
		if err != nil {
			return err
		}
		if w.Status != models.WithdrawalStatusPending {
			return lifecycle.Fail(lifecycle.ErrInvalidState, "withdrawal %d was already decided", id)
		}
		balance, err := tx.CashBalance(ctx, w.UserID)
		if err != nil {
			return err
		}
		if balance < w.Amount {
			return lifecycle.Fail(lifecycle.ErrInvalidState, "balance %d no longer covers withdrawal %d", balance, id)
		}

		if err := tx.DecideWithdrawal(ctx, id, models.WithdrawalStatusApproved, admin.UserID, nil); err != nil {
			return err
		}
		debit := &models.CashTransaction{
			UserID:        w.UserID,
			Type:          models.CashTransactionWithdrawal,
			Amount:        -w.Amount,
			ReferenceType: models.ReferenceTypeWithdrawal,
			ReferenceID:   strconv.FormatUint(uint64(w.ID), 10),
			Description:   fmt.Sprintf("Withdrawal to %s %s", w.Bank, w.AccountNumber),
		}
		if err := tx.CreateCashTransaction(ctx, debit); err != nil {
			return fmt.Errorf("failed to debit cash: %w", err)
		}
		paid, err = tx.MarkSettlementsPaid(ctx, w.UserID)
		return err
	})
	if errors.Is(err, repository.ErrStaleSnapshot) {
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "withdrawal %d was already decided", id)
	}
	if err != nil {
		return nil, err
	}

	w, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("[Cash] Withdrawal %d approved by admin user %d (%d settlement(s) paid)", id, admin.UserID, paid)
	s.notifyDecision(ctx, admin, w, lifecycle.EventWithdrawalApproved, nil)
	return w, nil
}

// RejectWithdrawal releases the held amount without touching the ledger.
func (s *CashService) RejectWithdrawal(ctx context.Context, admin lifecycle.Actor, id uint, reason string) (*models.Withdrawal, error) {
	if !admin.IsAdmin {
		return nil, lifecycle.Fail(lifecycle.ErrAuthorization, "admin only")
	}

	err := s.repo.DecideWithdrawal(ctx, id, models.WithdrawalStatusRejected, admin.UserID, &reason)
	if errors.Is(err, repository.ErrStaleSnapshot) {
		if _, getErr := s.repo.GetWithdrawal(ctx, id); errors.Is(getErr, gorm.ErrRecordNotFound) {
			return nil, getErr
		}
		return nil, lifecycle.Fail(lifecycle.ErrInvalidState, "withdrawal %d was already decided", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update withdrawal: %w", err)
	}

	w, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("[Cash] Withdrawal %d rejected by admin user %d", id, admin.UserID)
	s.notifyDecision(ctx, admin, w, lifecycle.EventWithdrawalRejected, &reason)
	return w, nil
}

func (s *CashService) notifyDecision(ctx context.Context, admin lifecycle.Actor, w *models.Withdrawal, eventType string, reason *string) {
	payload := map[string]interface{}{"amount": w.Amount}
	if reason != nil {
		payload["reason"] = *reason
	}
	publish(ctx, s.notifier, []lifecycle.Event{{
		Audience:     lifecycle.AudienceUser,
		RecipientID:  w.UserID,
		ActorID:      &admin.UserID,
		Type:         eventType,
		ResourceType: models.ReferenceTypeWithdrawal,
		ResourceID:   strconv.FormatUint(uint64(w.ID), 10),
		Payload:      payload,
	}})
}
