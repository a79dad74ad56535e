package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-service/internal/events"
	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
)

type WithdrawalService struct {
	store    store.Store
	users    *UserService
	tokens   TokenSet
	notifier *events.Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewWithdrawalService(st store.Store, users *UserService, tokens TokenSet, notifier *events.Notifier, logger zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{
		store:    st,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestWithdrawal queues a pending withdrawal. Funds are checked but not
// reserved; the debit happens on approval.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID string, req *models.CreateWithdrawalRequest) (*models.Withdrawal, error) {
	token, ok := s.tokens.Normalize(req.Token)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported token %q", ErrInvalidRequest, req.Token)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	toAddress := strings.TrimSpace(req.ToAddress)
	if toAddress == "" {
		return nil, fmt.Errorf("%w: to_address is required", ErrInvalidRequest)
	}

	w := &models.Withdrawal{
		UserID:    userID,
		Token:     token,
		Amount:    amount,
		ToAddress: toAddress,
		Status:    string(models.WithdrawalStatusPending),
	}

	err = s.store.WithTx(ctx, func(repo store.Repository) error {
		balance, err := repo.LockBalance(ctx, userID, token)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no %s balance", ErrInsufficientFunds, token)
		}
		if err != nil {
			return err
		}
		if balance.Amount.LessThan(amount) {
			return fmt.Errorf("%w: %s < %s", ErrInsufficientFunds, balance.Amount, amount)
		}
		w.ID = 0
		w.RequestedAt = s.now().UTC()
		return repo.CreateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, wrapStoreError(s.logger, err, "failed to create withdrawal")
	}

	s.logger.Info().
		Int64("withdrawal_id", w.ID).
		Str("user_id", userID).
		Str("token", token).
		Str("amount", amount.String()).
		Msg("Withdrawal requested")

	s.notifier.Notify(ctx, events.WithdrawalSubject(userID), events.TypeWithdrawalCreated, w)
	return w, nil
}

// ApproveWithdrawal completes a pending withdrawal: status update, balance
// debit and ledger insert commit together or not at all.
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, callerID string, req *models.ApproveWithdrawalRequest) (*models.ApprovalResult, error) {
	if err := s.users.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	txHash := strings.TrimSpace(req.TxHash)
	if req.WithdrawalID <= 0 || txHash == "" {
		return nil, fmt.Errorf("%w: missing required fields: withdrawal_id, tx_hash", ErrInvalidRequest)
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = fmt.Sprintf("withdraw:%d", req.WithdrawalID)
	}

	var result *models.ApprovalResult
	err := s.store.WithTx(ctx, func(repo store.Repository) error {
		w, err := s.lockPending(ctx, repo, req.WithdrawalID)
		if err != nil {
			return err
		}

		balance, err := repo.LockBalance(ctx, w.UserID, w.Token)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: balance %s for user %s", ErrNotFound, w.Token, w.UserID)
		}
		if err != nil {
			return err
		}
		if balance.Amount.LessThan(w.Amount) {
			return fmt.Errorf("%w: %s < %s", ErrInsufficientFunds, balance.Amount, w.Amount)
		}

		now := s.now().UTC()
		moved, err := repo.CompleteWithdrawal(ctx, w.ID, txHash, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: withdrawal already processed", ErrInvalidState)
		}

		debited, err := repo.DecrementBalance(ctx, w.UserID, w.Token, w.Amount)
		if err != nil {
			return err
		}
		if !debited {
			return fmt.Errorf("%w: %s < %s", ErrInsufficientFunds, balance.Amount, w.Amount)
		}

		tx := &models.Transaction{
			UserID:         w.UserID,
			Type:           string(models.TransactionTypeWithdraw),
			Token:          w.Token,
			Amount:         w.Amount,
			Status:         string(models.TransactionStatusCompleted),
			TxHash:         txHash,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: idempotency key %q already used", ErrDuplicateRequest, key)
			}
			return err
		}

		w.Status = string(models.WithdrawalStatusCompleted)
		w.TxHash = &txHash
		w.ProcessedAt = &now
		result = &models.ApprovalResult{
			Withdrawal:  w,
			Transaction: tx,
			NewBalance:  balance.Amount.Sub(w.Amount),
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(s.logger, err, "failed to approve withdrawal")
	}

	w := result.Withdrawal
	s.logger.Info().
		Int64("withdrawal_id", w.ID).
		Str("user_id", w.UserID).
		Str("token", w.Token).
		Str("amount", w.Amount.String()).
		Str("new_balance", result.NewBalance.String()).
		Str("approved_by", callerID).
		Msg("Withdrawal approved")

	s.notifier.Notify(ctx, events.WithdrawalSubject(w.UserID), events.TypeWithdrawalUpdated, w)
	s.notifier.Notify(ctx, events.TransactionSubject(w.UserID), events.TypeTransactionCreated, result.Transaction)
	s.notifier.Notify(ctx, events.BalanceSubject(w.UserID), events.TypeBalanceUpdated, &models.Balance{
		UserID:    w.UserID,
		Token:     w.Token,
		Amount:    result.NewBalance,
		UpdatedAt: *w.ProcessedAt,
	})
	return result, nil
}

// RejectWithdrawal moves a pending withdrawal to failed. Balance and ledger
// are untouched.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, callerID string, req *models.RejectWithdrawalRequest) (*models.Withdrawal, error) {
	if err := s.users.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if req.WithdrawalID <= 0 || reason == "" {
		return nil, fmt.Errorf("%w: missing required fields: withdrawal_id, reason", ErrInvalidRequest)
	}

	var rejected *models.Withdrawal
	err := s.store.WithTx(ctx, func(repo store.Repository) error {
		w, err := s.lockPending(ctx, repo, req.WithdrawalID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		moved, err := repo.FailWithdrawal(ctx, w.ID, reason, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: withdrawal already processed", ErrInvalidState)
		}
		w.Status = string(models.WithdrawalStatusFailed)
		w.FailureReason = &reason
		w.ProcessedAt = &now
		rejected = w
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(s.logger, err, "failed to reject withdrawal")
	}

	s.logger.Info().
		Int64("withdrawal_id", rejected.ID).
		Str("user_id", rejected.UserID).
		Str("reason", reason).
		Str("rejected_by", callerID).
		Msg("Withdrawal rejected")

	s.notifier.Notify(ctx, events.WithdrawalSubject(rejected.UserID), events.TypeWithdrawalUpdated, rejected)
	return rejected, nil
}

func (s *WithdrawalService) GetUserWithdrawals(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	ws, err := s.store.ListWithdrawalsByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch withdrawals: %w", err)
	}
	if ws == nil {
		ws = []*models.Withdrawal{}
	}
	return ws, nil
}

// ListWithdrawals is the admin queue view. An empty status means pending.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, callerID, status string, limit int) ([]*models.Withdrawal, error) {
	if err := s.users.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if status == "" {
		status = string(models.WithdrawalStatusPending)
	}
	if !models.ValidWithdrawalStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}
	ws, err := s.store.ListWithdrawalsByStatus(ctx, status, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch withdrawals: %w", err)
	}
	if ws == nil {
		ws = []*models.Withdrawal{}
	}
	return ws, nil
}

func (s *WithdrawalService) lockPending(ctx context.Context, repo store.Repository, id int64) (*models.Withdrawal, error) {
	w, err := repo.LockWithdrawal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: withdrawal %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if w.Status != string(models.WithdrawalStatusPending) {
		return nil, fmt.Errorf("%w: withdrawal already %s", ErrInvalidState, w.Status)
	}
	return w, nil
}
