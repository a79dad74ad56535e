package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"wallet-service/internal/events"
	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type DepositService struct {
	store    store.Store
	users    *UserService
	tokens   TokenSet
	notifier *events.Notifier
	logger   zerolog.Logger
	now      func() time.Time
	random   io.Reader
}

func NewDepositService(st store.Store, users *UserService, tokens TokenSet, notifier *events.Notifier, logger zerolog.Logger) *DepositService {
	return &DepositService{
		store:    st,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// CreditDeposit adds amount to the target balance, creating the row on first
// credit, and appends the deposit record in the same transaction.
func (s *DepositService) CreditDeposit(ctx context.Context, callerID string, req *models.CreditDepositRequest) (*models.Transaction, error) {
	if err := s.users.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(req.TargetUserID)
	txHash := strings.TrimSpace(req.TxHash)
	if userID == "" || strings.TrimSpace(req.Token) == "" || req.Amount == "" || txHash == "" {
		return nil, fmt.Errorf("%w: missing required fields: target_user_id, token, amount, tx_hash", ErrInvalidRequest)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	token, ok := s.tokens.Normalize(req.Token)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported token %q", ErrInvalidRequest, req.Token)
	}
	// Without a caller key every credit applies, even for a repeated tx_hash.
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = "deposit:" + uuid.NewString()
	}

	var (
		tx      *models.Transaction
		balance *models.Balance
	)
	err = s.store.WithTx(ctx, func(repo store.Repository) error {
		if err := repo.IncrementBalance(ctx, userID, token, amount); err != nil {
			return err
		}
		tx = &models.Transaction{
			UserID:         userID,
			Type:           string(models.TransactionTypeDeposit),
			Token:          token,
			Amount:         amount,
			Status:         string(models.TransactionStatusCompleted),
			TxHash:         txHash,
			IdempotencyKey: key,
			CreatedAt:      s.now().UTC(),
		}
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: idempotency key %q already used", ErrDuplicateRequest, key)
			}
			return err
		}
		var err error
		balance, err = repo.GetBalance(ctx, userID, token)
		return err
	})
	if err != nil {
		return nil, wrapStoreError(s.logger, err, "failed to credit deposit")
	}

	s.logger.Info().
		Int64("transaction_id", tx.ID).
		Str("user_id", userID).
		Str("token", token).
		Str("amount", amount.String()).
		Str("credited_by", callerID).
		Msg("Deposit credited")

	s.notifier.Notify(ctx, events.TransactionSubject(userID), events.TypeTransactionCreated, tx)
	s.notifier.Notify(ctx, events.BalanceSubject(userID), events.TypeBalanceUpdated, balance)
	return tx, nil
}

// GetDepositAddress returns the caller's address for token, creating it on
// first use. Losing a concurrent create re-reads the stored row.
func (s *DepositService) GetDepositAddress(ctx context.Context, userID, token string) (*models.DepositAddress, error) {
	token, ok := s.tokens.Normalize(token)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported token %q", ErrInvalidRequest, token)
	}

	addr, err := s.store.GetDepositAddress(ctx, userID, token)
	if err == nil {
		return addr, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch deposit address: %w", err)
	}

	generated, err := generateAddress(s.random, token)
	if err != nil {
		return nil, err
	}
	addr = &models.DepositAddress{
		UserID:    userID,
		Token:     token,
		Address:   generated,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.CreateDepositAddress(ctx, addr)
	if errors.Is(err, store.ErrDuplicate) {
		addr, err = s.store.GetDepositAddress(ctx, userID, token)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Error re-reading deposit address")
			return nil, fmt.Errorf("failed to fetch deposit address: %w", err)
		}
		return addr, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Error creating deposit address")
		return nil, fmt.Errorf("failed to create deposit address: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("token", token).Msg("Deposit address created")
	return addr, nil
}
