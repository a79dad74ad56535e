package services

import (
	"context"
	"fmt"

	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
)

type TransactionService struct {
	store  store.Store
	logger zerolog.Logger
}

func NewTransactionService(st store.Store, logger zerolog.Logger) *TransactionService {
	return &TransactionService{
		store:  st,
		logger: logger,
	}
}

// GetUserTransactions returns the newest transactions first. limit is
// clamped to (0, MaxListLimit], zero meaning DefaultListLimit.
func (s *TransactionService) GetUserTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID, clampLimit(limit))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Error fetching transactions")
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return txs, nil
}
