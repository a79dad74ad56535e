package services

import (
	"context"
	"fmt"

	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
)

type BalanceService struct {
	store  store.Store
	logger zerolog.Logger
}

func NewBalanceService(st store.Store, logger zerolog.Logger) *BalanceService {
	return &BalanceService{
		store:  st,
		logger: logger,
	}
}

func (s *BalanceService) GetBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	balances, err := s.store.ListBalances(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Error fetching balances")
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	if balances == nil {
		balances = []*models.Balance{}
	}
	return balances, nil
}
