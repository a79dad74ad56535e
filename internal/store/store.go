// Package store persists balances, withdrawals, the transaction ledger and
// the supporting account tables. MySQL, Postgres and in-memory backends
// implement the same Store interface.
package store

import (
	"context"
	"math"
	"time"

	"wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

// List methods treat a non-positive limit as unbounded.
type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddAdmin(ctx context.Context, userID string) error
	IsAdmin(ctx context.Context, userID string) (bool, error)

	GetBalance(ctx context.Context, userID, token string) (*models.Balance, error)
	// LockBalance reads the row and holds it until the enclosing transaction ends.
	LockBalance(ctx context.Context, userID, token string) (*models.Balance, error)
	ListBalances(ctx context.Context, userID string) ([]*models.Balance, error)
	// IncrementBalance adds amount to the row, creating it when absent.
	IncrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) error
	// DecrementBalance subtracts amount only if the row holds at least amount.
	// It reports whether a row was changed.
	DecrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) (bool, error)

	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
	LockWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
	ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, status string, limit int) ([]*models.Withdrawal, error)
	// CompleteWithdrawal and FailWithdrawal only move pending rows and report
	// whether the row moved.
	CompleteWithdrawal(ctx context.Context, id int64, txHash string, at time.Time) (bool, error)
	FailWithdrawal(ctx context.Context, id int64, reason string, at time.Time) (bool, error)

	// InsertTransaction returns ErrDuplicate when the idempotency key was used before.
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	GetDepositAddress(ctx context.Context, userID, token string) (*models.DepositAddress, error)
	CreateDepositAddress(ctx context.Context, a *models.DepositAddress) error
}

type Store interface {
	Repository
	// WithTx runs fn against a transaction-scoped Repository. All writes made
	// through it commit together or not at all.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

func rowLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}
