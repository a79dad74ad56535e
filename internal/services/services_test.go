package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"wallet-service/internal/events"
	"wallet-service/internal/models"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	adminID = "admin-1"
	userID  = "user-1"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	types    []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.types = append(p.types, ev.Type)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type testEnv struct {
	store       *store.Memory
	pub         *recordingPublisher
	users       *UserService
	auth        *AuthService
	balances    *BalanceService
	txs         *TransactionService
	withdrawals *WithdrawalService
	deposits    *DepositService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	pub := &recordingPublisher{}
	logger := zerolog.Nop()
	notifier := events.NewNotifier(pub, logger)
	tokens := NewTokenSet([]string{"BTC", "ETH", "USDT", "USDC"})
	users := NewUserService(st, logger, []string{"root@example.com"})

	env := &testEnv{
		store:       st,
		pub:         pub,
		users:       users,
		auth:        NewAuthService("test-secret", time.Hour, logger),
		balances:    NewBalanceService(st, logger),
		txs:         NewTransactionService(st, logger),
		withdrawals: NewWithdrawalService(st, users, tokens, notifier, logger),
		deposits:    NewDepositService(st, users, tokens, notifier, logger),
	}
	env.seedUser(t, adminID, "admin@example.com", true)
	env.seedUser(t, userID, "user@example.com", false)
	return env
}

func (e *testEnv) seedUser(t *testing.T, id, email string, admin bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.CreateUser(ctx, &models.User{ID: id, Email: email, PasswordHash: "x"}))
	if admin {
		require.NoError(t, e.store.AddAdmin(ctx, id))
	}
}

func (e *testEnv) fund(t *testing.T, user, token, amount string) {
	t.Helper()
	require.NoError(t, e.store.IncrementBalance(context.Background(), user, token, dec(amount)))
}

func (e *testEnv) pendingWithdrawal(t *testing.T, user, token, amount string) *models.Withdrawal {
	t.Helper()
	w := &models.Withdrawal{
		UserID:    user,
		Token:     token,
		Amount:    dec(amount),
		ToAddress: "bc1qdestination",
		Status:    string(models.WithdrawalStatusPending),
	}
	require.NoError(t, e.store.CreateWithdrawal(context.Background(), w))
	return w
}

func (e *testEnv) balance(t *testing.T, user, token string) decimal.Decimal {
	t.Helper()
	b, err := e.store.GetBalance(context.Background(), user, token)
	require.NoError(t, err)
	return b.Amount
}

func (e *testEnv) ledger(t *testing.T, user string) []*models.Transaction {
	t.Helper()
	txs, err := e.store.ListTransactions(context.Background(), user, 0)
	require.NoError(t, err)
	return txs
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
