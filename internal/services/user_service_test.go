package services

import (
	"context"
	"testing"
	"time"

	"wallet-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, &models.RegisterRequest{Email: " Alice@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err = env.users.Register(ctx, &models.RegisterRequest{Email: "alice@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := env.users.Authenticate(ctx, &models.LoginRequest{Email: "ALICE@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = env.users.Authenticate(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.users.Authenticate(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, &models.RegisterRequest{Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.users.Register(ctx, &models.RegisterRequest{Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRegisterBootstrapsAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root, err := env.users.Register(ctx, &models.RegisterRequest{Email: "root@example.com", Password: "super-secret"})
	require.NoError(t, err)
	assert.True(t, root.IsAdmin)
	require.NoError(t, env.users.RequireAdmin(ctx, root.ID))

	fetched, err := env.users.GetUserByID(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsAdmin)

	_, err = env.users.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.users.RequireAdmin(ctx, ""), ErrUnauthorized)
	assert.ErrorIs(t, env.users.RequireAdmin(ctx, userID), ErrForbidden)
	assert.NoError(t, env.users.RequireAdmin(ctx, adminID))
}

func TestAuthServiceTokens(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour, zerolog.Nop())
	user := &models.User{ID: "u-123", Email: "u@example.com"}

	token, err := auth.GenerateToken(user)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-123", claims.Subject)
	assert.Equal(t, "u@example.com", claims.Email)

	other := NewAuthService("other-secret", time.Hour, zerolog.Nop())
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthServiceRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour, zerolog.Nop())
	issued := time.Now().Add(-2 * time.Hour)
	auth.now = func() time.Time { return issued }
	token, err := auth.GenerateToken(&models.User{ID: "u-1"})
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReadPaths(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	balances, err := env.balances.GetBalances(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, balances)
	assert.Empty(t, balances)

	env.fund(t, userID, "ETH", "1")
	env.fund(t, userID, "BTC", "2")
	balances, err = env.balances.GetBalances(ctx, userID)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "BTC", balances[0].Token)

	for i := 0; i < 3; i++ {
		_, err := env.deposits.CreditDeposit(ctx, adminID, &models.CreditDepositRequest{
			TargetUserID: userID, Token: "ETH", Amount: "1", TxHash: string(rune('a' + i)),
		})
		require.NoError(t, err)
	}
	txs, err := env.txs.GetUserTransactions(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "c", txs[0].TxHash)
	assert.Equal(t, "b", txs[1].TxHash)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, MaxListLimit, clampLimit(10_000))
}
