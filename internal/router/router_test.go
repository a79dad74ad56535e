package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-service/internal/config"
	"wallet-service/internal/events"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Config{
		DBDriver:        config.DriverMemory,
		JWTSecret:       "router-test-secret",
		TokenTTL:        time.Hour,
		AdminEmails:     []string{"admin@example.com"},
		SupportedTokens: []string{"BTC", "ETH", "USDT", "USDC"},
		RateLimit:       1000,
		RateBurst:       1000,
	}
	return SetupRouter(store.NewMemory(), cfg, events.NopPublisher{}, zerolog.Nop())
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type session struct {
	token  string
	userID string
}

func register(t *testing.T, h http.Handler, email string) session {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &resp)
	return session{token: resp.Token, userID: resp.User.ID}
}

func TestWithdrawalLifecycle(t *testing.T) {
	h := newTestServer(t)
	admin := register(t, h, "admin@example.com")
	user := register(t, h, "user@example.com")

	rec := do(t, h, http.MethodPost, "/functions/v1/credit_deposit", admin.token, map[string]interface{}{
		"target_user_id": user.userID, "token": "BTC", "amount": "1.0", "tx_hash": "dep-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var credited map[string]interface{}
	decode(t, rec, &credited)
	assert.Equal(t, true, credited["success"])
	assert.Equal(t, "Deposit credited successfully", credited["message"])
	assert.NotContains(t, credited, "new_balance")

	rec = do(t, h, http.MethodPost, "/api/v1/withdrawals", user.token, map[string]interface{}{
		"token": "BTC", "amount": 0.5, "to_address": "1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var withdrawal struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &withdrawal)
	assert.Equal(t, "pending", withdrawal.Status)

	rec = do(t, h, http.MethodGet, "/api/v1/admin/withdrawals?status=pending", admin.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []map[string]interface{}
	decode(t, rec, &queue)
	require.Len(t, queue, 1)

	approve := map[string]interface{}{"withdrawal_id": withdrawal.ID, "tx_hash": "abc"}
	rec = do(t, h, http.MethodPost, "/functions/v1/approve_withdrawal", admin.token, approve)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var approved struct {
		Success      bool    `json:"success"`
		Message      string  `json:"message"`
		WithdrawalID int64   `json:"withdrawal_id"`
		NewBalance   float64 `json:"new_balance"`
	}
	decode(t, rec, &approved)
	assert.True(t, approved.Success)
	assert.Equal(t, "Withdrawal approved and processed", approved.Message)
	assert.Equal(t, withdrawal.ID, approved.WithdrawalID)
	assert.Equal(t, 0.5, approved.NewBalance)

	rec = do(t, h, http.MethodPost, "/functions/v1/approve_withdrawal", admin.token, approve)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var failed map[string]string
	decode(t, rec, &failed)
	assert.Contains(t, failed["error"], "withdrawal already completed")

	rec = do(t, h, http.MethodGet, "/api/v1/balances", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balances []struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}
	decode(t, rec, &balances)
	require.Len(t, balances, 1)
	assert.Equal(t, "BTC", balances[0].Token)
	assert.Equal(t, "0.5", balances[0].Amount)

	rec = do(t, h, http.MethodGet, "/api/v1/transactions?limit=10", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []struct {
		Type   string `json:"type"`
		TxHash string `json:"tx_hash"`
	}
	decode(t, rec, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, "withdraw", txs[0].Type)
	assert.Equal(t, "abc", txs[0].TxHash)
	assert.Equal(t, "deposit", txs[1].Type)

	rec = do(t, h, http.MethodGet, "/api/v1/withdrawals", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []struct {
		Status string `json:"status"`
	}
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "completed", mine[0].Status)
}

func TestRejectWithdrawalEndpoint(t *testing.T) {
	h := newTestServer(t)
	admin := register(t, h, "admin@example.com")
	user := register(t, h, "user@example.com")

	rec := do(t, h, http.MethodPost, "/functions/v1/credit_deposit", admin.token, map[string]interface{}{
		"target_user_id": user.userID, "token": "ETH", "amount": 2, "tx_hash": "dep-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/withdrawals", user.token, map[string]interface{}{
		"token": "ETH", "amount": "1", "to_address": "0xabc",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var w struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &w)

	rec = do(t, h, http.MethodPost, "/functions/v1/reject_withdrawal", admin.token, map[string]interface{}{
		"withdrawal_id": w.ID, "reason": "sanctioned address",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/functions/v1/approve_withdrawal", admin.token, map[string]interface{}{
		"withdrawal_id": w.ID, "tx_hash": "abc",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "withdrawal already failed")
}

func TestFunctionPreconditionOrder(t *testing.T) {
	h := newTestServer(t)
	admin := register(t, h, "admin@example.com")
	user := register(t, h, "user@example.com")

	cases := []struct {
		name  string
		token string
		body  interface{}
		want  string
	}{
		{"anonymous empty body", "", nil, "unauthorized"},
		{"anonymous malformed body", "", "{", "unauthorized"},
		{"invalid token", "not-a-jwt", nil, "unauthorized"},
		{"non-admin", user.token, nil, "admin access required"},
		{"non-admin malformed body", user.token, "{", "admin access required"},
		{"admin empty body", admin.token, nil, "missing required fields"},
		{"admin malformed body", admin.token, "{", "malformed JSON body"},
		{"admin unknown withdrawal", admin.token, map[string]interface{}{"withdrawal_id": 4242, "tx_hash": "abc"}, "not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/functions/v1/approve_withdrawal", tc.token, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			decode(t, rec, &resp)
			assert.Contains(t, resp["error"], tc.want)
		})
	}
}

func TestCreditDepositIdempotencyHeader(t *testing.T) {
	h := newTestServer(t)
	admin := register(t, h, "admin@example.com")
	user := register(t, h, "user@example.com")

	send := func(txHash string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]interface{}{
			"target_user_id": user.userID, "token": "USDC", "amount": "10", "tx_hash": txHash,
		})
		req := httptest.NewRequest(http.MethodPost, "/functions/v1/credit_deposit", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+admin.token)
		req.Header.Set("Idempotency-Key", "invoice-77")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("h1").Code)
	rec := send("h2")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate request")

	rec = do(t, h, http.MethodGet, "/api/v1/balances", user.token, nil)
	assert.Contains(t, rec.Body.String(), `"amount":"10"`)
}

func TestFunctionOptions(t *testing.T) {
	h := newTestServer(t)

	for _, path := range []string{"/functions/v1/approve_withdrawal", "/functions/v1/credit_deposit"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestDashboardAuth(t *testing.T) {
	h := newTestServer(t)
	user := register(t, h, "user@example.com")

	rec := do(t, h, http.MethodGet, "/api/v1/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/admin/withdrawals", user.token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/auth/refresh", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	rec = do(t, h, http.MethodGet, "/api/v1/me", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]interface{}
	decode(t, rec, &me)
	assert.Equal(t, user.userID, me["id"])
	assert.Equal(t, false, me["is_admin"])
	assert.NotContains(t, me, "password_hash")
}

func TestDepositAddressEndpoint(t *testing.T) {
	h := newTestServer(t)
	user := register(t, h, "user@example.com")

	rec := do(t, h, http.MethodGet, "/api/v1/deposit-addresses/eth", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first struct {
		Token   string `json:"token"`
		Address string `json:"address"`
	}
	decode(t, rec, &first)
	assert.Equal(t, "ETH", first.Token)
	assert.True(t, strings.HasPrefix(first.Address, "0x"))

	rec = do(t, h, http.MethodGet, "/api/v1/deposit-addresses/ETH", user.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), first.Address)

	rec = do(t, h, http.MethodGet, "/api/v1/deposit-addresses/DOGE", user.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
