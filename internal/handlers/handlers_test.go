package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wallet-service/internal/events"
	"wallet-service/internal/middleware"
	"wallet-service/internal/services"
	"wallet-service/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	*store.Memory
}

func (brokenStore) IsAdmin(context.Context, string) (bool, error) {
	return false, errors.New("dial tcp 10.0.0.5:3306: connection refused")
}

func TestRespondWithServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: bad", services.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
		{services.ErrNotFound, http.StatusNotFound, "not_found"},
		{services.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{services.ErrDuplicateRequest, http.StatusConflict, "duplicate_request"},
		{services.ErrConflict, http.StatusConflict, "conflict"},
		{errors.New("driver exploded"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), zerolog.Nop(), tc.err)
			assert.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
			assert.NotContains(t, body["message"], "driver exploded")
		})
	}
}

func TestFunctionsHideInternalErrors(t *testing.T) {
	st := brokenStore{store.NewMemory()}
	logger := zerolog.Nop()
	users := services.NewUserService(st, logger, nil)
	tokens := services.NewTokenSet([]string{"BTC"})
	notifier := events.NewNotifier(nil, logger)
	h := NewFunctionsHandler(users,
		services.NewWithdrawalService(st, users, tokens, notifier, logger),
		services.NewDepositService(st, users, tokens, notifier, logger),
		logger)

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/credit_deposit", strings.NewReader(`{}`))
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, "admin-1"))
	rec := httptest.NewRecorder()
	h.CreditDeposit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryLimit(t *testing.T) {
	assert.Equal(t, 25, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=25", nil)))
	assert.Equal(t, 0, queryLimit(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)))
	assert.Equal(t, 0, queryLimit(httptest.NewRequest(http.MethodGet, "/", nil)))
}
