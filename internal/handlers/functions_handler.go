package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"wallet-service/internal/middleware"
	"wallet-service/internal/models"
	"wallet-service/internal/services"

	"github.com/rs/zerolog"
)

// FunctionsHandler serves the admin operations under /functions/v1. Every
// failure is a 400 with a single error message.
type FunctionsHandler struct {
	users       *services.UserService
	withdrawals *services.WithdrawalService
	deposits    *services.DepositService
	logger      zerolog.Logger
}

func NewFunctionsHandler(users *services.UserService, withdrawals *services.WithdrawalService, deposits *services.DepositService, logger zerolog.Logger) *FunctionsHandler {
	return &FunctionsHandler{
		users:       users,
		withdrawals: withdrawals,
		deposits:    deposits,
		logger:      logger,
	}
}

func setFunctionCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, idempotency-key")
}

func (h *FunctionsHandler) Options(w http.ResponseWriter, r *http.Request) {
	setFunctionCORS(w)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *FunctionsHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.GetUserID(r)
	var req models.ApproveWithdrawalRequest
	if !h.decode(w, r, callerID, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	result, err := h.withdrawals.ApproveWithdrawal(r.Context(), callerID, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.succeed(w, map[string]interface{}{
		"success":       true,
		"message":       "Withdrawal approved and processed",
		"withdrawal_id": result.Withdrawal.ID,
		"new_balance":   json.Number(result.NewBalance.String()),
	})
}

func (h *FunctionsHandler) CreditDeposit(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.GetUserID(r)
	var req models.CreditDepositRequest
	if !h.decode(w, r, callerID, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	if _, err := h.deposits.CreditDeposit(r.Context(), callerID, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	h.succeed(w, map[string]interface{}{
		"success": true,
		"message": "Deposit credited successfully",
	})
}

func (h *FunctionsHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	callerID, _ := middleware.GetUserID(r)
	var req models.RejectWithdrawalRequest
	if !h.decode(w, r, callerID, &req) {
		return
	}

	rejected, err := h.withdrawals.RejectWithdrawal(r.Context(), callerID, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.succeed(w, map[string]interface{}{
		"success":       true,
		"message":       "Withdrawal rejected",
		"withdrawal_id": rejected.ID,
	})
}

// decode reports a malformed body only after the caller has passed the
// admin check, so auth failures always win.
func (h *FunctionsHandler) decode(w http.ResponseWriter, r *http.Request, callerID string, dst interface{}) bool {
	err := decodeJSON(r, dst)
	if err == nil {
		return true
	}
	if authErr := h.users.RequireAdmin(r.Context(), callerID); authErr != nil {
		h.fail(w, r, authErr)
		return false
	}
	h.fail(w, r, fmt.Errorf("%w: malformed JSON body", services.ErrInvalidRequest))
	return false
}

func (h *FunctionsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	if !services.IsDomainError(err) {
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Admin function failed")
		msg = "internal server error"
	}
	setFunctionCORS(w)
	respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (h *FunctionsHandler) succeed(w http.ResponseWriter, payload interface{}) {
	setFunctionCORS(w)
	respondWithJSON(w, http.StatusOK, payload)
}
