package handlers

import (
	"net/http"

	"wallet-service/internal/middleware"
	"wallet-service/internal/models"
	"wallet-service/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// WalletHandler serves the dashboard's per-user reads and the withdrawal
// request form.
type WalletHandler struct {
	balances     *services.BalanceService
	transactions *services.TransactionService
	withdrawals  *services.WithdrawalService
	deposits     *services.DepositService
	logger       zerolog.Logger
}

func NewWalletHandler(balances *services.BalanceService, transactions *services.TransactionService,
	withdrawals *services.WithdrawalService, deposits *services.DepositService, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		balances:     balances,
		transactions: transactions,
		withdrawals:  withdrawals,
		deposits:     deposits,
		logger:       logger,
	}
}

func (h *WalletHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
	}
	return userID, ok
}

func (h *WalletHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	balances, err := h.balances.GetBalances(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balances)
}

func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	txs, err := h.transactions.GetUserTransactions(r.Context(), userID, queryLimit(r))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, txs)
}

func (h *WalletHandler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	ws, err := h.withdrawals.GetUserWithdrawals(r.Context(), userID, queryLimit(r))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ws)
}

func (h *WalletHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.CreateWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	withdrawal, err := h.withdrawals.RequestWithdrawal(r.Context(), userID, &req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, withdrawal)
}

func (h *WalletHandler) GetDepositAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	addr, err := h.deposits.GetDepositAddress(r.Context(), userID, mux.Vars(r)["token"])
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, addr)
}

// AdminListWithdrawals is the approval queue: ?status=pending|completed|failed.
func (h *WalletHandler) AdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	ws, err := h.withdrawals.ListWithdrawals(r.Context(), userID, r.URL.Query().Get("status"), queryLimit(r))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ws)
}
