package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Withdrawal struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	Token         string          `json:"token"`
	Amount        decimal.Decimal `json:"amount"`
	ToAddress     string          `json:"to_address"`
	Status        string          `json:"status"`
	TxHash        *string         `json:"tx_hash"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
	ProcessedAt   *time.Time      `json:"processed_at"`
}

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

func ValidWithdrawalStatus(s string) bool {
	switch WithdrawalStatus(s) {
	case WithdrawalStatusPending, WithdrawalStatusCompleted, WithdrawalStatusFailed:
		return true
	}
	return false
}

type CreateWithdrawalRequest struct {
	Token     string      `json:"token"`
	Amount    json.Number `json:"amount"`
	ToAddress string      `json:"to_address"`
}

type ApproveWithdrawalRequest struct {
	WithdrawalID   int64  `json:"withdrawal_id"`
	TxHash         string `json:"tx_hash"`
	IdempotencyKey string `json:"idempotency_key"`
}

type RejectWithdrawalRequest struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Reason       string `json:"reason"`
}

// ApprovalResult is what a successful approval leaves behind.
type ApprovalResult struct {
	Withdrawal  *Withdrawal
	Transaction *Transaction
	NewBalance  decimal.Decimal
}
