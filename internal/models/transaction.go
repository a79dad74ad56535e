package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	Type           string          `json:"type"`
	Token          string          `json:"token"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	TxHash         string          `json:"tx_hash"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeTransfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// CreditDepositRequest accepts amount as either a JSON string or number.
type CreditDepositRequest struct {
	TargetUserID   string      `json:"target_user_id"`
	Token          string      `json:"token"`
	Amount         json.Number `json:"amount"`
	TxHash         string      `json:"tx_hash"`
	IdempotencyKey string      `json:"idempotency_key"`
}
