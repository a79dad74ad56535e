package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID    string          `json:"user_id"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type DepositAddress struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
