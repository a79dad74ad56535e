package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts must fit DECIMAL(38,18): at most 20 integer digits and 18
// fractional digits.
const (
	amountScale         = 18
	amountIntegerDigits = 20
)

// parseAmount accepts the JSON string or number form and requires a
// strictly positive value that the balance columns can hold exactly. Bounds
// are checked on digits and exponent so that no arithmetic is done on
// out-of-range input.
func parseAmount(raw json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidRequest)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: invalid amount", ErrInvalidRequest)
	}
	if amount.Exponent() < -amountScale {
		return decimal.Zero, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidRequest, amountScale)
	}
	if int64(amount.NumDigits())+int64(amount.Exponent()) > amountIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: amount is too large", ErrInvalidRequest)
	}
	return amount, nil
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
