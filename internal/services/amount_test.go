package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"integer":       "5",
		"fraction":      "0.25",
		"smallest unit": "0.000000000000000001",
		"largest value": "99999999999999999999.999999999999999999",
		"exponent form": "1.5e3",
	}
	for name, raw := range valid {
		t.Run(name, func(t *testing.T) {
			got, err := parseAmount(json.Number(raw))
			require.NoError(t, err)
			requireDecimal(t, raw, got)
		})
	}

	invalid := map[string]string{
		"empty":             "",
		"zero":              "0",
		"negative":          "-1",
		"garbage":           "1.2.3",
		"19 decimals":       "0.0000000000000000001",
		"tiny exponent":     "1e-400000000",
		"ten to the twenty": "100000000000000000000",
		"huge exponent":     "1e400000000",
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := parseAmount(json.Number(raw))
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
