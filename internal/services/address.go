package services

import (
	"encoding/hex"
	"fmt"
	"io"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// generateAddress returns a placeholder in the chain's address shape:
// BTC gets "1" plus 34 base58 characters, everything else "0x" plus 40 hex.
func generateAddress(r io.Reader, token string) (string, error) {
	if token == "BTC" {
		return base58String(r, "1", 34)
	}
	buf := make([]byte, 20)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// base58String rejects bytes >= 232 so every symbol is equally likely.
func base58String(r io.Reader, prefix string, n int) (string, error) {
	out := make([]byte, 0, len(prefix)+n)
	out = append(out, prefix...)
	buf := make([]byte, n)
	for len(out) < cap(out) {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= 232 {
				continue
			}
			out = append(out, base58Alphabet[int(b)%len(base58Alphabet)])
			if len(out) == cap(out) {
				break
			}
		}
	}
	return string(out), nil
}
