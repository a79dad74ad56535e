package config

import (
	"errors"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port            string
	DBDriver        string
	DBUrl           string
	JWTSecret       string
	TokenTTL        time.Duration
	AdminEmails     []string
	SupportedTokens []string
	RateLimit       float64
	RateBurst       int
	TrustedProxies  []string
	NATSUrl         string
	NATSToken       string
	LogLevel        string
	LogPretty       bool
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not found, using process environment")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		DBDriver:        strings.ToLower(getEnv("DB_DRIVER", DriverMySQL)),
		DBUrl:           os.Getenv("DB_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        getDuration("TOKEN_TTL", 24*time.Hour),
		AdminEmails:     getList("ADMIN_EMAILS", nil),
		SupportedTokens: getList("SUPPORTED_TOKENS", []string{"BTC", "ETH", "USDT", "USDC"}),
		RateLimit:       getFloat("RATE_LIMIT", 10),
		RateBurst:       getInt("RATE_BURST", 20),
		TrustedProxies:  getList("TRUSTED_PROXIES", nil),
		NATSUrl:         os.Getenv("NATS_URL"),
		NATSToken:       os.Getenv("NATS_TOKEN"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getBool("LOG_PRETTY", false),
	}
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
		if c.DBUrl == "" {
			return errors.New("DB_URL is required for driver " + c.DBDriver)
		}
	case DriverMemory:
	default:
		return errors.New("unknown DB_DRIVER " + c.DBDriver)
	}
	if c.JWTSecret == "" && c.DBDriver != DriverMemory {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.SupportedTokens) == 0 {
		return errors.New("SUPPORTED_TOKENS must not be empty")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	for _, p := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return errors.New("TRUSTED_PROXIES entry is not an IP or CIDR: " + p)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// getList splits a comma separated value and drops blanks.
func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
