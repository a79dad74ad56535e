package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// InitDB opens a MySQL pool. parseTime and UTC location are forced because
// the stores scan DATETIME columns straight into time.Time.
func InitDB(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is not responding: %w", err)
	}

	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id CHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			user_id CHAR(36) PRIMARY KEY,
			created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			user_id CHAR(36) NOT NULL,
			token VARCHAR(16) NOT NULL,
			amount DECIMAL(38,18) NOT NULL DEFAULT 0,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (user_id, token),
			CONSTRAINT chk_balances_amount CHECK (amount >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawals (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id CHAR(36) NOT NULL,
			token VARCHAR(16) NOT NULL,
			amount DECIMAL(38,18) NOT NULL,
			to_address VARCHAR(128) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			tx_hash VARCHAR(128) NULL,
			failure_reason VARCHAR(255) NULL,
			requested_at DATETIME(6) NOT NULL,
			processed_at DATETIME(6) NULL,
			INDEX idx_withdrawals_user_id (user_id),
			INDEX idx_withdrawals_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id CHAR(36) NOT NULL,
			type VARCHAR(16) NOT NULL,
			token VARCHAR(16) NOT NULL,
			amount DECIMAL(38,18) NOT NULL,
			status VARCHAR(16) NOT NULL,
			tx_hash VARCHAR(128) NOT NULL,
			idempotency_key VARCHAR(191) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_transactions_idempotency_key (idempotency_key),
			INDEX idx_transactions_user_created (user_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS deposit_addresses (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id CHAR(36) NOT NULL,
			token VARCHAR(16) NOT NULL,
			address VARCHAR(128) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			UNIQUE KEY uq_deposit_addresses_user_token (user_id, token)
		)`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
