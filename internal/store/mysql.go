package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL is the database/sql backed Store. Connections come from db.InitDB.
type MySQL struct {
	*mysqlRepo
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{mysqlRepo: &mysqlRepo{q: db}, db: db}
}

func (s *MySQL) WithTx(ctx context.Context, fn func(Repository) error) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", mysqlError(err))
		}
		defer tx.Rollback()

		if err := fn(&mysqlRepo{q: tx}); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", mysqlError(err))
		}
		return nil
	})
}

type mysqlRepo struct {
	q sqlQuerier
}

func mysqlError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
	}
	return err
}

func (r *mysqlRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", mysqlError(err))
	}
	return nil
}

func (r *mysqlRepo) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.q.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mysqlError(err)
	}
	return &u, nil
}

func (r *mysqlRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *mysqlRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

func (r *mysqlRepo) AddAdmin(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, "INSERT IGNORE INTO admins (user_id) VALUES (?)", userID)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", mysqlError(err))
	}
	return nil
}

func (r *mysqlRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, "SELECT user_id FROM admins WHERE user_id = ?", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", mysqlError(err))
	}
	return true, nil
}

func (r *mysqlRepo) getBalance(ctx context.Context, userID, token, suffix string) (*models.Balance, error) {
	var b models.Balance
	err := r.q.QueryRowContext(ctx,
		"SELECT user_id, token, amount, updated_at FROM balances WHERE user_id = ? AND token = ?"+suffix,
		userID, token,
	).Scan(&b.UserID, &b.Token, &b.Amount, &b.UpdatedAt)
	if err != nil {
		return nil, mysqlError(err)
	}
	return &b, nil
}

func (r *mysqlRepo) GetBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	return r.getBalance(ctx, userID, token, "")
}

func (r *mysqlRepo) LockBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	return r.getBalance(ctx, userID, token, " FOR UPDATE")
}

func (r *mysqlRepo) ListBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT user_id, token, amount, updated_at FROM balances WHERE user_id = ? ORDER BY token",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", mysqlError(err))
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.UserID, &b.Token, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning balance: %w", err)
		}
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

func (r *mysqlRepo) IncrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO balances (user_id, token, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE amount = amount + VALUES(amount), updated_at = VALUES(updated_at)
	`, userID, token, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment balance: %w", mysqlError(err))
	}
	return nil
}

func (r *mysqlRepo) DecrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE balances SET amount = amount - ?, updated_at = ?
		WHERE user_id = ? AND token = ? AND amount >= ?
	`, amount, time.Now().UTC(), userID, token, amount)
	if err != nil {
		return false, fmt.Errorf("failed to decrement balance: %w", mysqlError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const withdrawalColumns = "id, user_id, token, amount, to_address, status, tx_hash, failure_reason, requested_at, processed_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var (
		w           models.Withdrawal
		txHash      sql.NullString
		reason      sql.NullString
		processedAt sql.NullTime
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Token, &w.Amount, &w.ToAddress, &w.Status,
		&txHash, &reason, &w.RequestedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if txHash.Valid {
		w.TxHash = &txHash.String
	}
	if reason.Valid {
		w.FailureReason = &reason.String
	}
	if processedAt.Valid {
		w.ProcessedAt = &processedAt.Time
	}
	return &w, nil
}

func (r *mysqlRepo) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO withdrawals (user_id, token, amount, to_address, status, requested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.UserID, w.Token, w.Amount, w.ToAddress, w.Status, w.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", mysqlError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get withdrawal ID: %w", err)
	}
	w.ID = id
	return nil
}

func (r *mysqlRepo) getWithdrawal(ctx context.Context, id int64, suffix string) (*models.Withdrawal, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+withdrawalColumns+" FROM withdrawals WHERE id = ?"+suffix, id)
	w, err := scanMySQLWithdrawal(row)
	if err != nil {
		return nil, mysqlError(err)
	}
	return w, nil
}

func (r *mysqlRepo) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return r.getWithdrawal(ctx, id, "")
}

func (r *mysqlRepo) LockWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return r.getWithdrawal(ctx, id, " FOR UPDATE")
}

func (r *mysqlRepo) listWithdrawals(ctx context.Context, where string, arg any, limit int) ([]*models.Withdrawal, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawals WHERE "+where+" ORDER BY id DESC LIMIT ?",
		arg, rowLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", mysqlError(err))
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanMySQLWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (r *mysqlRepo) ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	return r.listWithdrawals(ctx, "user_id = ?", userID, limit)
}

func (r *mysqlRepo) ListWithdrawalsByStatus(ctx context.Context, status string, limit int) ([]*models.Withdrawal, error) {
	return r.listWithdrawals(ctx, "status = ?", status, limit)
}

func (r *mysqlRepo) CompleteWithdrawal(ctx context.Context, id int64, txHash string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE withdrawals SET status = ?, tx_hash = ?, processed_at = ? WHERE id = ? AND status = ?",
		models.WithdrawalStatusCompleted, txHash, at, id, models.WithdrawalStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete withdrawal: %w", mysqlError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mysqlRepo) FailWithdrawal(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE withdrawals SET status = ?, failure_reason = ?, processed_at = ? WHERE id = ? AND status = ?",
		models.WithdrawalStatusFailed, reason, at, id, models.WithdrawalStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail withdrawal: %w", mysqlError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mysqlRepo) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (user_id, type, token, amount, status, tx_hash, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.UserID, t.Type, t.Token, t.Amount, t.Status, t.TxHash, t.IdempotencyKey, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", mysqlError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction ID: %w", err)
	}
	t.ID = id
	return nil
}

func (r *mysqlRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, type, token, amount, status, tx_hash, idempotency_key, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, rowLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", mysqlError(err))
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Token, &t.Amount, &t.Status,
			&t.TxHash, &t.IdempotencyKey, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

func (r *mysqlRepo) GetDepositAddress(ctx context.Context, userID, token string) (*models.DepositAddress, error) {
	var a models.DepositAddress
	err := r.q.QueryRowContext(ctx,
		"SELECT id, user_id, token, address, created_at FROM deposit_addresses WHERE user_id = ? AND token = ?",
		userID, token,
	).Scan(&a.ID, &a.UserID, &a.Token, &a.Address, &a.CreatedAt)
	if err != nil {
		return nil, mysqlError(err)
	}
	return &a, nil
}

func (r *mysqlRepo) CreateDepositAddress(ctx context.Context, a *models.DepositAddress) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO deposit_addresses (user_id, token, address, created_at) VALUES (?, ?, ?, ?)",
		a.UserID, a.Token, a.Address, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deposit address: %w", mysqlError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get deposit address ID: %w", err)
	}
	a.ID = id
	return nil
}
