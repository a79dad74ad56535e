package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the pgx backed Store. Amounts travel as text and are cast to
// numeric in SQL so no precision is lost on either side.
type Postgres struct {
	*pgRepo
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pgRepo: &pgRepo{q: pool}, pool: pool}
}

func (s *Postgres) WithTx(ctx context.Context, fn func(Repository) error) error {
	return withRetry(ctx, func() error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", pgError(err))
		}
		defer func() {
			_ = tx.Rollback(ctx)
		}()

		if err := fn(&pgRepo{q: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", pgError(err))
		}
		return nil
	})
}

type pgRepo struct {
	q pgQuerier
}

func pgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
	}
	return err
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric value %q: %w", raw, err)
	}
	return d, nil
}

func (r *pgRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)",
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", pgError(err))
	}
	return nil
}

func (r *pgRepo) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, pgError(err)
	}
	return &u, nil
}

func (r *pgRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id = $1", id)
}

func (r *pgRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = $1", email)
}

func (r *pgRepo) AddAdmin(ctx context.Context, userID string) error {
	_, err := r.q.Exec(ctx, "INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", pgError(err))
	}
	return nil
}

func (r *pgRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", pgError(err))
	}
	return exists, nil
}

func scanPgBalance(row rowScanner) (*models.Balance, error) {
	var (
		b      models.Balance
		amount string
	)
	if err := row.Scan(&b.UserID, &b.Token, &amount, &b.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	b.Amount = d
	return &b, nil
}

func (r *pgRepo) getBalance(ctx context.Context, userID, token, suffix string) (*models.Balance, error) {
	row := r.q.QueryRow(ctx,
		"SELECT user_id, token, amount::text, updated_at FROM balances WHERE user_id = $1 AND token = $2"+suffix,
		userID, token,
	)
	b, err := scanPgBalance(row)
	if err != nil {
		return nil, pgError(err)
	}
	return b, nil
}

func (r *pgRepo) GetBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	return r.getBalance(ctx, userID, token, "")
}

func (r *pgRepo) LockBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	return r.getBalance(ctx, userID, token, " FOR UPDATE")
}

func (r *pgRepo) ListBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	rows, err := r.q.Query(ctx,
		"SELECT user_id, token, amount::text, updated_at FROM balances WHERE user_id = $1 ORDER BY token",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", pgError(err))
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		b, err := scanPgBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *pgRepo) IncrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO balances (user_id, token, amount, updated_at)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (user_id, token)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
	`, userID, token, amount.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment balance: %w", pgError(err))
	}
	return nil
}

func (r *pgRepo) DecrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE balances SET amount = amount - $1::numeric, updated_at = $2
		WHERE user_id = $3 AND token = $4 AND amount >= $1::numeric
	`, amount.String(), time.Now().UTC(), userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to decrement balance: %w", pgError(err))
	}
	return tag.RowsAffected() == 1, nil
}

const pgWithdrawalColumns = "id, user_id, token, amount::text, to_address, status, tx_hash, failure_reason, requested_at, processed_at"

func scanPgWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var (
		w      models.Withdrawal
		amount string
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Token, &amount, &w.ToAddress, &w.Status,
		&w.TxHash, &w.FailureReason, &w.RequestedAt, &w.ProcessedAt)
	if err != nil {
		return nil, err
	}
	d, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	w.Amount = d
	return &w, nil
}

func (r *pgRepo) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO withdrawals (user_id, token, amount, to_address, status, requested_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		RETURNING id
	`, w.UserID, w.Token, w.Amount.String(), w.ToAddress, w.Status, w.RequestedAt).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", pgError(err))
	}
	return nil
}

func (r *pgRepo) getWithdrawal(ctx context.Context, id int64, suffix string) (*models.Withdrawal, error) {
	row := r.q.QueryRow(ctx, "SELECT "+pgWithdrawalColumns+" FROM withdrawals WHERE id = $1"+suffix, id)
	w, err := scanPgWithdrawal(row)
	if err != nil {
		return nil, pgError(err)
	}
	return w, nil
}

func (r *pgRepo) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return r.getWithdrawal(ctx, id, "")
}

func (r *pgRepo) LockWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return r.getWithdrawal(ctx, id, " FOR UPDATE")
}

func (r *pgRepo) listWithdrawals(ctx context.Context, where string, arg any, limit int) ([]*models.Withdrawal, error) {
	rows, err := r.q.Query(ctx,
		"SELECT "+pgWithdrawalColumns+" FROM withdrawals WHERE "+where+" ORDER BY id DESC LIMIT $2",
		arg, rowLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", pgError(err))
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanPgWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (r *pgRepo) ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	return r.listWithdrawals(ctx, "user_id = $1", userID, limit)
}

func (r *pgRepo) ListWithdrawalsByStatus(ctx context.Context, status string, limit int) ([]*models.Withdrawal, error) {
	return r.listWithdrawals(ctx, "status = $1", status, limit)
}

func (r *pgRepo) CompleteWithdrawal(ctx context.Context, id int64, txHash string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		"UPDATE withdrawals SET status = $1, tx_hash = $2, processed_at = $3 WHERE id = $4 AND status = $5",
		string(models.WithdrawalStatusCompleted), txHash, at, id, string(models.WithdrawalStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete withdrawal: %w", pgError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRepo) FailWithdrawal(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		"UPDATE withdrawals SET status = $1, failure_reason = $2, processed_at = $3 WHERE id = $4 AND status = $5",
		string(models.WithdrawalStatusFailed), reason, at, id, string(models.WithdrawalStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to fail withdrawal: %w", pgError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRepo) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, token, amount, status, tx_hash, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		RETURNING id
	`, t.UserID, t.Type, t.Token, t.Amount.String(), t.Status, t.TxHash, t.IdempotencyKey, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", pgError(err))
	}
	return nil
}

func (r *pgRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, type, token, amount::text, status, tx_hash, idempotency_key, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, rowLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", pgError(err))
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var (
			t      models.Transaction
			amount string
		)
		err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Token, &amount, &t.Status,
			&t.TxHash, &t.IdempotencyKey, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		if t.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

func (r *pgRepo) GetDepositAddress(ctx context.Context, userID, token string) (*models.DepositAddress, error) {
	var a models.DepositAddress
	err := r.q.QueryRow(ctx,
		"SELECT id, user_id, token, address, created_at FROM deposit_addresses WHERE user_id = $1 AND token = $2",
		userID, token,
	).Scan(&a.ID, &a.UserID, &a.Token, &a.Address, &a.CreatedAt)
	if err != nil {
		return nil, pgError(err)
	}
	return &a, nil
}

func (r *pgRepo) CreateDepositAddress(ctx context.Context, a *models.DepositAddress) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO deposit_addresses (user_id, token, address, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.UserID, a.Token, a.Address, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert deposit address: %w", pgError(err))
	}
	return nil
}
