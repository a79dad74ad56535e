package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

// Memory keeps everything in process. It backs DB_DRIVER=memory and the
// service tests. A single mutex serializes all access, so WithTx is
// trivially isolated; a failed fn restores the snapshot taken before it ran.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(m.state); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateUser(ctx, u)
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetUserByID(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetUserByEmail(ctx, email)
}

func (m *Memory) AddAdmin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AddAdmin(ctx, userID)
}

func (m *Memory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAdmin(ctx, userID)
}

func (m *Memory) GetBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetBalance(ctx, userID, token)
}

func (m *Memory) LockBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockBalance(ctx, userID, token)
}

func (m *Memory) ListBalances(ctx context.Context, userID string) ([]*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListBalances(ctx, userID)
}

func (m *Memory) IncrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IncrementBalance(ctx, userID, token, amount)
}

func (m *Memory) DecrementBalance(ctx context.Context, userID, token string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DecrementBalance(ctx, userID, token, amount)
}

func (m *Memory) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateWithdrawal(ctx, w)
}

func (m *Memory) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetWithdrawal(ctx, id)
}

func (m *Memory) LockWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockWithdrawal(ctx, id)
}

func (m *Memory) ListWithdrawalsByUser(ctx context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListWithdrawalsByUser(ctx, userID, limit)
}

func (m *Memory) ListWithdrawalsByStatus(ctx context.Context, status string, limit int) ([]*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListWithdrawalsByStatus(ctx, status, limit)
}

func (m *Memory) CompleteWithdrawal(ctx context.Context, id int64, txHash string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CompleteWithdrawal(ctx, id, txHash, at)
}

func (m *Memory) FailWithdrawal(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.FailWithdrawal(ctx, id, reason, at)
}

func (m *Memory) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertTransaction(ctx, t)
}

func (m *Memory) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListTransactions(ctx, userID, limit)
}

func (m *Memory) GetDepositAddress(ctx context.Context, userID, token string) (*models.DepositAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetDepositAddress(ctx, userID, token)
}

func (m *Memory) CreateDepositAddress(ctx context.Context, a *models.DepositAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateDepositAddress(ctx, a)
}

type holding struct {
	userID string
	token  string
}

// memState implements Repository without locking; callers hold Memory.mu.
type memState struct {
	users        map[string]models.User
	emails       map[string]string
	admins       map[string]bool
	balances     map[holding]models.Balance
	withdrawals  map[int64]models.Withdrawal
	transactions []models.Transaction
	keys         map[string]bool
	addresses    map[holding]models.DepositAddress

	lastWithdrawalID  int64
	lastTransactionID int64
	lastAddressID     int64
}

func newMemState() *memState {
	return &memState{
		users:       make(map[string]models.User),
		emails:      make(map[string]string),
		admins:      make(map[string]bool),
		balances:    make(map[holding]models.Balance),
		withdrawals: make(map[int64]models.Withdrawal),
		keys:        make(map[string]bool),
		addresses:   make(map[holding]models.DepositAddress),
	}
}

// clone copies the maps; the values are structs whose pointer fields are
// never written in place, so a shallow copy per entry is enough.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	c.transactions = append([]models.Transaction(nil), s.transactions...)
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	c.lastWithdrawalID = s.lastWithdrawalID
	c.lastTransactionID = s.lastTransactionID
	c.lastAddressID = s.lastAddressID
	return c
}

func (s *memState) CreateUser(_ context.Context, u *models.User) error {
	if _, ok := s.emails[u.Email]; ok {
		return ErrDuplicate
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	stored := *u
	stored.IsAdmin = false
	s.users[u.ID] = stored
	s.emails[u.Email] = u.ID
	return nil
}

func (s *memState) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memState) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := s.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *memState) AddAdmin(_ context.Context, userID string) error {
	s.admins[userID] = true
	return nil
}

func (s *memState) IsAdmin(_ context.Context, userID string) (bool, error) {
	return s.admins[userID], nil
}

func (s *memState) GetBalance(_ context.Context, userID, token string) (*models.Balance, error) {
	b, ok := s.balances[holding{userID, token}]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *memState) LockBalance(ctx context.Context, userID, token string) (*models.Balance, error) {
	return s.GetBalance(ctx, userID, token)
}

func (s *memState) ListBalances(_ context.Context, userID string) ([]*models.Balance, error) {
	var balances []*models.Balance
	for k, b := range s.balances {
		if k.userID != userID {
			continue
		}
		b := b
		balances = append(balances, &b)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Token < balances[j].Token })
	return balances, nil
}

func (s *memState) IncrementBalance(_ context.Context, userID, token string, amount decimal.Decimal) error {
	key := holding{userID, token}
	b, ok := s.balances[key]
	if !ok {
		b = models.Balance{UserID: userID, Token: token, Amount: decimal.Zero}
	}
	b.Amount = b.Amount.Add(amount)
	b.UpdatedAt = time.Now().UTC()
	s.balances[key] = b
	return nil
}

func (s *memState) DecrementBalance(_ context.Context, userID, token string, amount decimal.Decimal) (bool, error) {
	key := holding{userID, token}
	b, ok := s.balances[key]
	if !ok || b.Amount.LessThan(amount) {
		return false, nil
	}
	b.Amount = b.Amount.Sub(amount)
	b.UpdatedAt = time.Now().UTC()
	s.balances[key] = b
	return true, nil
}

func (s *memState) CreateWithdrawal(_ context.Context, w *models.Withdrawal) error {
	s.lastWithdrawalID++
	w.ID = s.lastWithdrawalID
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *memState) GetWithdrawal(_ context.Context, id int64) (*models.Withdrawal, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *memState) LockWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	return s.GetWithdrawal(ctx, id)
}

func (s *memState) listWithdrawals(match func(models.Withdrawal) bool, limit int) []*models.Withdrawal {
	var out []*models.Withdrawal
	for _, w := range s.withdrawals {
		if !match(w) {
			continue
		}
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memState) ListWithdrawalsByUser(_ context.Context, userID string, limit int) ([]*models.Withdrawal, error) {
	return s.listWithdrawals(func(w models.Withdrawal) bool { return w.UserID == userID }, limit), nil
}

func (s *memState) ListWithdrawalsByStatus(_ context.Context, status string, limit int) ([]*models.Withdrawal, error) {
	return s.listWithdrawals(func(w models.Withdrawal) bool { return w.Status == status }, limit), nil
}

func (s *memState) CompleteWithdrawal(_ context.Context, id int64, txHash string, at time.Time) (bool, error) {
	w, ok := s.withdrawals[id]
	if !ok || w.Status != string(models.WithdrawalStatusPending) {
		return false, nil
	}
	w.Status = string(models.WithdrawalStatusCompleted)
	w.TxHash = &txHash
	w.ProcessedAt = &at
	s.withdrawals[id] = w
	return true, nil
}

func (s *memState) FailWithdrawal(_ context.Context, id int64, reason string, at time.Time) (bool, error) {
	w, ok := s.withdrawals[id]
	if !ok || w.Status != string(models.WithdrawalStatusPending) {
		return false, nil
	}
	w.Status = string(models.WithdrawalStatusFailed)
	w.FailureReason = &reason
	w.ProcessedAt = &at
	s.withdrawals[id] = w
	return true, nil
}

func (s *memState) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if s.keys[t.IdempotencyKey] {
		return ErrDuplicate
	}
	s.lastTransactionID++
	t.ID = s.lastTransactionID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.keys[t.IdempotencyKey] = true
	s.transactions = append(s.transactions, *t)
	return nil
}

func (s *memState) ListTransactions(_ context.Context, userID string, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID != userID {
			continue
		}
		t := s.transactions[i]
		out = append(out, &t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memState) GetDepositAddress(_ context.Context, userID, token string) (*models.DepositAddress, error) {
	a, ok := s.addresses[holding{userID, token}]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *memState) CreateDepositAddress(_ context.Context, a *models.DepositAddress) error {
	key := holding{a.UserID, a.Token}
	if _, ok := s.addresses[key]; ok {
		return ErrDuplicate
	}
	s.lastAddressID++
	a.ID = s.lastAddressID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.addresses[key] = *a
	return nil
}
