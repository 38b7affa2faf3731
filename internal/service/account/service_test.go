package account

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/catalog"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// memoryDB holds every fake table behind one lock. Its stores ignore the
// transaction handed to WithTx.
type memoryDB struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	txs       []domain.Transaction
	revenue   []domain.RevenueEntry
	readings  []domain.Reading
	failTxLog bool
}

func newMemoryDB() *memoryDB {
	return &memoryDB{users: make(map[uuid.UUID]*domain.User)}
}

type memoryUsers struct{ db *memoryDB }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Username == user.Username {
			return store.ErrUsernameExists
		}
	}
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	cp.PurchasedProducts = append([]string{}, u.PurchasedProducts...)
	return &cp, nil
}

func (m memoryUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.db.mu.Lock()
	var id uuid.UUID
	for _, u := range m.db.users {
		if u.Username == username {
			id = u.ID
		}
	}
	m.db.mu.Unlock()
	if id == uuid.Nil {
		return nil, store.ErrUserNotFound
	}
	return m.GetByID(ctx, id)
}

func (m memoryUsers) AddExperience(_ context.Context, id uuid.UUID, amount int) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	u.Experience += amount
	return u.Experience, nil
}

func (m memoryUsers) AdjustBalance(_ context.Context, id uuid.UUID, delta int) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	if u.Balance+delta < 0 {
		return 0, store.ErrInsufficientBalance
	}
	u.Balance += delta
	return u.Balance, nil
}

func (m memoryUsers) SetLanguage(_ context.Context, id uuid.UUID, lang string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.Language = lang
	return nil
}

func (m memoryUsers) AddPurchase(_ context.Context, id uuid.UUID, productID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	if u.Owns(productID) {
		return store.ErrPurchaseExists
	}
	u.PurchasedProducts = append(u.PurchasedProducts, productID)
	return nil
}

func (m memoryUsers) WithTx(*sql.Tx) store.UserStore { return m }

type memoryTransactions struct{ db *memoryDB }

func (m memoryTransactions) Create(_ context.Context, t *domain.Transaction) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failTxLog {
		return store.ErrInvalidEntity
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.db.txs = append(m.db.txs, *t)
	return nil
}

func (m memoryTransactions) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []domain.Transaction
	for i := len(m.db.txs) - 1; i >= 0; i-- {
		if m.db.txs[i].UserID == userID {
			out = append(out, m.db.txs[i])
		}
	}
	return out, nil
}

func (m memoryTransactions) WithTx(*sql.Tx) store.TransactionStore { return m }

type memoryRevenue struct{ db *memoryDB }

func (m memoryRevenue) Record(_ context.Context, e *domain.RevenueEntry) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e.CreatedAt = time.Now()
	m.db.revenue = append(m.db.revenue, *e)
	return nil
}

func (m memoryRevenue) Summary(_ context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var sum domain.RevenueSummary
	for _, e := range m.db.revenue {
		if (!from.IsZero() && e.CreatedAt.Before(from)) || (!to.IsZero() && e.CreatedAt.After(to)) {
			continue
		}
		switch e.Source {
		case domain.SourceAd:
			sum.AdCents += e.AmountCents
		case domain.SourcePayment:
			sum.PaymentCents += e.AmountCents
		}
		sum.TransactionCount++
	}
	sum.TotalCents = sum.AdCents + sum.PaymentCents
	return sum, nil
}

func (m memoryRevenue) WithTx(*sql.Tx) store.RevenueStore { return m }

type memoryReadings struct{ db *memoryDB }

func (m memoryReadings) Create(_ context.Context, r *domain.Reading) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[r.UserID]; !ok {
		return store.ErrUserNotFound
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.db.readings = append(m.db.readings, *r)
	return nil
}

func (m memoryReadings) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Reading, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []domain.Reading
	for _, r := range m.db.readings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func newTestService(t *testing.T) (*ServiceImpl, *memoryDB) {
	t.Helper()

	// RunInTransaction needs a real *sql.DB; the fakes ignore the tx itself.
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)

	mem := newMemoryDB()
	svc, err := NewService(Stores{
		Users:        memoryUsers{mem},
		Transactions: memoryTransactions{mem},
		Revenue:      memoryRevenue{mem},
		Readings:     memoryReadings{mem},
	}, cat, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc, mem
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(Stores{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestCreateUserIsIdempotentByUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateUser(ctx, "  seeker ")
	require.NoError(t, err)
	assert.Equal(t, "seeker", first.Username)
	assert.Equal(t, domain.DefaultLanguage, first.Language)

	second, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.CreateUser(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
}

func TestExperienceAndLevel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	snap, err := svc.AddExperience(ctx, user.ID, 499)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.LevelInfo.Level)

	snap, err = svc.AddExperience(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 500, snap.Experience)
	assert.Equal(t, 2, snap.LevelInfo.Level)

	level, err := svc.Level(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, level)

	_, err = svc.AddExperience(ctx, user.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Level(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestBalanceRecordsHistoryAndRevenue(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	balance, err := svc.AddBalance(ctx, user.ID, 10, domain.SourceAd)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	balance, err = svc.AddBalance(ctx, user.ID, 50, domain.SourcePayment)
	require.NoError(t, err)
	assert.Equal(t, 60, balance)

	balance, err = svc.AddBalance(ctx, user.ID, 5, domain.SourceReward)
	require.NoError(t, err)
	assert.Equal(t, 65, balance)

	balance, err = svc.DeductBalance(ctx, user.ID, 49, "Purchase premium-spreads")
	require.NoError(t, err)
	assert.Equal(t, 16, balance)

	_, err = svc.DeductBalance(ctx, user.ID, 17, "too much")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	txs, err := svc.Transactions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Equal(t, -49, txs[0].Amount)
	assert.Equal(t, domain.SourcePurchase, txs[0].Type)
	assert.Equal(t, "Added 10 coins from ad", txs[3].Description)

	sum, err := svc.RevenueSummary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.RevenueSummary{TotalCents: 501, AdCents: 1, PaymentCents: 500, TransactionCount: 2}, sum)
	assert.Len(t, mem.revenue, 2, "reward credits earn no revenue")
}

func TestBalanceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	_, err = svc.AddBalance(ctx, user.ID, 0, domain.SourceAd)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.AddBalance(ctx, user.ID, 5, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.DeductBalance(ctx, user.ID, -1, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.AddBalance(ctx, uuid.New(), 5, domain.SourceAd)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestAddBalanceFailsWhenHistoryCannotBeWritten(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	mem.failTxLog = true
	_, err = svc.AddBalance(ctx, user.ID, 5, domain.SourceAd)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestRecordPurchase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	updated, err := svc.RecordPurchase(ctx, user.ID, "premium-cards")
	require.NoError(t, err)
	assert.Equal(t, []string{"premium-cards"}, updated.PurchasedProducts)
	assert.Zero(t, updated.Balance, "recording a purchase does not debit")

	_, err = svc.RecordPurchase(ctx, user.ID, "premium-cards")
	assert.ErrorIs(t, err, domain.ErrAlreadyOwned)

	_, err = svc.RecordPurchase(ctx, user.ID, "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)

	_, err = svc.RecordPurchase(ctx, uuid.New(), "premium-spreads")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	assert.Len(t, svc.Products(), 2)
}

func TestLanguage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	lang, err := svc.SetLanguage(ctx, user.ID, "zh-CN")
	require.NoError(t, err)
	assert.Equal(t, "zh", lang)

	_, err = svc.SetLanguage(ctx, user.ID, "fr")
	assert.ErrorIs(t, err, domain.ErrInvalidLanguage)

	_, err = svc.SetLanguage(ctx, uuid.New(), "en")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestReadings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "seeker")
	require.NoError(t, err)

	cards := []domain.ReadingCard{{Position: 0, CardID: 12, Orientation: domain.Reversed}}
	reading, err := svc.SaveReading(ctx, user.ID, "single", cards)
	require.NoError(t, err)
	assert.Equal(t, "single", reading.SpreadType)

	list, err := svc.Readings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cards, list[0].Cards)

	tests := []struct {
		name   string
		spread string
		cards  []domain.ReadingCard
	}{
		{"missing spread", "", cards},
		{"no cards", "single", nil},
		{"bad orientation", "single", []domain.ReadingCard{{Position: 0, CardID: 1, Orientation: "sideways"}}},
		{"negative position", "single", []domain.ReadingCard{{Position: -1, CardID: 1, Orientation: domain.Upright}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveReading(ctx, user.ID, tt.spread, tt.cards)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err = svc.Readings(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestRevenueSummaryRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	_, err := svc.RevenueSummary(context.Background(), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
