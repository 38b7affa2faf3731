package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/phrazzld/arcana/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Credit(ctx context.Context, amount int, source string) error {
	return m.Called(ctx, amount, source).Error(0)
}

func (m *mockRemote) Debit(ctx context.Context, amount int, description string) error {
	return m.Called(ctx, amount, description).Error(0)
}

type memoryCache struct {
	mu      sync.Mutex
	balance int
	saved   bool
}

func (c *memoryCache) LoadBalance(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.saved {
		return 0, errors.New("not cached")
	}
	return c.balance, nil
}

func (c *memoryCache) SaveBalance(_ context.Context, balance int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance, c.saved = balance, true
	return nil
}

type recordingSyncer struct {
	mu        sync.Mutex
	tasks     []task.Task
	factories map[string]task.Factory
}

func (r *recordingSyncer) RegisterFactory(taskType string, f task.Factory) {
	if r.factories == nil {
		r.factories = make(map[string]task.Factory)
	}
	r.factories[taskType] = f
}

func (r *recordingSyncer) Submit(_ context.Context, t task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *recordingSyncer) WaitIdle(context.Context) error { return nil }

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) HandleEvent(_ context.Context, e *events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.Type)
	return nil
}

func (l *eventLog) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.types...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc    *ServiceImpl
	remote *mockRemote
	cache  *memoryCache
	syncer *recordingSyncer
	events *eventLog
}

func newFixture(t *testing.T, mode string, balance int) fixture {
	t.Helper()
	f := fixture{
		remote: &mockRemote{},
		cache:  &memoryCache{balance: balance, saved: true},
		syncer: &recordingSyncer{},
		events: &eventLog{},
	}
	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(f.events)

	svc, err := NewService(context.Background(), f.remote, f.cache, f.syncer, emitter, mode, testLogger())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewService(t *testing.T) {
	_, err := NewService(context.Background(), nil, nil, nil, nil, "", nil)
	assert.Error(t, err)

	_, err = NewService(context.Background(), &mockRemote{}, nil, nil, nil, "eventual", nil)
	assert.Error(t, err)

	svc, err := NewService(context.Background(), &mockRemote{}, &memoryCache{}, nil, nil, "", nil)
	require.NoError(t, err)
	assert.Zero(t, svc.Balance(), "empty cache starts at zero")

	f := newFixture(t, config.SyncModeOptimistic, 75)
	assert.Equal(t, 75, f.svc.Balance(), "balance restored from cache")
	assert.Contains(t, f.syncer.factories, SyncTaskType)
}

func TestAmountValidation(t *testing.T) {
	f := newFixture(t, config.SyncModeOptimistic, 10)
	ctx := context.Background()

	for _, amount := range []int{0, -5} {
		err := f.svc.AddBalance(ctx, amount, "ad")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		ok, err := f.svc.DeductBalance(ctx, amount, "x")
		assert.False(t, ok)
		assert.True(t, domain.IsValidation(err))
	}
	f.remote.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	f.remote.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
}

func TestOptimisticAddBalance(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, config.SyncModeOptimistic, 0)
		f.remote.On("Credit", mock.Anything, 10, "ad").Return(nil).Once()

		require.NoError(t, f.svc.AddBalance(context.Background(), 10, "ad"))
		assert.Equal(t, 10, f.svc.Balance())
		assert.Equal(t, 10, f.cache.balance)
		f.remote.AssertExpectations(t)
	})

	t.Run("remote failure keeps local credit and queues replay", func(t *testing.T) {
		f := newFixture(t, config.SyncModeOptimistic, 0)
		f.remote.On("Credit", mock.Anything, 10, "ad").Return(errors.New("connection reset")).Once()

		err := f.svc.AddBalance(context.Background(), 10, "ad")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNetwork)
		assert.NotErrorIs(t, err, domain.ErrReconciliationGap)
		assert.True(t, Applied(err))
		assert.Equal(t, 10, f.svc.Balance())
		require.Len(t, f.syncer.tasks, 1)
		assert.JSONEq(t, `{"operation":"credit","amount":10,"label":"ad"}`, string(f.syncer.tasks[0].Payload()))
		assert.Equal(t, []string{events.TypeLedgerSyncFailed}, f.events.seen())
	})
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "rejected" }
func (permanentErr) Permanent() bool { return true }

func TestOptimisticDeductBalance(t *testing.T) {
	t.Run("insufficient balance is refused without remote call", func(t *testing.T) {
		f := newFixture(t, config.SyncModeOptimistic, 50)

		ok, err := f.svc.DeductBalance(context.Background(), 100, "purchase")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 50, f.svc.Balance())
		f.remote.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exact balance", func(t *testing.T) {
		f := newFixture(t, config.SyncModeOptimistic, 49)
		f.remote.On("Debit", mock.Anything, 49, "premium-spreads").Return(nil).Once()

		ok, err := f.svc.DeductBalance(context.Background(), 49, "premium-spreads")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, f.svc.Balance())
	})

	t.Run("permanent remote rejection is a reconciliation gap", func(t *testing.T) {
		f := newFixture(t, config.SyncModeOptimistic, 20)
		f.remote.On("Debit", mock.Anything, 5, "x").Return(permanentErr{}).Once()

		ok, err := f.svc.DeductBalance(context.Background(), 5, "x")
		assert.True(t, ok, "local debit stands")
		assert.ErrorIs(t, err, domain.ErrReconciliationGap)
		assert.ErrorIs(t, err, domain.ErrNetwork)
		assert.Equal(t, 15, f.svc.Balance())
		assert.Empty(t, f.syncer.tasks)

		var syncErr *SyncError
		require.ErrorAs(t, err, &syncErr)
		assert.True(t, syncErr.Applied)
		assert.False(t, syncErr.Queued)
		assert.Equal(t, []string{events.TypeLedgerSyncFailed, events.TypeLedgerReconciliationGap}, f.events.seen())
	})
}

func TestConcurrentDeductsNeverOverspend(t *testing.T) {
	f := newFixture(t, config.SyncModeOptimistic, 50)
	f.remote.On("Debit", mock.Anything, 1, "spend").Return(nil)

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.DeductBalance(context.Background(), 1, "spend")
			assert.NoError(t, err)
			if ok {
				granted.Add(1)
			}
			assert.GreaterOrEqual(t, f.svc.Balance(), 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), granted.Load())
	assert.Zero(t, f.svc.Balance())
	f.remote.AssertNumberOfCalls(t, "Debit", 50)
}

func TestConfirmedMode(t *testing.T) {
	t.Run("credit waits for remote", func(t *testing.T) {
		f := newFixture(t, config.SyncModeConfirmed, 0)
		f.remote.On("Credit", mock.Anything, 10, "ad").Return(errors.New("timeout")).Once()

		err := f.svc.AddBalance(context.Background(), 10, "ad")
		assert.ErrorIs(t, err, domain.ErrNetwork)
		assert.False(t, Applied(err))
		assert.Zero(t, f.svc.Balance())
		assert.Empty(t, f.syncer.tasks)
	})

	t.Run("debit applied after remote accepts", func(t *testing.T) {
		f := newFixture(t, config.SyncModeConfirmed, 30)
		f.remote.On("Debit", mock.Anything, 10, "x").Return(nil).Once()

		ok, err := f.svc.DeductBalance(context.Background(), 10, "x")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 20, f.svc.Balance())
	})

	t.Run("remote insufficient funds leaves balance and reports gap", func(t *testing.T) {
		f := newFixture(t, config.SyncModeConfirmed, 30)
		remoteErr := errors.Join(domain.ErrNetwork, domain.ErrInsufficientFunds)
		f.remote.On("Debit", mock.Anything, 10, "x").Return(remoteErr).Once()

		ok, err := f.svc.DeductBalance(context.Background(), 10, "x")
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrReconciliationGap)
		assert.Equal(t, 30, f.svc.Balance())
	})
}

func TestSyncTask(t *testing.T) {
	remote := &mockRemote{}
	log := &eventLog{}
	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(log)

	st, err := newSyncTask(OpDebit, 7, "reading", remote, emitter)
	require.NoError(t, err)

	remote.On("Debit", mock.Anything, 7, "reading").Return(nil).Once()
	require.NoError(t, st.Execute(context.Background()))

	rebuilt, err := syncTaskFromRecord(task.Record{ID: st.ID(), Type: SyncTaskType, Payload: st.Payload()}, remote, emitter)
	require.NoError(t, err)
	assert.Equal(t, st.ID(), rebuilt.ID())
	assert.Equal(t, st.payload, rebuilt.payload)

	st.Exhausted(context.Background(), 3, errors.New("still down"))
	assert.Equal(t, []string{events.TypeLedgerReconciliationGap}, log.seen())

	_, err = newSyncTask("refund", 1, "", remote, emitter)
	assert.Error(t, err)
	_, err = syncTaskFromRecord(task.Record{Payload: []byte("{")}, remote, emitter)
	assert.Error(t, err)
}
