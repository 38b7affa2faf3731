// Package ledger owns the client's coin balance. Every credit and debit goes
// through the Service, which keeps the balance non-negative, serializes
// mutations and mirrors them to the backend.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/phrazzld/arcana/internal/task"
)

// Remote is the backend's view of the balance.
type Remote interface {
	Credit(ctx context.Context, amount int, source string) error
	Debit(ctx context.Context, amount int, description string) error
}

// Cache persists the balance between runs.
type Cache interface {
	LoadBalance(ctx context.Context) (int, error)
	SaveBalance(ctx context.Context, balance int) error
}

// Syncer replays remote updates that failed. *task.TaskRunner satisfies it.
type Syncer interface {
	RegisterFactory(taskType string, factory task.Factory)
	Submit(ctx context.Context, t task.Task) error
	WaitIdle(ctx context.Context) error
}

// Service mediates all balance changes.
type Service interface {
	// Balance returns the current local balance.
	Balance() int

	// AddBalance credits amount coins labelled with source.
	AddBalance(ctx context.Context, amount int, source string) error

	// DeductBalance debits amount coins if the balance covers them. It returns
	// false, leaving the balance unchanged, when it does not.
	DeductBalance(ctx context.Context, amount int, description string) (bool, error)

	// Reconcile blocks until every queued remote update has been replayed or
	// abandoned.
	Reconcile(ctx context.Context) error
}

// ServiceImpl implements Service.
type ServiceImpl struct {
	remote  Remote
	cache   Cache
	syncer  Syncer
	emitter events.EventEmitter
	mode    string
	logger  *slog.Logger

	// opMu serializes whole operations, remote call included, so two debits
	// can never both read the same pre-decrement balance.
	opMu sync.Mutex

	mu      sync.RWMutex
	balance int
}

var _ Service = (*ServiceImpl)(nil)

// NewService creates the ledger, restoring the balance from cache. cache,
// syncer and emitter are optional.
func NewService(
	ctx context.Context,
	remote Remote,
	cache Cache,
	syncer Syncer,
	emitter events.EventEmitter,
	mode string,
	logger *slog.Logger,
) (*ServiceImpl, error) {
	if remote == nil {
		return nil, errors.New("remote ledger cannot be nil")
	}
	switch mode {
	case "":
		mode = config.SyncModeOptimistic
	case config.SyncModeOptimistic, config.SyncModeConfirmed:
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ServiceImpl{
		remote:  remote,
		cache:   cache,
		syncer:  syncer,
		emitter: emitter,
		mode:    mode,
		logger:  logger.With("component", "ledger"),
	}

	if cache != nil {
		balance, err := cache.LoadBalance(ctx)
		if err != nil {
			s.logger.Debug("no cached balance, starting at zero", "error", err)
		} else {
			s.balance = balance
		}
	}

	if syncer != nil {
		syncer.RegisterFactory(SyncTaskType, s.rebuildSyncTask)
	}
	return s, nil
}

// Balance returns the current local balance.
func (s *ServiceImpl) Balance() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// AddBalance credits amount coins. In optimistic mode the local balance moves
// first and a remote failure is reported without reverting it; in confirmed
// mode the balance moves only after the backend accepts the credit.
func (s *ServiceImpl) AddBalance(ctx context.Context, amount int, source string) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "amount must be positive", domain.ErrInvalidAmount)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.mode == config.SyncModeConfirmed {
		if err := s.remote.Credit(ctx, amount, source); err != nil {
			s.logger.Warn("remote credit rejected, balance unchanged",
				"amount", amount,
				"source", source,
				"error", err)
			return &SyncError{Operation: OpCredit, Amount: amount, Err: asNetworkError(err)}
		}
		s.apply(ctx, amount)
		return nil
	}

	s.apply(ctx, amount)
	if err := s.remote.Credit(ctx, amount, source); err != nil {
		return s.syncFailed(ctx, OpCredit, amount, source, err)
	}
	return nil
}

// DeductBalance debits amount coins against the balance as it stands when the
// call acquires the ledger.
func (s *ServiceImpl) DeductBalance(ctx context.Context, amount int, description string) (bool, error) {
	if amount <= 0 {
		return false, domain.NewValidationError("amount", "amount must be positive", domain.ErrInvalidAmount)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Balance() < amount {
		s.logger.Debug("deduction refused",
			"amount", amount,
			"balance", s.Balance())
		return false, nil
	}

	if s.mode == config.SyncModeConfirmed {
		if err := s.remote.Debit(ctx, amount, description); err != nil {
			s.logger.Warn("remote debit rejected, balance unchanged",
				"amount", amount,
				"description", description,
				"error", err)
			if errors.Is(err, domain.ErrInsufficientFunds) {
				err = errors.Join(domain.ErrReconciliationGap, err)
			}
			return false, &SyncError{Operation: OpDebit, Amount: amount, Err: asNetworkError(err)}
		}
		s.apply(ctx, -amount)
		return true, nil
	}

	s.apply(ctx, -amount)
	if err := s.remote.Debit(ctx, amount, description); err != nil {
		return true, s.syncFailed(ctx, OpDebit, amount, description, err)
	}
	return true, nil
}

// Reconcile waits for queued remote updates to finish.
func (s *ServiceImpl) Reconcile(ctx context.Context) error {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.WaitIdle(ctx)
}

// apply moves the local balance by delta and persists it. Callers hold opMu
// and have already checked that the result is non-negative.
func (s *ServiceImpl) apply(ctx context.Context, delta int) {
	s.mu.Lock()
	s.balance += delta
	balance := s.balance
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.SaveBalance(ctx, balance); err != nil {
		s.logger.Warn("failed to persist balance", "balance", balance, "error", err)
	}
}

// syncFailed reports a remote failure after the local balance has already
// moved, and queues the update for replay unless the backend rejected it
// outright.
func (s *ServiceImpl) syncFailed(ctx context.Context, op string, amount int, label string, cause error) error {
	cause = asNetworkError(cause)
	s.logger.Warn("remote balance update failed",
		"operation", op,
		"amount", amount,
		"label", label,
		"error", cause)

	failure := events.SyncFailure{Operation: op, Amount: amount, Label: label, Attempts: 1, Error: cause.Error()}
	events.Publish(ctx, s.emitter, s.logger, events.TypeLedgerSyncFailed, failure)

	syncErr := &SyncError{Operation: op, Amount: amount, Applied: true, Err: cause}
	if !isPermanent(cause) && s.syncer != nil {
		t, err := newSyncTask(op, amount, label, s.remote, s.emitter)
		if err == nil {
			err = s.syncer.Submit(ctx, t)
		}
		if err == nil {
			syncErr.Queued = true
			return syncErr
		}
		s.logger.Error("failed to queue balance sync", "operation", op, "error", err)
	}

	events.Publish(ctx, s.emitter, s.logger, events.TypeLedgerReconciliationGap, failure)
	syncErr.Err = errors.Join(domain.ErrReconciliationGap, cause)
	return syncErr
}

func (s *ServiceImpl) rebuildSyncTask(rec task.Record) (task.Task, error) {
	return syncTaskFromRecord(rec, s.remote, s.emitter)
}

// SyncError reports a balance update the backend did not accept.
type SyncError struct {
	Operation string
	Amount    int
	// Applied is true when the local balance moved despite the failure.
	Applied   bool
	// Queued is true when the update will be replayed in the background.
	Queued    bool
	Err       error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	switch {
	case e.Queued:
		return fmt.Sprintf("%s of %d applied locally, remote sync queued: %v", e.Operation, e.Amount, e.Err)
	case e.Applied:
		return fmt.Sprintf("%s of %d applied locally, remote sync failed: %v", e.Operation, e.Amount, e.Err)
	default:
		return fmt.Sprintf("%s of %d rejected: %v", e.Operation, e.Amount, e.Err)
	}
}

// Unwrap returns the underlying failure.
func (e *SyncError) Unwrap() error { return e.Err }

// Applied reports whether the operation that returned err changed the local
// balance: always for a nil error, and for a SyncError whose Applied is set.
func Applied(err error) bool {
	if err == nil {
		return true
	}
	var se *SyncError
	return errors.As(err, &se) && se.Applied
}

func asNetworkError(err error) error {
	if errors.Is(err, domain.ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}

func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
