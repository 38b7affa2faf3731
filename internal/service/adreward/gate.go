// Package adreward grants coins for watching a rewarded ad, at most once per
// cooldown window.
package adreward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/phrazzld/arcana/internal/service/ledger"
)

// AdProvider delivers rewarded and banner ads.
type AdProvider interface {
	// IsReady reports whether a rewarded ad is loaded.
	IsReady() bool
	// Load fetches the next rewarded ad.
	Load(ctx context.Context) error
	// Show plays the loaded ad and returns when it is dismissed. onReward is
	// called before dismissal if the viewer earned the reward.
	Show(ctx context.Context, onReward func()) error
	// ShowBanner displays a banner anchored to edge.
	ShowBanner(ctx context.Context, edge domain.BannerEdge) error
}

// Crediter is the part of the ledger the gate pays rewards through.
type Crediter interface {
	AddBalance(ctx context.Context, amount int, source string) error
}

// Store persists the time of the last reward.
type Store interface {
	LoadLastReward(ctx context.Context) (time.Time, error)
	SaveLastReward(ctx context.Context, at time.Time) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds the reward constants.
type Config struct {
	Reward   int
	Cooldown time.Duration
}

// Gate is the cooldown-limited reward trigger. At most one request runs at a
// time; overlapping requests are rejected rather than queued.
type Gate struct {
	ads     AdProvider
	ledger  Crediter
	store   Store
	clock   Clock
	emitter events.EventEmitter
	cfg     Config
	logger  *slog.Logger

	inFlight atomic.Bool
	preload  sync.WaitGroup

	mu   sync.Mutex
	last time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithStore persists the last reward time.
func WithStore(s Store) Option {
	return func(g *Gate) { g.store = s }
}

// WithEmitter publishes ad.rewarded events.
func WithEmitter(e events.EventEmitter) Option {
	return func(g *Gate) { g.emitter = e }
}

// NewGate creates a gate.
func NewGate(ctx context.Context, ads AdProvider, crediter Crediter, cfg Config, logger *slog.Logger, opts ...Option) (*Gate, error) {
	if ads == nil {
		return nil, errors.New("ad provider cannot be nil")
	}
	if crediter == nil {
		return nil, errors.New("ledger cannot be nil")
	}
	if cfg.Reward <= 0 {
		return nil, fmt.Errorf("reward must be positive, got %d", cfg.Reward)
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive, got %s", cfg.Cooldown)
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gate{
		ads:    ads,
		ledger: crediter,
		clock:  systemClock{},
		cfg:    cfg,
		logger: logger.With("component", "ad_reward_gate"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.store != nil {
		if last, err := g.store.LoadLastReward(ctx); err == nil {
			g.last = last
		}
	}
	return g, nil
}

// Preload starts loading a rewarded ad in the background.
func (g *Gate) Preload() {
	g.preload.Add(1)
	go func() {
		defer g.preload.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := g.ads.Load(ctx); err != nil {
			g.logger.Warn("failed to preload rewarded ad", "error", err)
		}
	}()
}

// WaitPreload blocks until background loads started by Preload have returned.
func (g *Gate) WaitPreload() {
	g.preload.Wait()
}

// LastReward returns when the last reward was granted, zero if never.
func (g *Gate) LastReward() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Remaining returns how long until the next reward may be claimed.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining(g.clock.Now())
}

func (g *Gate) remaining(now time.Time) time.Duration {
	if g.last.IsZero() {
		return 0
	}
	if left := g.cfg.Cooldown - now.Sub(g.last); left > 0 {
		return left
	}
	return 0
}

// RequestReward shows a rewarded ad and, once the viewer has earned it,
// credits the reward. It returns the amount credited.
func (g *Gate) RequestReward(ctx context.Context) (int, error) {
	if !g.inFlight.CompareAndSwap(false, true) {
		return 0, domain.ErrRewardInFlight
	}
	defer g.inFlight.Store(false)

	g.mu.Lock()
	left := g.remaining(g.clock.Now())
	g.mu.Unlock()
	if left > 0 {
		return 0, fmt.Errorf("%w: %s remaining", domain.ErrCooldownActive, left.Round(time.Second))
	}

	if !g.ads.IsReady() {
		g.Preload()
		return 0, domain.ErrAdNotReady
	}

	var rewarded atomic.Bool
	err := g.ads.Show(ctx, func() { rewarded.Store(true) })
	g.Preload()
	if err != nil {
		g.logger.Warn("rewarded ad failed", "error", err)
		return 0, fmt.Errorf("failed to show ad: %w", err)
	}
	if !rewarded.Load() {
		return 0, domain.ErrAdNotCompleted
	}

	creditErr := g.ledger.AddBalance(ctx, g.cfg.Reward, domain.AdSource)
	if !ledger.Applied(creditErr) {
		g.logger.Warn("ad reward not credited", "error", creditErr)
		return 0, fmt.Errorf("failed to credit ad reward: %w", creditErr)
	}

	now := g.clock.Now()
	g.mu.Lock()
	g.last = now
	g.mu.Unlock()
	if g.store != nil {
		if err := g.store.SaveLastReward(ctx, now); err != nil {
			g.logger.Warn("failed to persist last reward time", "error", err)
		}
	}

	events.Publish(ctx, g.emitter, g.logger, events.TypeAdRewarded, events.AdReward{Amount: g.cfg.Reward, At: now})
	g.logger.Info("ad reward granted", "amount", g.cfg.Reward)

	// The coins are credited locally even when the remote sync failed; the
	// caller still sees the sync error.
	return g.cfg.Reward, creditErr
}

// ShowBanner displays a banner ad.
func (g *Gate) ShowBanner(ctx context.Context, edge domain.BannerEdge) error {
	if !edge.Valid() {
		return domain.NewValidationError("edge", "banner edge must be top or bottom", domain.ErrValidation)
	}
	return g.ads.ShowBanner(ctx, edge)
}
