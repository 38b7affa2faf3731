// Package app wires the client engine: the local cache, the backend account,
// and the services built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/arcana/internal/catalog"
	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/phrazzld/arcana/internal/platform/ads"
	"github.com/phrazzld/arcana/internal/platform/backend"
	"github.com/phrazzld/arcana/internal/platform/gemini"
	"github.com/phrazzld/arcana/internal/platform/i18n"
	"github.com/phrazzld/arcana/internal/platform/sqlite"
	"github.com/phrazzld/arcana/internal/service/adreward"
	"github.com/phrazzld/arcana/internal/service/entitlement"
	"github.com/phrazzld/arcana/internal/service/experience"
	"github.com/phrazzld/arcana/internal/service/ledger"
	"github.com/phrazzld/arcana/internal/service/session"
	"github.com/phrazzld/arcana/internal/task"
)

// Client holds every engine dependency so that they are built once and
// shared by reference.
type Client struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	Cache   *sqlite.Store
	Backend *backend.Client
	Account *backend.Account
	Catalog *catalog.Catalog
	Emitter *events.InMemoryEventEmitter
	Runner  *task.TaskRunner
	Ads     *ads.Simulated

	// Engine services
	Ledger       *ledger.ServiceImpl
	Experience   *experience.ServiceImpl
	AdGate       *adreward.Gate
	Entitlements *entitlement.Store
	Sessions     *session.Manager
}

// Options adjust how New builds the client. Tests use them to substitute
// collaborators.
type Options struct {
	// Ads replaces the simulated ad provider.
	Ads adreward.AdProvider
	// SessionOptions are passed to the session manager.
	SessionOptions []session.Option
}

// New builds the client engine. It opens the local cache, binds the backend
// account (registering the configured user on first run) and starts the sync
// runner, which replays any balance updates left over from a previous run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	var err error
	c.Catalog, err = catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	c.Cache, err = sqlite.Open(ctx, cfg.Client.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	c.Backend, err = backend.NewClient(cfg.Client.BackendURL, cfg.Client.HTTPTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	c.Account, err = c.bindAccount(ctx)
	if err != nil {
		return nil, err
	}

	c.Emitter = events.NewInMemoryEventEmitter(logger)
	c.Emitter.RegisterHandler(events.NewTelemetryHandler(logger))

	c.Runner, err = task.NewTaskRunner(c.Cache, task.TaskRunnerConfig{
		WorkerCount: cfg.Sync.WorkerCount,
		QueueSize:   cfg.Sync.QueueSize,
		MaxAttempts: cfg.Sync.MaxAttempts,
		RetryDelay:  cfg.Sync.RetryDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync runner: %w", err)
	}

	c.Ledger, err = ledger.NewService(ctx, c.Account, c.Cache, c.Runner, c.Emitter, cfg.Client.SyncMode, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	// Factories are registered by the ledger, so recovery must come after it.
	if err := c.Runner.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start sync runner: %w", err)
	}

	c.Experience, err = experience.NewService(ctx, c.Account, c.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create experience service: %w", err)
	}

	provider := opts.Ads
	if provider == nil {
		c.Ads = ads.NewSimulated(cfg.Client.AdDuration, 0, logger)
		provider = c.Ads
	}
	c.AdGate, err = adreward.NewGate(ctx, provider, c.Ledger, adreward.Config{
		Reward:   cfg.Economy.AdRewardCoins,
		Cooldown: cfg.Economy.AdCooldown,
	}, logger, adreward.WithStore(c.Cache), adreward.WithEmitter(c.Emitter))
	if err != nil {
		return nil, fmt.Errorf("failed to create ad reward gate: %w", err)
	}

	c.Entitlements, err = entitlement.NewStore(ctx, entitlement.Deps{
		Ledger:  c.Ledger,
		XP:      c.Experience,
		Remote:  c.Account,
		Catalog: c.Catalog,
		Cache:   c.Cache,
		Emitter: c.Emitter,
	}, cfg.Economy.PurchaseXP, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement store: %w", err)
	}

	sessionOpts := []session.Option{
		session.WithReadingSaver(c.Account),
		session.WithEmitter(c.Emitter),
	}
	if cfg.LLM.InterpretationEnabled() {
		interpreter, err := gemini.NewInterpreter(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create interpreter: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithInterpreter(interpreter))
	}
	sessionOpts = append(sessionOpts, opts.SessionOptions...)

	c.Sessions, err = session.NewManager(c.Entitlements, c.Experience, session.Config{
		DrawLatency:  cfg.Client.DrawLatency,
		DrawXP:       cfg.Economy.DrawXP,
		CompletionXP: cfg.Economy.CompletionXP,
	}, logger, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	ok = true
	logger.Debug("client initialized", "user_id", c.Account.UserID(), "sync_mode", cfg.Client.SyncMode)
	return c, nil
}

func (c *Client) bindAccount(ctx context.Context) (*backend.Account, error) {
	userID, err := c.Cache.UserID(ctx)
	if err == nil {
		return backend.NewAccount(c.Backend, userID)
	}
	if !errors.Is(err, sqlite.ErrNotCached) {
		return nil, fmt.Errorf("failed to read cached user: %w", err)
	}

	acct, user, err := backend.Register(ctx, c.Backend, c.Config.Client.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to register user %q: %w", c.Config.Client.Username, err)
	}
	if err := c.Cache.SaveUserID(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to cache user id: %w", err)
	}
	c.Logger.Info("registered user", "user_id", user.ID, "username", user.Username)
	return acct, nil
}

// Language returns the display language, falling back to the configured one.
func (c *Client) Language(ctx context.Context) string {
	if lang, err := c.Cache.LoadLanguage(ctx); err == nil && lang != "" {
		return lang
	}
	return c.Config.Client.Language
}

// SetLanguage validates and stores the display language locally and remotely.
func (c *Client) SetLanguage(ctx context.Context, value string) (string, error) {
	lang, err := i18n.Normalize(value)
	if err != nil {
		return "", err
	}
	if err := c.Account.SetLanguage(ctx, lang); err != nil {
		return "", fmt.Errorf("failed to update language: %w", err)
	}
	if err := c.Cache.SaveLanguage(ctx, lang); err != nil {
		c.Logger.Warn("failed to cache language", "error", err)
	}
	return lang, nil
}

// Sync replays pending balance updates and pending purchases, then refreshes
// the experience snapshot. It returns the products granted by the retry.
func (c *Client) Sync(ctx context.Context) ([]string, error) {
	if err := c.Ledger.Reconcile(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for balance sync: %w", err)
	}
	granted, retryErr := c.Entitlements.RetryPending(ctx)
	if _, err := c.Experience.FetchLevel(ctx); err != nil {
		return granted, errors.Join(retryErr, err)
	}
	return granted, retryErr
}

// AbandonedSyncs lists balance updates the runner gave up on.
func (c *Client) AbandonedSyncs(ctx context.Context) ([]task.Record, error) {
	return c.Cache.FailedTasks(ctx)
}

// Products returns the catalog products with ownership resolved.
func (c *Client) Products() ([]domain.Product, domain.EntitlementSet) {
	return c.Catalog.Products(), c.Entitlements.Entitlements()
}

// Close stops background work and closes the cache. It is safe to call on a
// partially built client.
func (c *Client) Close() {
	if c.AdGate != nil {
		c.AdGate.WaitPreload()
	}
	if c.Runner != nil {
		c.Runner.Stop()
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Error("error closing local cache", "error", err)
		}
	}
}
