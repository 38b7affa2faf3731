package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/service/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the account endpoints from memory.
type fakeBackend struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*domain.User
	readings []domain.Reading
	creates  int
	down     bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{users: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeBackend) user(id uuid.UUID) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			down := f.down
			f.mu.Unlock()
			if down {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u, err := domain.NewUser(body.Username)
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, domain.CodeValidation)
			return
		}
		f.mu.Lock()
		f.users[u.ID] = u
		f.creates++
		f.mu.Unlock()
		writeFakeJSON(w, u)
	})
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/level", f.withUser(func(w http.ResponseWriter, _ *http.Request, u *domain.User) {
			writeFakeJSON(w, domain.ExperienceSnapshot{Experience: u.Experience, LevelInfo: domain.CalculateLevel(u.Experience)})
		}))
		r.Post("/experience", f.withUser(func(w http.ResponseWriter, r *http.Request, u *domain.User) {
			amount, _ := strconv.Atoi(r.URL.Query().Get("xp_amount"))
			u.Experience += amount
			writeFakeJSON(w, domain.ExperienceSnapshot{Experience: u.Experience, LevelInfo: domain.CalculateLevel(u.Experience)})
		}))
		r.Put("/language", f.withUser(func(w http.ResponseWriter, r *http.Request, u *domain.User) {
			u.Language = r.URL.Query().Get("language")
			writeFakeJSON(w, map[string]string{"language": u.Language})
		}))
		r.Post("/balance/add", f.withUser(func(w http.ResponseWriter, r *http.Request, u *domain.User) {
			var body struct {
				Amount int `json:"amount"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			u.Balance += body.Amount
			writeFakeJSON(w, map[string]int{"balance": u.Balance})
		}))
		r.Post("/balance/deduct", f.withUser(func(w http.ResponseWriter, r *http.Request, u *domain.User) {
			var body struct {
				Amount int `json:"amount"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Amount > u.Balance {
				writeFakeError(w, http.StatusBadRequest, domain.CodeInsufficientFunds)
				return
			}
			u.Balance -= body.Amount
			writeFakeJSON(w, map[string]int{"balance": u.Balance})
		}))
		r.Get("/", f.withUser(func(w http.ResponseWriter, _ *http.Request, u *domain.User) {
			writeFakeJSON(w, u)
		}))
	})
	r.Post("/purchase/{productID}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID uuid.UUID `json:"user_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[body.UserID]
		if !ok {
			writeFakeError(w, http.StatusNotFound, domain.CodeNotFound)
			return
		}
		id := chi.URLParam(r, "productID")
		if u.Owns(id) {
			writeFakeError(w, http.StatusConflict, domain.CodeAlreadyOwned)
			return
		}
		u.PurchasedProducts = append(u.PurchasedProducts, id)
		writeFakeJSON(w, map[string]string{"status": "ok"})
	})
	r.Post("/readings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SpreadType string               `json:"spread_type"`
			Cards      []domain.ReadingCard `json:"cards"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		reading := domain.Reading{ID: uuid.New(), SpreadType: body.SpreadType, Cards: body.Cards}
		f.mu.Lock()
		f.readings = append(f.readings, reading)
		f.mu.Unlock()
		writeFakeJSON(w, reading)
	})
	return r
}

func (f *fakeBackend) withUser(fn func(http.ResponseWriter, *http.Request, *domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeFakeError(w, http.StatusBadRequest, domain.CodeValidation)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[id]
		if !ok {
			writeFakeError(w, http.StatusNotFound, domain.CodeNotFound)
			return
		}
		fn(w, r, u)
	}
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason, "reason": reason})
}

func testConfig(t *testing.T, backendURL, cachePath string) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "debug"},
		Client: config.ClientConfig{
			BackendURL:  backendURL,
			CachePath:   cachePath,
			Username:    "seeker",
			Language:    "en",
			HTTPTimeout: 2 * time.Second,
			SyncMode:    config.SyncModeOptimistic,
		},
		Economy: config.EconomyConfig{
			CompletionXP:  30,
			DrawXP:        10,
			PurchaseXP:    20,
			AdRewardCoins: 10,
			AdCooldown:    time.Minute,
		},
		Sync: config.SyncConfig{QueueSize: 8, WorkerCount: 1, MaxAttempts: 5, RetryDelay: 50 * time.Millisecond},
	}
}

func newTestClient(t *testing.T, fake *fakeBackend, cachePath string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(context.Background(), testConfig(t, srv.URL, cachePath), logger, Options{
		SessionOptions: []session.Option{session.WithSleep(func(time.Duration) {})},
	})
	require.NoError(t, err)
	return c
}

func TestNewRegistersOnce(t *testing.T) {
	fake := newFakeBackend()
	cachePath := filepath.Join(t.TempDir(), "cache.db")

	c := newTestClient(t, fake, cachePath)
	first := c.Account.UserID()
	c.Close()

	c = newTestClient(t, fake, cachePath)
	defer c.Close()

	assert.Equal(t, first, c.Account.UserID(), "cached user is reused")
	assert.Equal(t, 1, fake.creates)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil, Options{})
	assert.Error(t, err)
}

func TestReadingFlow(t *testing.T) {
	fake := newFakeBackend()
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close()
	ctx := context.Background()

	sess, err := c.Sessions.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)
	for i := range sess.Template.Positions {
		res, err := c.Sessions.DrawCard(ctx, i)
		require.NoError(t, err)
		require.True(t, res.Drawn)
		require.NoError(t, res.AwardErr)
	}

	assert.Equal(t, 60, c.Experience.Snapshot().Experience)
	assert.Equal(t, 60, fake.user(c.Account.UserID()).Experience)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.readings, 1)
	assert.Equal(t, "three-card", fake.readings[0].SpreadType)
	assert.Len(t, fake.readings[0].Cards, 3)
}

func TestPurchaseUnlocksPremiumSpreads(t *testing.T) {
	fake := newFakeBackend()
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Ledger.AddBalance(ctx, 100, domain.SourcePayment))

	_, err := c.Sessions.SelectTemplate(ctx, "celtic-cross-pro")
	require.ErrorIs(t, err, domain.ErrInvalidTemplate)

	ent, err := c.Entitlements.Purchase(ctx, "premium-spreads", 49)
	require.NoError(t, err)
	assert.True(t, ent.HasSpread("celtic-cross-pro"))
	assert.Equal(t, 51, c.Ledger.Balance())

	_, err = c.Sessions.SelectTemplate(ctx, "celtic-cross-pro")
	assert.NoError(t, err)

	remote := fake.user(c.Account.UserID())
	assert.Equal(t, 51, remote.Balance)
	assert.Contains(t, remote.PurchasedProducts, "premium-spreads")
}

func TestSyncReplaysOfflineCredit(t *testing.T) {
	fake := newFakeBackend()
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close()
	ctx := context.Background()

	fake.setDown(true)
	err := c.Ledger.AddBalance(ctx, 25, domain.SourceReward)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, 25, c.Ledger.Balance(), "optimistic credit applies locally")

	fake.setDown(false)
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = c.Sync(waitCtx)
	require.NoError(t, err)

	assert.Equal(t, 25, fake.user(c.Account.UserID()).Balance)
	failed, err := c.AbandonedSyncs(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestSetLanguage(t *testing.T) {
	fake := newFakeBackend()
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close()
	ctx := context.Background()

	assert.Equal(t, "en", c.Language(ctx))

	lang, err := c.SetLanguage(ctx, "zh-Hans")
	require.NoError(t, err)
	assert.Equal(t, "zh", lang)
	assert.Equal(t, "zh", c.Language(ctx))
	assert.Equal(t, "zh", fake.user(c.Account.UserID()).Language)

	_, err = c.SetLanguage(ctx, "klingon")
	assert.ErrorIs(t, err, domain.ErrInvalidLanguage)
}
