// Package sqlite is the client's local cache: the last-known balance, XP
// snapshot, entitlements and ad cooldown, plus the queue of remote updates
// still waiting to reach the backend.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// State keys in account_state.
const (
	keyUserID       = "user_id"
	keyBalance      = "balance"
	keyExperience   = "experience"
	keyEntitlements = "entitlements"
	keyLastReward   = "last_reward_at"
	keyLanguage     = "language"
)

// ErrNotCached is returned when a value has never been stored.
var ErrNotCached = errors.New("value not cached")

// Store persists client state in SQLite. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the cache at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers and keeps the WAL simple.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "sqlite_cache"),
		now:    time.Now,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM account_state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotCached
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO account_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// UserID returns the backend user this cache belongs to.
func (s *Store) UserID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.get(ctx, keyUserID, &id)
	return id, err
}

// SaveUserID records the backend user this cache belongs to.
func (s *Store) SaveUserID(ctx context.Context, id uuid.UUID) error {
	return s.put(ctx, keyUserID, id)
}

// LoadBalance returns the cached balance.
func (s *Store) LoadBalance(ctx context.Context) (int, error) {
	var balance int
	err := s.get(ctx, keyBalance, &balance)
	return balance, err
}

// SaveBalance stores the balance.
func (s *Store) SaveBalance(ctx context.Context, balance int) error {
	if balance < 0 {
		return fmt.Errorf("refusing to cache negative balance %d", balance)
	}
	return s.put(ctx, keyBalance, balance)
}

// LoadExperience returns the cached XP snapshot.
func (s *Store) LoadExperience(ctx context.Context) (domain.ExperienceSnapshot, error) {
	var snap domain.ExperienceSnapshot
	err := s.get(ctx, keyExperience, &snap)
	return snap, err
}

// SaveExperience stores the XP snapshot.
func (s *Store) SaveExperience(ctx context.Context, snap domain.ExperienceSnapshot) error {
	return s.put(ctx, keyExperience, snap)
}

// LoadEntitlements returns the cached entitlement set.
func (s *Store) LoadEntitlements(ctx context.Context) (domain.EntitlementSet, error) {
	var ent domain.EntitlementSet
	err := s.get(ctx, keyEntitlements, &ent)
	return ent, err
}

// SaveEntitlements stores the entitlement set.
func (s *Store) SaveEntitlements(ctx context.Context, ent domain.EntitlementSet) error {
	return s.put(ctx, keyEntitlements, ent)
}

// LoadLastReward returns when the last ad reward was granted.
func (s *Store) LoadLastReward(ctx context.Context) (time.Time, error) {
	var millis int64
	if err := s.get(ctx, keyLastReward, &millis); err != nil {
		return time.Time{}, err
	}
	return fromMillis(millis), nil
}

// SaveLastReward records when the last ad reward was granted.
func (s *Store) SaveLastReward(ctx context.Context, at time.Time) error {
	return s.put(ctx, keyLastReward, toMillis(at))
}

// LoadLanguage returns the cached display language.
func (s *Store) LoadLanguage(ctx context.Context) (string, error) {
	var lang string
	err := s.get(ctx, keyLanguage, &lang)
	return lang, err
}

// SaveLanguage stores the display language.
func (s *Store) SaveLanguage(ctx context.Context, lang string) error {
	return s.put(ctx, keyLanguage, lang)
}

// AddPendingPurchase records a purchase awaiting remote confirmation.
func (s *Store) AddPendingPurchase(ctx context.Context, productID string, price int, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_purchases (product_id, price, last_error, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET last_error = excluded.last_error`,
		productID, price, lastErr, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("add pending purchase: %w", err)
	}
	return nil
}

// RemovePendingPurchase clears a pending purchase once it has been recorded.
func (s *Store) RemovePendingPurchase(ctx context.Context, productID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_purchases WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("remove pending purchase: %w", err)
	}
	return nil
}

// PendingPurchases lists purchases awaiting remote confirmation, oldest first.
func (s *Store) PendingPurchases(ctx context.Context) ([]domain.PendingPurchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, price, last_error, created_at
		FROM pending_purchases ORDER BY created_at, product_id`)
	if err != nil {
		return nil, fmt.Errorf("list pending purchases: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingPurchase
	for rows.Next() {
		var p domain.PendingPurchase
		var created int64
		if err := rows.Scan(&p.ProductID, &p.Price, &p.LastError, &created); err != nil {
			return nil, fmt.Errorf("scan pending purchase: %w", err)
		}
		p.CreatedAt = fromMillis(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
