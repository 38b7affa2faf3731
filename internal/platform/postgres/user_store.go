package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/phrazzld/arcana/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, balance, experience, language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Balance, user.Experience, user.Language,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("username already taken", slog.String("username", user.Username))
			return MapUniqueViolation(err, "user", store.ErrUsernameExists)
		}
		log.Error("failed to insert user", slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("user created", slog.String("user_id", user.ID.String()))
	return nil
}

const selectUser = `
	SELECT id, username, balance, experience, language, created_at, updated_at
	FROM users`

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadPurchases(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByUsername implements store.UserStore.GetByUsername
func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, username))
	if err != nil {
		return nil, err
	}
	if err := s.loadPurchases(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PostgresUserStore) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Balance, &u.Experience, &u.Language, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &u, nil
}

func (s *PostgresUserStore) loadPurchases(ctx context.Context, user *domain.User) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id FROM purchases
		WHERE user_id = $1
		ORDER BY created_at, product_id`, user.ID)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = rows.Close() }()

	user.PurchasedProducts = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return MapError(err)
		}
		user.PurchasedProducts = append(user.PurchasedProducts, id)
	}
	return MapError(rows.Err())
}

// AddExperience implements store.UserStore.AddExperience
func (s *PostgresUserStore) AddExperience(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET experience = experience + $2, updated_at = $3
		WHERE id = $1
		RETURNING experience`,
		id, amount, time.Now().UTC(),
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrUserNotFound
	}
	if err != nil {
		return 0, MapError(err)
	}
	return total, nil
}

// AdjustBalance implements store.UserStore.AdjustBalance
func (s *PostgresUserStore) AdjustBalance(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = $3
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance`,
		id, delta, time.Now().UTC(),
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, MapError(err)
	}

	// No row matched: either the user is missing or the guard rejected it.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, MapError(err)
	}
	if !exists {
		return 0, store.ErrUserNotFound
	}
	return 0, store.ErrInsufficientBalance
}

// SetLanguage implements store.UserStore.SetLanguage
func (s *PostgresUserStore) SetLanguage(ctx context.Context, id uuid.UUID, lang string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET language = $2, updated_at = $3 WHERE id = $1`,
		id, lang, time.Now().UTC(),
	)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "user"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrUserNotFound
		}
		return err
	}
	return nil
}

// AddPurchase implements store.UserStore.AddPurchase
func (s *PostgresUserStore) AddPurchase(ctx context.Context, id uuid.UUID, productID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (user_id, product_id, created_at) VALUES ($1, $2, $3)`,
		id, productID, time.Now().UTC(),
	)
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return MapUniqueViolation(err, "purchase", store.ErrPurchaseExists)
	case IsForeignKeyViolation(err):
		return store.ErrUserNotFound
	default:
		return MapError(err)
	}
}
