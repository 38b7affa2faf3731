package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store.
	// Returns ErrUsernameExists if the username is already taken.
	// Returns validation errors from the domain User if data is invalid.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user, including their purchased products.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by their username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// AddExperience adds amount to the user's XP and returns the new total.
	// Returns ErrUserNotFound if the user does not exist.
	AddExperience(ctx context.Context, id uuid.UUID, amount int) (int, error)

	// AdjustBalance applies delta to the user's balance atomically and
	// returns the new balance. Returns ErrInsufficientBalance, without
	// changing anything, when the result would be negative.
	// Returns ErrUserNotFound if the user does not exist.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int) (int, error)

	// SetLanguage stores the user's display language.
	// Returns ErrUserNotFound if the user does not exist.
	SetLanguage(ctx context.Context, id uuid.UUID, lang string) error

	// AddPurchase records that the user owns productID.
	// Returns ErrPurchaseExists if the product is already owned.
	AddPurchase(ctx context.Context, id uuid.UUID, productID string) error

	// WithTx returns a new UserStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) UserStore
}
