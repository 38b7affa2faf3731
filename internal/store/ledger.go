package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
)

// TransactionStore persists the balance history of each user.
type TransactionStore interface {
	// Create records one balance change.
	Create(ctx context.Context, tx *domain.Transaction) error

	// ListByUser returns the user's transactions, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)

	// WithTx returns a new TransactionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TransactionStore
}

// RevenueStore persists revenue attributed to ad views and coin payments.
type RevenueStore interface {
	// Record stores one revenue entry.
	Record(ctx context.Context, entry *domain.RevenueEntry) error

	// Summary aggregates the entries created within [from, to]. A zero bound
	// leaves that side of the range open.
	Summary(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error)

	// WithTx returns a new RevenueStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) RevenueStore
}
