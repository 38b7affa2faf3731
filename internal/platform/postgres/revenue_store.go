package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/store"
)

// PostgresRevenueStore implements store.RevenueStore.
type PostgresRevenueStore struct {
	db store.DBTX
}

// NewPostgresRevenueStore creates a PostgresRevenueStore.
func NewPostgresRevenueStore(db store.DBTX) *PostgresRevenueStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	return &PostgresRevenueStore{db: db}
}

var _ store.RevenueStore = (*PostgresRevenueStore)(nil)

// WithTx implements store.RevenueStore.WithTx
func (s *PostgresRevenueStore) WithTx(tx *sql.Tx) store.RevenueStore {
	return &PostgresRevenueStore{db: tx}
}

// Record implements store.RevenueStore.Record
func (s *PostgresRevenueStore) Record(ctx context.Context, entry *domain.RevenueEntry) error {
	if entry.AmountCents <= 0 {
		return fmt.Errorf("%w: revenue must be positive", store.ErrInvalidEntity)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revenue (id, source, amount_cents, created_at) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.Source, entry.AmountCents, entry.CreatedAt,
	)
	return MapError(err)
}

// Summary implements store.RevenueStore.Summary
func (s *PostgresRevenueStore) Summary(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	var sum domain.RevenueSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE source = 'ad'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE source = 'payment'), 0),
			COUNT(*)
		FROM revenue
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)`,
		nullTime(from), nullTime(to),
	).Scan(&sum.AdCents, &sum.PaymentCents, &sum.TransactionCount)
	if err != nil {
		return domain.RevenueSummary{}, MapError(err)
	}
	sum.TotalCents = sum.AdCents + sum.PaymentCents
	return sum, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
