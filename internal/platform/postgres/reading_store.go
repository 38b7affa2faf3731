package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/store"
)

// PostgresReadingStore implements store.ReadingStore. Cards are stored as a
// JSONB array.
type PostgresReadingStore struct {
	db store.DBTX
}

// NewPostgresReadingStore creates a PostgresReadingStore.
func NewPostgresReadingStore(db store.DBTX) *PostgresReadingStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	return &PostgresReadingStore{db: db}
}

var _ store.ReadingStore = (*PostgresReadingStore)(nil)

// Create implements store.ReadingStore.Create
func (s *PostgresReadingStore) Create(ctx context.Context, r *domain.Reading) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Cards == nil {
		r.Cards = []domain.ReadingCard{}
	}
	cards, err := json.Marshal(r.Cards)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO readings (id, user_id, spread_type, cards, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.UserID, r.SpreadType, cards, r.CreatedAt,
	)
	if IsForeignKeyViolation(err) {
		return store.ErrUserNotFound
	}
	return MapError(err)
}

// ListByUser implements store.ReadingStore.ListByUser
func (s *PostgresReadingStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, spread_type, cards, created_at
		FROM readings
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	readings := []domain.Reading{}
	for rows.Next() {
		var (
			r   domain.Reading
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SpreadType, &raw, &r.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		if err := json.Unmarshal(raw, &r.Cards); err != nil {
			return nil, fmt.Errorf("failed to decode reading %s: %w", r.ID, err)
		}
		readings = append(readings, r)
	}
	return readings, MapError(rows.Err())
}
