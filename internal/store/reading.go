package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/domain"
)

// ReadingStore persists completed readings.
type ReadingStore interface {
	// Create stores a reading. The user must exist.
	Create(ctx context.Context, reading *domain.Reading) error

	// ListByUser returns the user's readings, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Reading, error)
}
