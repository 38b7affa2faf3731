// Package experience caches the user's XP and level. The backend is the only
// place level tiers are computed; this package never derives them locally.
package experience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/arcana/internal/domain"
)

// Remote is the authority for experience and level tiers.
type Remote interface {
	FetchLevel(ctx context.Context) (domain.ExperienceSnapshot, error)
	AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error)
}

// Cache mirrors the last canonical snapshot for offline display.
type Cache interface {
	LoadExperience(ctx context.Context) (domain.ExperienceSnapshot, error)
	SaveExperience(ctx context.Context, snap domain.ExperienceSnapshot) error
}

// Service exposes the cached experience snapshot and its remote updates.
type Service interface {
	// Snapshot returns the last canonical snapshot.
	Snapshot() domain.ExperienceSnapshot

	// FetchLevel replaces the snapshot with the backend's.
	FetchLevel(ctx context.Context) (domain.ExperienceSnapshot, error)

	// AddExperience sends amount to the backend and adopts the snapshot it
	// returns.
	AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error)
}

// ServiceImpl implements Service.
type ServiceImpl struct {
	remote Remote
	cache  Cache
	logger *slog.Logger

	// opMu serializes remote calls so snapshots are adopted in the order the
	// backend produced them.
	opMu sync.Mutex

	mu   sync.RWMutex
	snap domain.ExperienceSnapshot
}

var _ Service = (*ServiceImpl)(nil)

// NewService creates the experience service, seeding the snapshot from cache
// when one is available.
func NewService(ctx context.Context, remote Remote, cache Cache, logger *slog.Logger) (*ServiceImpl, error) {
	if remote == nil {
		return nil, errors.New("remote experience source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ServiceImpl{
		remote: remote,
		cache:  cache,
		logger: logger.With("component", "experience"),
	}
	if cache != nil {
		if snap, err := cache.LoadExperience(ctx); err == nil {
			s.snap = snap
		}
	}
	return s, nil
}

// Snapshot returns the last canonical snapshot.
func (s *ServiceImpl) Snapshot() domain.ExperienceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// FetchLevel pulls the canonical snapshot. On failure the previous snapshot is
// kept.
func (s *ServiceImpl) FetchLevel(ctx context.Context) (domain.ExperienceSnapshot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	snap, err := s.remote.FetchLevel(ctx)
	if err != nil {
		s.logger.Warn("failed to fetch level", "error", err)
		return s.Snapshot(), fmt.Errorf("failed to fetch level: %w", err)
	}
	s.replace(ctx, snap)
	return snap, nil
}

// AddExperience posts the delta and adopts the returned snapshot. On failure
// the previous snapshot is kept.
func (s *ServiceImpl) AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error) {
	if amount <= 0 {
		return s.Snapshot(), domain.NewValidationError("amount", "experience must be positive", domain.ErrInvalidAmount)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	snap, err := s.remote.AddExperience(ctx, amount)
	if err != nil {
		s.logger.Warn("failed to add experience", "amount", amount, "error", err)
		return s.Snapshot(), fmt.Errorf("failed to add experience: %w", err)
	}

	previous := s.replace(ctx, snap)
	if snap.LevelInfo.Level > previous.LevelInfo.Level {
		s.logger.Info("level up",
			"from", previous.LevelInfo.Level,
			"to", snap.LevelInfo.Level,
			"title", snap.LevelInfo.TitleEn)
	}
	return snap, nil
}

func (s *ServiceImpl) replace(ctx context.Context, snap domain.ExperienceSnapshot) domain.ExperienceSnapshot {
	s.mu.Lock()
	previous := s.snap
	s.snap = snap
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveExperience(ctx, snap); err != nil {
			s.logger.Warn("failed to persist experience", "error", err)
		}
	}
	return previous
}
