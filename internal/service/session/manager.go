// Package session runs reading sessions: choosing a spread, drawing cards into
// its slots and rewarding progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
)

// Catalog supplies the spreads and cards currently available to the user.
type Catalog interface {
	AvailableSpreads() []domain.SpreadTemplate
	AvailableCards() []domain.Card
}

// Awarder grants experience.
type Awarder interface {
	AddExperience(ctx context.Context, amount int) (domain.ExperienceSnapshot, error)
}

// ReadingSaver stores completed readings.
type ReadingSaver interface {
	SaveReading(ctx context.Context, spreadType string, cards []domain.ReadingCard) error
}

// Interpreter writes a reflective interpretation of a completed reading.
type Interpreter interface {
	Interpret(ctx context.Context, reading domain.ReadingSession, lang string) (string, error)
}

// Config holds the draw timing and rewards.
type Config struct {
	DrawLatency  time.Duration
	DrawXP       int
	CompletionXP int
}

// DrawResult describes the outcome of DrawCard.
type DrawResult struct {
	// Drawn is false when the call was a no-op.
	Drawn bool
	Slot  int
	Card  domain.DrawnCard
	// Completed is true on the draw that filled the last slot.
	Completed bool
	// Session is a snapshot taken right after the commit.
	Session domain.ReadingSession
	// AwardErr reports a failed experience award. The draw itself stands.
	AwardErr error
}

type randSource struct{}

func (randSource) Intn(n int) int { return rand.IntN(n) }

// Manager owns the active reading session. It is safe for concurrent use.
type Manager struct {
	catalog     Catalog
	xp          Awarder
	saver       ReadingSaver
	interpreter Interpreter
	emitter     events.EventEmitter
	cfg         Config
	rng         domain.RNG
	sleep       func(time.Duration)
	now         func() time.Time
	logger      *slog.Logger

	// mu guards session and serializes rng use.
	mu      sync.Mutex
	session *domain.ReadingSession
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRNG replaces the random source.
func WithRNG(rng domain.RNG) Option { return func(m *Manager) { m.rng = rng } }

// WithSleep replaces the function used to simulate draw latency.
func WithSleep(sleep func(time.Duration)) Option { return func(m *Manager) { m.sleep = sleep } }

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithReadingSaver stores readings once they complete.
func WithReadingSaver(s ReadingSaver) Option { return func(m *Manager) { m.saver = s } }

// WithInterpreter enables Interpret.
func WithInterpreter(i Interpreter) Option { return func(m *Manager) { m.interpreter = i } }

// WithEmitter publishes session.completed events.
func WithEmitter(e events.EventEmitter) Option { return func(m *Manager) { m.emitter = e } }

// NewManager creates a manager with no active session.
func NewManager(catalog Catalog, xp Awarder, cfg Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if catalog == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if xp == nil {
		return nil, errors.New("experience service cannot be nil")
	}
	if cfg.DrawLatency < 0 || cfg.DrawXP < 0 || cfg.CompletionXP < 0 {
		return nil, fmt.Errorf("invalid session config %+v", cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		catalog: catalog,
		xp:      xp,
		cfg:     cfg,
		rng:     randSource{},
		sleep:   time.Sleep,
		now:     time.Now,
		logger:  logger.With("component", "session_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SelectTemplate starts a new session on the given spread, discarding any
// current one. Selecting the current spread again starts over.
func (m *Manager) SelectTemplate(_ context.Context, templateID string) (domain.ReadingSession, error) {
	var template domain.SpreadTemplate
	found := false
	for _, t := range m.catalog.AvailableSpreads() {
		if t.ID == templateID {
			template, found = t, true
			break
		}
	}
	if !found {
		return domain.ReadingSession{}, domain.NewValidationError("template",
			fmt.Sprintf("spread %q is not available", templateID), domain.ErrInvalidTemplate)
	}

	sess := domain.NewReadingSession(template, m.now())

	m.mu.Lock()
	m.session = sess
	snapshot := sess.Clone()
	m.mu.Unlock()

	m.logger.Debug("template selected",
		"session_id", sess.ID,
		"template_id", template.ID,
		"slots", template.SlotCount())
	return snapshot, nil
}

// DrawCard draws a card into slot. The call is a no-op when a draw is already
// in flight or the slot is filled. Once started a draw always completes; ctx
// only bounds the experience and save calls that follow it.
func (m *Manager) DrawCard(ctx context.Context, slot int) (DrawResult, error) {
	m.mu.Lock()
	sess := m.session
	if sess == nil {
		m.mu.Unlock()
		return DrawResult{}, domain.ErrNoActiveSession
	}
	began, err := sess.BeginDraw(slot)
	m.mu.Unlock()
	if err != nil {
		return DrawResult{}, err
	}
	if !began {
		return DrawResult{Slot: slot, Session: m.snapshotOf(sess)}, nil
	}

	m.sleep(m.cfg.DrawLatency)

	pool := m.catalog.AvailableCards()

	m.mu.Lock()
	if len(pool) == 0 {
		sess.State = domain.IdleState()
		m.mu.Unlock()
		return DrawResult{}, errors.New("no cards available to draw")
	}
	card := pool[m.rng.Intn(len(pool))]
	drawn := domain.NewDrawnCard(card, m.rng.Intn(2) == 1)
	completed := sess.CommitDraw(drawn, m.now())
	current := sess == m.session
	snapshot := sess.Clone()
	m.mu.Unlock()

	result := DrawResult{Drawn: true, Slot: slot, Card: drawn, Completed: completed, Session: snapshot}
	logger := m.logger.With("session_id", snapshot.ID, "slot", slot)
	logger.Debug("card drawn", "card_id", card.ID, "orientation", drawn.Orientation)

	if !current {
		logger.Info("draw finished on a replaced session, skipping rewards")
		return result, nil
	}

	result.AwardErr = m.reward(ctx, snapshot, completed, logger)
	return result, nil
}

func (m *Manager) reward(ctx context.Context, snapshot domain.ReadingSession, completed bool, logger *slog.Logger) error {
	xp := m.cfg.DrawXP
	if completed {
		xp += m.cfg.CompletionXP
	}

	var awardErr error
	if xp > 0 {
		if _, err := m.xp.AddExperience(ctx, xp); err != nil {
			logger.Warn("failed to award reading experience", "amount", xp, "error", err)
			awardErr = err
		}
	}

	if !completed {
		return awardErr
	}

	logger.Info("reading complete", "template_id", snapshot.Template.ID)
	events.Publish(ctx, m.emitter, logger, events.TypeSessionCompleted, events.SessionCompletion{
		SessionID:  snapshot.ID,
		TemplateID: snapshot.Template.ID,
		Slots:      snapshot.Template.SlotCount(),
	})
	if m.saver != nil {
		if err := m.saver.SaveReading(ctx, snapshot.Template.ID, domain.ReadingFromSession(snapshot)); err != nil {
			logger.Warn("failed to save reading", "error", err)
		}
	}
	return awardErr
}

// Snapshot returns a copy of the active session.
func (m *Manager) Snapshot() (domain.ReadingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.ReadingSession{}, false
	}
	return m.session.Clone(), true
}

// Reset discards the active session.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

// Interpret asks the configured interpreter to read the completed session.
func (m *Manager) Interpret(ctx context.Context, lang string) (string, error) {
	if m.interpreter == nil {
		return "", errors.New("interpretation is not configured")
	}
	snapshot, ok := m.Snapshot()
	if !ok {
		return "", domain.ErrNoActiveSession
	}
	if !snapshot.IsComplete() {
		return "", domain.NewValidationError("session", "reading is not complete", domain.ErrValidation)
	}
	return m.interpreter.Interpret(ctx, snapshot, lang)
}

func (m *Manager) snapshotOf(sess *domain.ReadingSession) domain.ReadingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sess.Clone()
}
