package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/arcana/internal/catalog"
	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCatalog struct {
	cat *catalog.Catalog
	ent domain.EntitlementSet
}

func (c fixedCatalog) AvailableSpreads() []domain.SpreadTemplate { return c.cat.AvailableSpreads(c.ent) }
func (c fixedCatalog) AvailableCards() []domain.Card             { return c.cat.AvailableCards(c.ent) }

type recordingXP struct {
	mu      sync.Mutex
	awarded []int
	err     error
}

func (r *recordingXP) AddExperience(_ context.Context, amount int) (domain.ExperienceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.awarded = append(r.awarded, amount)
	return domain.ExperienceSnapshot{}, r.err
}

func (r *recordingXP) total() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.awarded...)
}

type recordingSaver struct {
	spreads []string
	cards   [][]domain.ReadingCard
}

func (s *recordingSaver) SaveReading(_ context.Context, spreadType string, cards []domain.ReadingCard) error {
	s.spreads = append(s.spreads, spreadType)
	s.cards = append(s.cards, cards)
	return nil
}

// sequenceRNG returns values from seq in order, modulo n.
type sequenceRNG struct {
	mu  sync.Mutex
	seq []int
	i   int
}

func (r *sequenceRNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.seq[r.i%len(r.seq)]
	r.i++
	return v % n
}

func noSleep(time.Duration) {}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, ent domain.EntitlementSet, cfg Config, opts ...Option) (*Manager, *recordingXP) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	xp := &recordingXP{}
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	m, err := NewManager(fixedCatalog{cat: cat, ent: ent}, xp, cfg, quietLogger(), opts...)
	require.NoError(t, err)
	return m, xp
}

func TestNewManagerValidation(t *testing.T) {
	cat, _ := catalog.Default()
	_, err := NewManager(nil, &recordingXP{}, Config{}, nil)
	assert.Error(t, err)
	_, err = NewManager(fixedCatalog{cat: cat}, nil, Config{}, nil)
	assert.Error(t, err)
	_, err = NewManager(fixedCatalog{cat: cat}, &recordingXP{}, Config{DrawXP: -1}, nil)
	assert.Error(t, err)
}

func TestSelectTemplate(t *testing.T) {
	m, _ := newTestManager(t, domain.EntitlementSet{}, Config{})
	ctx := context.Background()

	t.Run("base spread", func(t *testing.T) {
		sess, err := m.SelectTemplate(ctx, "three-card")
		require.NoError(t, err)
		assert.Len(t, sess.Slots, 3)
		assert.Zero(t, sess.FilledCount())
		assert.False(t, sess.IsComplete())
	})

	t.Run("locked premium spread", func(t *testing.T) {
		_, err := m.SelectTemplate(ctx, "celtic-cross-pro")
		assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown spread", func(t *testing.T) {
		_, err := m.SelectTemplate(ctx, "nine-star")
		assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
	})

	t.Run("entitled premium spread", func(t *testing.T) {
		premium, _ := newTestManager(t, domain.EntitlementSet{Spreads: []string{"celtic-cross-pro"}}, Config{})
		sess, err := premium.SelectTemplate(ctx, "celtic-cross-pro")
		require.NoError(t, err)
		assert.Len(t, sess.Slots, 10)
	})
}

func TestDrawCardErrors(t *testing.T) {
	m, xp := newTestManager(t, domain.EntitlementSet{}, Config{DrawXP: 10})
	ctx := context.Background()

	_, err := m.DrawCard(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = m.SelectTemplate(ctx, "single")
	require.NoError(t, err)
	for _, slot := range []int{-1, 1, 7} {
		_, err = m.DrawCard(ctx, slot)
		assert.ErrorIs(t, err, domain.ErrSlotOutOfRange)
	}
	assert.Empty(t, xp.total())
}

func TestCompletingSpreadAwardsOnce(t *testing.T) {
	saver := &recordingSaver{}
	var completions int
	emitter := events.NewInMemoryEventEmitter(quietLogger())
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		if e.Type == events.TypeSessionCompleted {
			completions++
		}
		return nil
	}))

	m, xp := newTestManager(t, domain.EntitlementSet{}, Config{CompletionXP: 30},
		WithReadingSaver(saver), WithEmitter(emitter))
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)

	var last DrawResult
	for slot := 0; slot < 3; slot++ {
		last, err = m.DrawCard(ctx, slot)
		require.NoError(t, err)
		assert.True(t, last.Drawn)
		assert.Equal(t, slot == 2, last.Completed)
	}
	assert.True(t, last.Session.IsComplete())
	assert.Equal(t, []int{30}, xp.total(), "one completion award, not three")
	assert.Equal(t, 1, completions)
	require.Len(t, saver.cards, 1)
	assert.Equal(t, "three-card", saver.spreads[0])
	assert.Len(t, saver.cards[0], 3)

	again, err := m.DrawCard(ctx, 1)
	require.NoError(t, err)
	assert.False(t, again.Drawn)
	assert.Equal(t, last.Session.Slots[1], again.Session.Slots[1], "filled slot unchanged")
	assert.Equal(t, []int{30}, xp.total())

	sess, err := m.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)
	assert.Zero(t, sess.FilledCount(), "re-selecting starts over")
	assert.False(t, sess.IsComplete())
}

func TestDrawXPPerCard(t *testing.T) {
	m, xp := newTestManager(t, domain.EntitlementSet{}, Config{DrawXP: 10, CompletionXP: 30})
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)
	for slot := 0; slot < 3; slot++ {
		_, err = m.DrawCard(ctx, slot)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{10, 10, 40}, xp.total())
}

func TestDrawnCardsComeFromAvailablePool(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	ent := domain.EntitlementSet{Cards: []int{100, 101}}
	allowed := make(map[int]bool)
	for _, c := range cat.AvailableCards(ent) {
		allowed[c.ID] = true
	}

	m, _ := newTestManager(t, ent, Config{})
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		sess, err := m.SelectTemplate(ctx, "celtic-cross")
		require.NoError(t, err)
		for slot := range sess.Slots {
			res, err := m.DrawCard(ctx, slot)
			require.NoError(t, err)
			assert.True(t, allowed[res.Card.Card.ID], "card %d outside pool", res.Card.Card.ID)
		}
		final, _ := m.Snapshot()
		assert.True(t, final.IsComplete())
	}
}

func TestOrientationResolvesMeaning(t *testing.T) {
	rng := &sequenceRNG{seq: []int{0, 1, 0, 0}}
	m, _ := newTestManager(t, domain.EntitlementSet{}, Config{}, WithRNG(rng))
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)

	reversed, err := m.DrawCard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, reversed.Card.Card.ID)
	assert.True(t, reversed.Card.IsReversed())
	assert.Equal(t, reversed.Card.Card.Meaning.Reversed, reversed.Card.Meaning)

	upright, err := m.DrawCard(ctx, 1)
	require.NoError(t, err)
	assert.False(t, upright.Card.IsReversed())
	assert.Equal(t, upright.Card.Card.Meaning.Upright, upright.Card.Meaning)
}

func TestOneDrawInFlightPerSession(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blockingSleep := func(time.Duration) {
		entered <- struct{}{}
		<-release
	}
	m, _ := newTestManager(t, domain.EntitlementSet{}, Config{DrawLatency: time.Second}, WithSleep(blockingSleep))
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "three-card")
	require.NoError(t, err)

	done := make(chan DrawResult, 1)
	go func() {
		res, _ := m.DrawCard(ctx, 0)
		done <- res
	}()
	<-entered

	sess, _ := m.Snapshot()
	assert.Equal(t, domain.PhaseAwaitingDraw, sess.State.Phase)
	assert.Equal(t, 0, sess.State.Slot)

	other, err := m.DrawCard(ctx, 1)
	require.NoError(t, err)
	assert.False(t, other.Drawn, "second slot cannot draw while another is in flight")

	close(release)
	first := <-done
	assert.True(t, first.Drawn)
	assert.Equal(t, 1, first.Session.FilledCount())
	assert.Nil(t, first.Session.Slots[1])
}

func TestDrawOnReplacedSessionSkipsRewards(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blockingSleep := func(time.Duration) {
		entered <- struct{}{}
		<-release
	}
	m, xp := newTestManager(t, domain.EntitlementSet{}, Config{CompletionXP: 30}, WithSleep(blockingSleep))
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "single")
	require.NoError(t, err)

	done := make(chan DrawResult, 1)
	go func() {
		res, _ := m.DrawCard(ctx, 0)
		done <- res
	}()
	<-entered

	fresh, err := m.SelectTemplate(ctx, "single")
	require.NoError(t, err)
	close(release)

	stale := <-done
	assert.True(t, stale.Drawn, "draws always run to completion")
	assert.Empty(t, xp.total())

	current, _ := m.Snapshot()
	assert.Equal(t, fresh.ID, current.ID)
	assert.Zero(t, current.FilledCount())
}

func TestAwardFailureDoesNotUndoDraw(t *testing.T) {
	m, xp := newTestManager(t, domain.EntitlementSet{}, Config{CompletionXP: 30})
	xp.err = domain.ErrNetwork
	ctx := context.Background()

	_, err := m.SelectTemplate(ctx, "single")
	require.NoError(t, err)
	res, err := m.DrawCard(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.ErrorIs(t, res.AwardErr, domain.ErrNetwork)

	again, err := m.DrawCard(ctx, 0)
	require.NoError(t, err)
	assert.False(t, again.Drawn)
	assert.Len(t, xp.total(), 1, "completion award is attempted once")
}

type stubInterpreter struct{}

func (stubInterpreter) Interpret(_ context.Context, r domain.ReadingSession, lang string) (string, error) {
	if lang != "en" {
		return "", errors.New("unexpected language")
	}
	return "reading of " + r.Template.ID, nil
}

func TestInterpret(t *testing.T) {
	ctx := context.Background()

	plain, _ := newTestManager(t, domain.EntitlementSet{}, Config{})
	_, err := plain.Interpret(ctx, "en")
	assert.Error(t, err)

	m, _ := newTestManager(t, domain.EntitlementSet{}, Config{}, WithInterpreter(stubInterpreter{}))
	_, err = m.Interpret(ctx, "en")
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	_, err = m.SelectTemplate(ctx, "single")
	require.NoError(t, err)
	_, err = m.Interpret(ctx, "en")
	assert.True(t, domain.IsValidation(err))

	_, err = m.DrawCard(ctx, 0)
	require.NoError(t, err)
	text, err := m.Interpret(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "reading of single", text)

	m.Reset()
	_, ok := m.Snapshot()
	assert.False(t, ok)
}
