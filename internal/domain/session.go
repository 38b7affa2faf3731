package domain

import (
	"time"

	"github.com/google/uuid"
)

// DrawPhase enumerates the states of a reading session's draw cycle.
type DrawPhase int

const (
	// PhaseIdle accepts a new draw.
	PhaseIdle DrawPhase = iota
	// PhaseAwaitingDraw has one draw in flight for DrawState.Slot.
	PhaseAwaitingDraw
	// PhaseComplete has every slot filled.
	PhaseComplete
)

// String returns a readable phase name.
func (p DrawPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingDraw:
		return "awaiting_draw"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// DrawState is the finite draw state of a session. Slot is meaningful only
// while the phase is PhaseAwaitingDraw, so at most one slot can be in flight.
type DrawState struct {
	Phase DrawPhase
	Slot  int
}

// IdleState returns the state that accepts a new draw.
func IdleState() DrawState { return DrawState{Phase: PhaseIdle, Slot: -1} }

// AwaitingDrawState returns the state with a draw in flight for slot.
func AwaitingDrawState(slot int) DrawState { return DrawState{Phase: PhaseAwaitingDraw, Slot: slot} }

// CompleteState returns the terminal state.
func CompleteState() DrawState { return DrawState{Phase: PhaseComplete, Slot: -1} }

// ReadingSession tracks one reading against a selected spread template.
// It is not safe for concurrent use; callers serialize access.
type ReadingSession struct {
	ID                uuid.UUID
	Template          SpreadTemplate
	Slots             []*DrawnCard
	State             DrawState
	CompletionAwarded bool
	StartedAt         time.Time
	CompletedAt       time.Time
}

// NewReadingSession creates a session with every slot empty.
func NewReadingSession(template SpreadTemplate, now time.Time) *ReadingSession {
	return &ReadingSession{
		ID:        uuid.New(),
		Template:  template,
		Slots:     make([]*DrawnCard, template.SlotCount()),
		State:     IdleState(),
		StartedAt: now,
	}
}

// InRange reports whether slot addresses a position of the template.
func (s *ReadingSession) InRange(slot int) bool {
	return slot >= 0 && slot < len(s.Slots)
}

// Filled reports whether slot already holds a card.
func (s *ReadingSession) Filled(slot int) bool {
	return s.InRange(slot) && s.Slots[slot] != nil
}

// FilledCount returns the number of slots holding a card.
func (s *ReadingSession) FilledCount() int {
	n := 0
	for _, c := range s.Slots {
		if c != nil {
			n++
		}
	}
	return n
}

// IsComplete reports whether every slot has been filled.
func (s *ReadingSession) IsComplete() bool {
	return s.State.Phase == PhaseComplete
}

// BeginDraw moves the session into AwaitingDraw for slot. It returns false,
// leaving the session untouched, when a draw is already in flight or the slot
// is already filled.
func (s *ReadingSession) BeginDraw(slot int) (bool, error) {
	if !s.InRange(slot) {
		return false, NewValidationError("slot", "slot index out of range", ErrSlotOutOfRange)
	}
	if s.State.Phase != PhaseIdle || s.Slots[slot] != nil {
		return false, nil
	}
	s.State = AwaitingDrawState(slot)
	return true, nil
}

// CommitDraw places card into the in-flight slot and leaves AwaitingDraw.
// It returns true exactly once per session: on the commit that fills the last
// empty slot.
func (s *ReadingSession) CommitDraw(card DrawnCard, now time.Time) bool {
	if s.State.Phase != PhaseAwaitingDraw {
		return false
	}
	slot := s.State.Slot
	if s.Slots[slot] == nil {
		c := card
		s.Slots[slot] = &c
	}

	if s.FilledCount() < len(s.Slots) {
		s.State = IdleState()
		return false
	}

	s.State = CompleteState()
	if s.CompletionAwarded {
		return false
	}
	s.CompletionAwarded = true
	s.CompletedAt = now
	return true
}

// Clone returns a copy that shares no mutable state with s.
func (s *ReadingSession) Clone() ReadingSession {
	c := *s
	c.Slots = make([]*DrawnCard, len(s.Slots))
	for i, d := range s.Slots {
		if d != nil {
			dc := *d
			c.Slots[i] = &dc
		}
	}
	return c
}
