package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	HandledCount int
	LastEvent    *Event
	HandlerError error
}

func (m *MockEventHandler) HandleEvent(_ context.Context, event *Event) error {
	m.HandledCount++
	m.LastEvent = event
	return m.HandlerError
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event, err := NewEvent(TypeAdRewarded, AdReward{Amount: 10})
		require.NoError(t, err)

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event, err := NewEvent(TypeSessionCompleted, SessionCompletion{TemplateID: "single", Slots: 1})
		require.NoError(t, err)

		require.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{HandlerError: errors.New("handler error")}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := Emit(context.Background(), emitter, TypeLedgerSyncFailed, SyncFailure{Operation: "add"})
		require.Error(t, err)
		assert.Equal(t, "handler error", err.Error())
		assert.Equal(t, 1, successHandler.HandledCount, "later handlers still run")
	})
}

func TestEmitWithNilEmitter(t *testing.T) {
	assert.NoError(t, Emit(context.Background(), nil, TypeAdRewarded, nil))
}

func TestEventPayloadRoundTrip(t *testing.T) {
	event, err := NewEvent(TypePurchaseReconciliationGap, PurchaseGap{ProductID: "premium-cards", Price: 99})
	require.NoError(t, err)

	var gap PurchaseGap
	require.NoError(t, event.UnmarshalPayload(&gap))
	assert.Equal(t, "premium-cards", gap.ProductID)
	assert.Equal(t, 99, gap.Price)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestTelemetryHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := NewTelemetryHandler(logger)

	info, _ := NewEvent(TypeAdRewarded, AdReward{Amount: 10})
	gap, _ := NewEvent(TypeLedgerReconciliationGap, SyncFailure{Operation: "deduct", Amount: 5})

	require.NoError(t, h.HandleEvent(context.Background(), info))
	assert.Empty(t, buf.String(), "info-level telemetry filtered at warn")

	require.NoError(t, h.HandleEvent(context.Background(), gap))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), TypeLedgerReconciliationGap)
}

func TestHandlerFunc(t *testing.T) {
	called := false
	var h EventHandler = HandlerFunc(func(context.Context, *Event) error {
		called = true
		return nil
	})
	require.NoError(t, h.HandleEvent(context.Background(), &Event{}))
	assert.True(t, called)
}

func TestPublishLogsHandlerFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	emitter := NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(&MockEventHandler{HandlerError: errors.New("sink offline")})

	Publish(context.Background(), emitter, logger, TypeSessionCompleted, SessionCompletion{TemplateID: "three-card"})

	assert.Contains(t, buf.String(), "failed to publish event")
	assert.Contains(t, buf.String(), TypeSessionCompleted)
	assert.Contains(t, buf.String(), "sink offline")
}

func TestPublishWithNilEmitterIsSilent(t *testing.T) {
	var buf bytes.Buffer
	Publish(context.Background(), nil, slog.New(slog.NewJSONHandler(&buf, nil)), TypeAdRewarded, nil)
	assert.Empty(t, buf.String())
}
