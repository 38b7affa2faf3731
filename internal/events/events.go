package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types published by the client engine.
const (
	// TypeLedgerSyncFailed is emitted when a remote balance update fails and
	// the local balance has already diverged.
	TypeLedgerSyncFailed = "ledger.sync_failed"
	// TypeLedgerReconciliationGap is emitted when every retry of a remote
	// balance update has failed.
	TypeLedgerReconciliationGap = "ledger.reconciliation_gap"
	// TypePurchaseReconciliationGap is emitted when coins were debited but the
	// purchase could not be recorded remotely.
	TypePurchaseReconciliationGap = "purchase.reconciliation_gap"
	// TypeEntitlementGranted is emitted after a purchase unlocks content.
	TypeEntitlementGranted = "entitlement.granted"
	// TypeSessionCompleted is emitted when the last slot of a reading is filled.
	TypeSessionCompleted = "session.completed"
	// TypeAdRewarded is emitted after an ad reward has been credited.
	TypeAdRewarded = "ad.rewarded"
)

// Event is a telemetry or coordination message. The payload is kept as raw
// JSON so the package does not depend on the services that emit it.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SyncFailure describes a remote balance update that did not reach the
// backend.
type SyncFailure struct {
	Operation string `json:"operation"`
	Amount    int    `json:"amount"`
	Label     string `json:"label"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
}

// PurchaseGap describes a purchase whose coins were debited locally but which
// the backend has not recorded.
type PurchaseGap struct {
	ProductID string `json:"product_id"`
	Price     int    `json:"price"`
	Error     string `json:"error"`
}

// Grant describes content unlocked by a purchase.
type Grant struct {
	ProductID string   `json:"product_id"`
	Spreads   []string `json:"spreads,omitempty"`
	Cards     []int    `json:"cards,omitempty"`
}

// SessionCompletion describes a finished reading.
type SessionCompletion struct {
	SessionID  uuid.UUID `json:"session_id"`
	TemplateID string    `json:"template_id"`
	Slots      int       `json:"slots"`
}

// AdReward describes a credited ad reward.
type AdReward struct {
	Amount int       `json:"amount"`
	At     time.Time `json:"at"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// Emit builds an event and publishes it, ignoring a nil emitter. Marshalling
// failures are returned; handler failures are returned as EmitEvent reports
// them.
func Emit(ctx context.Context, emitter EventEmitter, eventType string, payload interface{}) error {
	if emitter == nil {
		return nil
	}
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	return emitter.EmitEvent(ctx, event)
}

// Publish is Emit for callers that treat events as telemetry: a failure is
// logged at warn level and otherwise ignored. A nil logger uses slog.Default.
func Publish(ctx context.Context, emitter EventEmitter, logger *slog.Logger, eventType string, payload interface{}) {
	if err := Emit(ctx, emitter, eventType, payload); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to publish event", "event_type", eventType, "error", err)
	}
}
