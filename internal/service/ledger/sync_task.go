package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/arcana/internal/events"
	"github.com/phrazzld/arcana/internal/task"
)

// SyncTaskType identifies persisted balance replays.
const SyncTaskType = "ledger_sync"

// Balance operations carried by a sync task.
const (
	OpCredit = "credit"
	OpDebit  = "debit"
)

type syncPayload struct {
	Operation string `json:"operation"`
	Amount    int    `json:"amount"`
	Label     string `json:"label"`
}

// SyncTask replays one balance update against the backend.
type SyncTask struct {
	id      uuid.UUID
	payload syncPayload
	remote  Remote
	emitter events.EventEmitter
}

var (
	_ task.Task              = (*SyncTask)(nil)
	_ task.ExhaustionHandler = (*SyncTask)(nil)
)

func newSyncTask(op string, amount int, label string, remote Remote, emitter events.EventEmitter) (*SyncTask, error) {
	if op != OpCredit && op != OpDebit {
		return nil, fmt.Errorf("unknown balance operation %q", op)
	}
	return &SyncTask{
		id:      uuid.New(),
		payload: syncPayload{Operation: op, Amount: amount, Label: label},
		remote:  remote,
		emitter: emitter,
	}, nil
}

func syncTaskFromRecord(rec task.Record, remote Remote, emitter events.EventEmitter) (*SyncTask, error) {
	var p syncPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode sync payload: %w", err)
	}
	t, err := newSyncTask(p.Operation, p.Amount, p.Label, remote, emitter)
	if err != nil {
		return nil, err
	}
	t.id = rec.ID
	return t, nil
}

// ID returns the task id.
func (t *SyncTask) ID() uuid.UUID { return t.id }

// Type returns SyncTaskType.
func (t *SyncTask) Type() string { return SyncTaskType }

// Payload returns the JSON-encoded operation.
func (t *SyncTask) Payload() []byte {
	b, _ := json.Marshal(t.payload)
	return b
}

// Execute sends the update to the backend once.
func (t *SyncTask) Execute(ctx context.Context) error {
	if t.payload.Operation == OpCredit {
		return t.remote.Credit(ctx, t.payload.Amount, t.payload.Label)
	}
	return t.remote.Debit(ctx, t.payload.Amount, t.payload.Label)
}

// Exhausted reports the update as a reconciliation gap.
func (t *SyncTask) Exhausted(ctx context.Context, attempts int, err error) {
	if err == nil {
		err = errors.New("unknown failure")
	}
	events.Publish(ctx, t.emitter, nil, events.TypeLedgerReconciliationGap, events.SyncFailure{
		Operation: t.payload.Operation,
		Amount:    t.payload.Amount,
		Label:     t.payload.Label,
		Attempts:  attempts,
		Error:     err.Error(),
	})
}
