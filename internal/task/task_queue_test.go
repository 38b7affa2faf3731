package task

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTask implements the Task interface for testing
type mockTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	execFn   func(ctx context.Context) error
}

func (m *mockTask) ID() uuid.UUID   { return m.id }
func (m *mockTask) Type() string    { return m.taskType }
func (m *mockTask) Payload() []byte { return m.payload }

func (m *mockTask) Execute(ctx context.Context) error {
	if m.execFn != nil {
		return m.execFn(ctx)
	}
	return nil
}

func newMockTask() *mockTask {
	return &mockTask{
		id:       uuid.New(),
		taskType: "mock",
		payload:  []byte(`{"n":1}`),
	}
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTaskQueue(t *testing.T) {
	queue := NewTaskQueue(10, setupTestLogger())

	assert.NotNil(t, queue)
	assert.Equal(t, 10, cap(queue.tasks))
	assert.False(t, queue.closed)
	assert.Zero(t, queue.Len())
}

func TestEnqueue(t *testing.T) {
	queue := NewTaskQueue(2, setupTestLogger())

	require.NoError(t, queue.Enqueue(newMockTask()))
	require.NoError(t, queue.Enqueue(newMockTask()))
	assert.Equal(t, 2, queue.Len())

	err := queue.Enqueue(newMockTask())
	assert.ErrorIs(t, err, ErrQueueFull)

	received := <-queue.GetChannel()
	assert.Equal(t, "mock", received.Type())
}

func TestCloseQueue(t *testing.T) {
	queue := NewTaskQueue(1, setupTestLogger())
	queue.Close()
	queue.Close() // idempotent

	assert.ErrorIs(t, queue.Enqueue(newMockTask()), ErrQueueClosed)

	_, ok := <-queue.GetChannel()
	assert.False(t, ok)
}
