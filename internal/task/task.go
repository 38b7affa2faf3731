package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Execute runs the task logic once
	Execute(ctx context.Context) error
}

// ExhaustionHandler is implemented by tasks that need to react when the
// runner gives up on them after the final attempt.
type ExhaustionHandler interface {
	Exhausted(ctx context.Context, attempts int, err error)
}

// Record is the persisted form of a task.
type Record struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	Status    TaskStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Factory rebuilds a task of a given type from its persisted record.
type Factory func(rec Record) (Task, error)

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a new task in the pending state
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status, attempt count and last error of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, attempts int, errorMsg string) error

	// GetUnfinishedTasks retrieves every task that is pending or was left
	// processing by a previous run
	GetUnfinishedTasks(ctx context.Context) ([]Record, error)
}
