package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// MaxAttempts is the number of times a task is executed before the
	// runner gives up on it
	MaxAttempts int

	// RetryDelay is the pause between a failed attempt and the next one
	RetryDelay time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 1,
		QueueSize:   64,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
	}
}

// TaskRunner manages background task processing with bounded retries.
// Tasks are persisted before they are queued so that unfinished work is
// recovered by the next Start.
type TaskRunner struct {
	store     TaskStore
	queue     *TaskQueue
	pool      *WorkerPool
	config    TaskRunnerConfig
	logger    *slog.Logger
	factories map[string]Factory

	ctx    context.Context
	cancel context.CancelFunc
	retry  sync.WaitGroup

	mu          sync.Mutex
	attempts    map[uuid.UUID]int
	outstanding int
	started     bool

	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) (*TaskRunner, error) {
	if store == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultTaskRunnerConfig().QueueSize
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())
	r := &TaskRunner{
		store:     store,
		queue:     NewTaskQueue(config.QueueSize, logger),
		config:    config,
		logger:    logger,
		factories: make(map[string]Factory),
		ctx:       ctx,
		cancel:    cancel,
		attempts:  make(map[uuid.UUID]int),
		errHandler: func(task Task, err error) {
			logger.Error("task abandoned after final attempt",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
	r.pool = NewWorkerPool(r.queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, r.processTask, logger)
	return r, nil
}

// SetErrorHandler allows setting a custom handler for abandoned tasks
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// RegisterFactory registers how tasks of taskType are rebuilt during recovery.
func (r *TaskRunner) RegisterFactory(taskType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = factory
}

// Submit persists a task and adds it to the queue. A task that does not fit
// in the queue stays persisted and is picked up by the next Start.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	r.mu.Lock()
	r.attempts[task.ID()] = 0
	r.mu.Unlock()

	return r.enqueue(task)
}

func (r *TaskRunner) enqueue(task Task) error {
	r.mu.Lock()
	r.outstanding++
	r.mu.Unlock()

	if err := r.queue.Enqueue(task); err != nil {
		r.mu.Lock()
		r.outstanding--
		r.mu.Unlock()
		return err
	}
	return nil
}

// Start recovers unfinished tasks from the store and starts the workers.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	r.pool.Start()
	return nil
}

// Recover loads pending and interrupted tasks from the store and queues them.
func (r *TaskRunner) Recover(ctx context.Context) error {
	records, err := r.store.GetUnfinishedTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get unfinished tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks", "count", len(records))

	for _, rec := range records {
		r.mu.Lock()
		factory, ok := r.factories[rec.Type]
		r.mu.Unlock()
		if !ok {
			r.logger.Error("no factory registered for task type",
				"task_id", rec.ID,
				"task_type", rec.Type)
			continue
		}

		task, err := factory(rec)
		if err != nil {
			r.logger.Error("failed to rebuild task", "task_id", rec.ID, "error", err)
			_ = r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, rec.Attempts, err.Error())
			continue
		}

		if rec.Status == TaskStatusProcessing {
			if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, rec.Attempts, "Reset after recovery"); err != nil {
				r.logger.Error("failed to reset processing task status", "task_id", rec.ID, "error", err)
				continue
			}
		}

		r.mu.Lock()
		r.attempts[rec.ID] = rec.Attempts
		r.mu.Unlock()

		if err := r.enqueue(task); err != nil {
			r.logger.Error("failed to requeue task", "task_id", rec.ID, "error", err)
		}
	}
	return nil
}

// Outstanding returns the number of tasks queued, running or waiting to retry.
func (r *TaskRunner) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// WaitIdle blocks until no task is outstanding or ctx is done.
func (r *TaskRunner) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.Outstanding() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop gracefully shuts down the task runner. Tasks waiting for a retry stay
// pending in the store.
func (r *TaskRunner) Stop() {
	r.cancel()
	r.pool.Stop()
	r.retry.Wait()
	r.queue.Close()
}

// processTask executes one attempt of a task and schedules a retry or gives
// up depending on the attempt count.
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	r.mu.Lock()
	attempts := r.attempts[task.ID()]
	r.mu.Unlock()

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, attempts, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
	}

	err := task.Execute(ctx)
	attempts++

	r.mu.Lock()
	r.attempts[task.ID()] = attempts
	r.mu.Unlock()

	if err == nil {
		logger.Debug("task completed successfully", "attempts", attempts)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, attempts, ""); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
		r.finish(task.ID())
		return
	}

	if attempts < r.config.MaxAttempts {
		logger.Warn("task attempt failed, will retry", "attempts", attempts, "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, attempts, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to pending", "error", updateErr)
		}
		r.scheduleRetry(task)
		return
	}

	logger.Error("task execution failed", "attempts", attempts, "error", err)
	if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, attempts, err.Error()); updateErr != nil {
		logger.Error("failed to update task status to failed", "error", updateErr)
	}
	if h, ok := task.(ExhaustionHandler); ok {
		h.Exhausted(context.WithoutCancel(ctx), attempts, err)
	}
	r.errHandler(task, err)
	r.finish(task.ID())
}

func (r *TaskRunner) scheduleRetry(task Task) {
	r.retry.Add(1)
	go func() {
		defer r.retry.Done()

		timer := time.NewTimer(r.config.RetryDelay)
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
			r.finish(task.ID())
			return
		case <-timer.C:
		}

		if err := r.queue.Enqueue(task); err != nil {
			r.logger.Error("failed to requeue task for retry", "task_id", task.ID(), "error", err)
			r.finish(task.ID())
		}
	}()
}

func (r *TaskRunner) finish(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, id)
	if r.outstanding > 0 {
		r.outstanding--
	}
}
