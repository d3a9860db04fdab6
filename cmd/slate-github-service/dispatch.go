// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slate-foundation/slate/lib/schema/task"
)

// pusher is the slice of the sync engine the dispatcher drives.
type pusher interface {
	PushTaskState(ctx context.Context, taskID int64, trigger PushTrigger) SyncResult
}

var _ pusher = (*SyncEngine)(nil)

// Dispatcher schedules outbound pushes from task mutation
// notifications. It coalesces per task: while a push for a task is in
// flight, further notifications for that task set a dirty bit instead
// of starting a second push, and the worker goes around again when the
// current attempt finishes. Pushes for distinct tasks run
// concurrently.
//
// Notifications carrying an external origin are discarded — those
// mutations were just imported from the tracker, and pushing them back
// would turn every webhook delivery into an API write. Manual pushes
// (socket push-task) bypass the dispatcher entirely.
type Dispatcher struct {
	engine pusher
	logger *slog.Logger

	queue chan int64

	mu       sync.Mutex
	closed   bool
	inFlight map[int64]bool
	dirty    map[int64]bool

	workers sync.WaitGroup
}

// DispatcherConfig configures a Dispatcher. All fields are required.
type DispatcherConfig struct {
	// Engine performs the pushes.
	Engine pusher

	// QueueSize bounds the pending-notification buffer. When the
	// buffer is full, new notifications are dropped with a warning;
	// the next mutation or a manual push repairs the miss.
	QueueSize int

	Logger *slog.Logger
}

// NewDispatcher creates a dispatcher. Panics on missing configuration
// — these are wiring errors, not runtime conditions.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Engine == nil {
		panic("Dispatcher: Engine is required")
	}
	if config.QueueSize <= 0 {
		panic("Dispatcher: QueueSize must be positive")
	}
	if config.Logger == nil {
		panic("Dispatcher: Logger is required")
	}
	return &Dispatcher{
		engine:   config.Engine,
		logger:   config.Logger,
		queue:    make(chan int64, config.QueueSize),
		inFlight: make(map[int64]bool),
		dirty:    make(map[int64]bool),
	}
}

// NotifyTaskMutated schedules a push for a mutated task. It never
// blocks: the caller may hold a request open or a store transaction.
func (d *Dispatcher) NotifyTaskMutated(taskID int64, origin task.Origin) {
	if origin == task.OriginExternal {
		d.logger.Debug("not scheduling push for externally-originated mutation",
			"task_id", taskID,
		)
		return
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	select {
	case d.queue <- taskID:
	default:
		d.logger.Warn("sync queue full, dropping mutation notification",
			"task_id", taskID,
		)
	}
}

// Run drains the notification queue until ctx is cancelled, then waits
// for in-flight pushes to finish and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			d.workers.Wait()
			d.logger.Info("dispatcher stopped")
			return nil
		case taskID := <-d.queue:
			d.schedule(taskID)
		}
	}
}

func (d *Dispatcher) schedule(taskID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight[taskID] {
		// The running worker re-reads task state before it exits, so
		// this notification is folded into its next pass.
		d.dirty[taskID] = true
		return
	}
	d.inFlight[taskID] = true
	d.workers.Add(1)
	go d.push(taskID)
}

func (d *Dispatcher) push(taskID int64) {
	defer d.workers.Done()

	for {
		// Deliberately detached from any request context: the webhook
		// or socket call that triggered the mutation has already been
		// answered. The engine bounds each attempt with the push
		// timeout.
		result := d.engine.PushTaskState(context.Background(), taskID, TriggerMutation)
		if result.Outcome == OutcomeFailed {
			// No automatic retry. Persistent failures would hammer the
			// API; the operator repairs with a manual push once the
			// cause is fixed, and the next mutation re-schedules
			// anyway.
			d.logger.Warn("scheduled push failed",
				"task_id", taskID,
				"reason", result.Reason,
			)
		}

		d.mu.Lock()
		if d.dirty[taskID] {
			delete(d.dirty, taskID)
			d.mu.Unlock()
			continue
		}
		delete(d.inFlight, taskID)
		d.mu.Unlock()
		return
	}
}
